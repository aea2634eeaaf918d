package delivery

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"whatsapp-bulk/internal/contacts"
	"whatsapp-bulk/internal/media"
	"whatsapp-bulk/internal/whatsapp"
)

type Mode string

var errEmptyMessage = errors.New("empty message")

const (
	ModeText  Mode = "text"
	ModeMedia Mode = "media"
	ModeAll   Mode = "all"
)

// ParseMode maps a request value to a Mode, defaulting to ModeAll.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeText:
		return ModeText
	case ModeMedia:
		return ModeMedia
	}
	return ModeAll
}

type AttachmentSource interface {
	Snapshot() ([]media.Attachment, error)
}

type PayloadBuilder interface {
	Build(ctx context.Context, att media.Attachment, caption string) (*whatsapp.OutgoingMessage, error)
}

// Observer is notified after every contact of a run.
type Observer interface {
	ContactDone(Progress)
}

type Progress struct {
	RunID   string `json:"runId"`
	Index   int    `json:"index"`
	Total   int    `json:"total"`
	Number  string `json:"number"`
	Success bool   `json:"success"`
}

type FailureDetail struct {
	Number string `json:"number"`
	File   string `json:"file,omitempty"`
	Error  string `json:"error"`
}

type Summary struct {
	RunID          string          `json:"runId"`
	Mode           Mode            `json:"mode"`
	Total          int             `json:"total"`
	SuccessCount   int             `json:"successCount"`
	FailureCount   int             `json:"failureCount"`
	SuccessNumbers []string        `json:"successNumbers"`
	FailedNumbers  []string        `json:"failedNumbers"`
	Details        []FailureDetail `json:"details"`
	StartedAt      time.Time       `json:"startedAt"`
	FinishedAt     time.Time       `json:"finishedAt"`
}

type Options struct {
	// CountryCode is prepended to 10-digit numbers.
	CountryCode string

	// MediaDelay is the pause after each attachment send.
	MediaDelay time.Duration

	// ContactDelay plus a random share of ContactJitter is the pause after
	// each contact.
	ContactDelay  time.Duration
	ContactJitter time.Duration
}

// Deliverer runs delivery runs: every contact in order, one send at a time.
type Deliverer struct {
	attachments AttachmentSource
	builder     PayloadBuilder
	opts        Options
	log         zerolog.Logger
	observers   []Observer

	pause  func(ctx context.Context, d time.Duration)
	jitter func(max time.Duration) time.Duration
}

func NewDeliverer(attachments AttachmentSource, builder PayloadBuilder, opts Options, log zerolog.Logger) *Deliverer {
	if opts.CountryCode == "" {
		opts.CountryCode = "91"
	}
	return &Deliverer{
		attachments: attachments,
		builder:     builder,
		opts:        opts,
		log:         log,
		pause:       sleep,
		jitter:      randomJitter,
	}
}

func (d *Deliverer) Observe(o Observer) {
	d.observers = append(d.observers, o)
}

// Deliver sends the rendered message and the shared attachments to every
// contact. Per-contact and per-send failures are recorded in the summary and
// never abort the run. A nil session fails immediately with
// whatsapp.ErrNotConnected.
func (d *Deliverer) Deliver(ctx context.Context, sess whatsapp.Session, list []contacts.Contact, render Renderer, mode Mode) (*Summary, error) {
	if sess == nil {
		return nil, whatsapp.ErrNotConnected
	}
	mode = ParseMode(string(mode))

	sum := &Summary{
		RunID:          uuid.NewString(),
		Mode:           mode,
		Total:          len(list),
		SuccessNumbers: []string{},
		FailedNumbers:  []string{},
		Details:        []FailureDetail{},
		StartedAt:      time.Now(),
	}
	log := d.log.With().Str("run", sum.RunID).Str("mode", string(mode)).Logger()

	var attachments []media.Attachment
	if mode != ModeText {
		var err error
		attachments, err = d.attachments.Snapshot()
		if err != nil {
			log.Error().Err(err).Msg("error reading attachments")
		}
		names := make([]string, 0, len(attachments))
		for _, a := range attachments {
			names = append(names, a.Name)
		}
		log.Info().Strs("files", names).Msg("attachments found")
	}

	for i, c := range list {
		number, err := NormalizeNumber(c.Number, d.opts.CountryCode)
		if err != nil {
			log.Warn().Str("number", c.Number).Err(err).Msg("skipping invalid number")
			sum.FailureCount++
			sum.FailedNumbers = append(sum.FailedNumbers, c.Number)
			d.notify(Progress{RunID: sum.RunID, Index: i, Total: len(list), Number: c.Number})
			continue
		}

		text := render(c)
		log.Info().Str("number", number).Str("text", preview(text)).Msg("sending")

		ok := d.deliverContact(ctx, log, sess, sum, number, text, attachments, mode)
		if ok {
			sum.SuccessCount++
			sum.SuccessNumbers = append(sum.SuccessNumbers, number)
		} else {
			sum.FailureCount++
			sum.FailedNumbers = append(sum.FailedNumbers, number)
		}
		d.notify(Progress{RunID: sum.RunID, Index: i, Total: len(list), Number: number, Success: ok})

		d.pause(ctx, d.opts.ContactDelay+d.jitter(d.opts.ContactJitter))
	}

	sum.FinishedAt = time.Now()
	log.Info().
		Int("success", sum.SuccessCount).
		Int("failed", sum.FailureCount).
		Dur("took", sum.FinishedAt.Sub(sum.StartedAt)).
		Msg("sending complete")
	return sum, nil
}

// deliverContact performs every send for one contact and reports whether all
// of them succeeded.
func (d *Deliverer) deliverContact(ctx context.Context, log zerolog.Logger, sess whatsapp.Session, sum *Summary, number, text string, attachments []media.Attachment, mode Mode) bool {
	to := Address(number)
	allSent := true

	fail := func(file string, err error) {
		allSent = false
		sum.Details = append(sum.Details, FailureDetail{Number: number, File: file, Error: err.Error()})
		ev := log.Error().Err(err).Str("number", number)
		if file != "" {
			ev = ev.Str("file", file)
		}
		ev.Msg("send failed")
	}
	sendText := func() {
		if text == "" {
			fail("", errEmptyMessage)
			return
		}
		if err := sess.Send(ctx, to, whatsapp.NewTextMessage(text)); err != nil {
			fail("", err)
			return
		}
		log.Info().Str("number", number).Msg("sent text message")
	}

	if mode == ModeText || (mode == ModeAll && len(attachments) == 0) {
		sendText()
		return allSent
	}
	if len(attachments) == 0 {
		log.Warn().Str("number", number).Msg("no media to send")
		fail("", errors.New("no media to send"))
		return false
	}

	captioned := false
	mediaSent := 0
	for _, att := range attachments {
		if !att.Supported() {
			log.Warn().Str("file", att.Name).Msg("skipping unsupported media type")
			continue
		}

		caption := ""
		if mode == ModeAll && !captioned && att.Kind.CarriesCaption() {
			caption = text
		}

		msg, err := d.builder.Build(ctx, att, caption)
		if errors.Is(err, media.ErrUnsupported) {
			log.Warn().Str("file", att.Name).Msg("skipping unsupported media type")
			continue
		}
		if err != nil {
			fail(att.Name, err)
			continue
		}

		if err := sess.Send(ctx, to, msg); err != nil {
			fail(att.Name, err)
		} else {
			mediaSent++
			if caption != "" {
				captioned = true
			}
			log.Info().Str("number", number).Str("file", att.Name).Bool("caption", caption != "").Msg("sent media")
		}
		d.pause(ctx, d.opts.MediaDelay)
	}

	switch {
	case mode == ModeAll && !captioned && text != "":
		log.Info().Str("number", number).Msg("no attachment carried the caption, sending text separately")
		sendText()
	case mode == ModeMedia && mediaSent == 0 && allSent:
		fail("", errors.New("no media sent"))
	}
	return allSent
}

func (d *Deliverer) notify(p Progress) {
	for _, o := range d.observers {
		o.ContactDone(p)
	}
}

func preview(text string) string {
	r := []rune(text)
	if len(r) > 50 {
		return string(r[:50]) + "..."
	}
	return text
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(max)))
}
