package whatsapp

import (
	"context"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3"
)

// AudioMimetype is the format tag every audio attachment is sent with.
const AudioMimetype = "audio/ogg"

// ClientDialer opens whatsmeow clients backed by a persistent device store.
// The store is created on first run and reused afterwards.
type ClientDialer struct {
	container *sqlstore.Container
	log       zerolog.Logger
}

func NewClientDialer(ctx context.Context, driver, dsn string, log zerolog.Logger) (*ClientDialer, error) {
	container, err := sqlstore.New(ctx, driver, dsn, waLog.Zerolog(log.With().Str("module", "store").Logger()))
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return &ClientDialer{container: container, log: log}, nil
}

func (d *ClientDialer) Dial(ctx context.Context, emit func(Event)) (Session, error) {
	device, err := d.container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("load device: %w", err)
	}

	client := whatsmeow.NewClient(device, waLog.Zerolog(d.log.With().Str("module", "client").Logger()))
	// Reconnects are driven by Manager.
	client.EnableAutoReconnect = false

	s := &clientSession{client: client}
	client.AddEventHandler(func(raw any) {
		if evt, ok := translateEvent(raw); ok {
			evt.Session = s
			emit(evt)
		}
	})

	if client.Store.ID == nil {
		qrChan, err := client.GetQRChannel(ctx)
		if err != nil {
			return nil, fmt.Errorf("get qr channel: %w", err)
		}
		go func() {
			for item := range qrChan {
				switch item.Event {
				case whatsmeow.QRChannelEventCode:
					emit(Event{Kind: EventQR, QRCode: item.Code, Session: s})
				case whatsmeow.QRChannelSuccess.Event:
					d.log.Info().Msg("device paired")
				default:
					d.log.Warn().Str("event", item.Event).Msg("pairing ended")
				}
			}
		}()
	}

	emit(Event{Kind: EventOpening, Session: s})
	if err := client.Connect(); err != nil {
		client.Disconnect()
		return nil, fmt.Errorf("connect: %w", err)
	}
	return s, nil
}

// translateEvent maps whatsmeow events onto the connection state machine.
func translateEvent(raw any) (Event, bool) {
	switch v := raw.(type) {
	case *events.Connected:
		return Event{Kind: EventOpen}, true
	case *events.Disconnected:
		return Event{Kind: EventClosed, Cause: CauseConnectionClosed}, true
	case *events.StreamError:
		// 515 never arrives here: whatsmeow reconnects on its own for it.
		return Event{Kind: EventClosed, Cause: CauseOther, Detail: "stream error " + v.Code}, true
	case *events.LoggedOut:
		return Event{Kind: EventClosed, Cause: CauseLoggedOut, Detail: v.Reason.String()}, true
	case *events.ConnectFailure:
		if v.Reason.IsLoggedOut() {
			return Event{Kind: EventClosed, Cause: CauseLoggedOut, Detail: v.Reason.String()}, true
		}
		return Event{Kind: EventClosed, Cause: CauseOther, Detail: v.Reason.String()}, true
	case *events.StreamReplaced:
		return Event{Kind: EventClosed, Cause: CauseOther, Detail: "stream replaced"}, true
	case *events.TemporaryBan:
		return Event{Kind: EventClosed, Cause: CauseOther, Detail: v.String()}, true
	case *events.PairSuccess:
		return Event{Kind: EventCredentialsChanged}, true
	}
	return Event{}, false
}

type clientSession struct {
	client *whatsmeow.Client
}

func (s *clientSession) Send(ctx context.Context, to string, msg *OutgoingMessage) error {
	jid, err := types.ParseJID(to)
	if err != nil {
		return fmt.Errorf("invalid recipient %q: %w", to, err)
	}

	payload, err := s.buildMessage(ctx, msg)
	if err != nil {
		return err
	}

	if _, err := s.client.SendMessage(ctx, jid, payload); err != nil {
		return fmt.Errorf("send %s message: %w", msg.Type, err)
	}
	return nil
}

func (s *clientSession) PersistCredentials(ctx context.Context) error {
	return s.client.Store.Save(ctx)
}

func (s *clientSession) Close() {
	s.client.Disconnect()
}

func (s *clientSession) buildMessage(ctx context.Context, msg *OutgoingMessage) (*waE2E.Message, error) {
	switch msg.Type {
	case TypeText:
		return &waE2E.Message{Conversation: proto.String(msg.Text.Body)}, nil

	case TypeImage:
		up, err := s.client.Upload(ctx, msg.Image.Data, whatsmeow.MediaImage)
		if err != nil {
			return nil, fmt.Errorf("upload image: %w", err)
		}
		return &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
			Caption:       optional(msg.Image.Caption),
			Mimetype:      proto.String(detectMimetype(msg.Image)),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			JPEGThumbnail: msg.Image.Thumbnail,
		}}, nil

	case TypeVideo:
		up, err := s.client.Upload(ctx, msg.Video.Data, whatsmeow.MediaVideo)
		if err != nil {
			return nil, fmt.Errorf("upload video: %w", err)
		}
		return &waE2E.Message{VideoMessage: &waE2E.VideoMessage{
			Caption:       optional(msg.Video.Caption),
			Mimetype:      proto.String(detectMimetype(msg.Video)),
			GifPlayback:   proto.Bool(msg.Video.GIFPlayback),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			JPEGThumbnail: msg.Video.Thumbnail,
		}}, nil

	case TypeAudio:
		up, err := s.client.Upload(ctx, msg.Audio.Data, whatsmeow.MediaAudio)
		if err != nil {
			return nil, fmt.Errorf("upload audio: %w", err)
		}
		return &waE2E.Message{AudioMessage: &waE2E.AudioMessage{
			Mimetype:      proto.String(AudioMimetype),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		}}, nil
	}
	return nil, fmt.Errorf("unsupported message type %q", msg.Type)
}

func detectMimetype(media *MediaObj) string {
	if media.Mimetype != "" {
		return media.Mimetype
	}
	return mimetype.Detect(media.Data).String()
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return proto.String(s)
}
