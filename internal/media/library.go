package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrUnsupported = errors.New("unsupported media type")
	ErrInvalidName = errors.New("invalid file name")
)

type Kind string

const (
	KindImage       Kind = "image"
	KindVideo       Kind = "video"
	KindAudio       Kind = "audio"
	KindUnsupported Kind = "unsupported"
)

// Classify infers the media kind from a file extension (with or without dot).
func Classify(ext string) Kind {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	switch ext {
	case ".jpg", ".jpeg", ".png":
		return KindImage
	case ".mp4":
		return KindVideo
	case ".mp3", ".ogg":
		return KindAudio
	}
	return KindUnsupported
}

// CarriesCaption reports whether messages of this kind can have a caption.
func (k Kind) CarriesCaption() bool {
	return k == KindImage || k == KindVideo
}

// Attachment is one file in the shared assets directory.
type Attachment struct {
	Name string
	Path string
	Ext  string
	Kind Kind
	Size int64

	ModTime time.Time
}

func (a Attachment) Supported() bool { return a.Kind != KindUnsupported }

// Library manages the shared assets directory.
type Library struct {
	dir string
	log zerolog.Logger
}

func NewLibrary(dir string, log zerolog.Logger) (*Library, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create assets dir: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Library{dir: abs, log: log}, nil
}

func (l *Library) Dir() string { return l.dir }

// Snapshot reads the directory once and returns every regular file in name
// order, supported or not.
func (l *Library) Snapshot() ([]Attachment, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read assets dir: %w", err)
	}

	attachments := make([]Attachment, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			l.log.Warn().Err(err).Str("file", entry.Name()).Msg("skipping unreadable asset")
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		attachments = append(attachments, Attachment{
			Name: entry.Name(),
			Path: filepath.Join(l.dir, entry.Name()),
			Ext:  ext,
			Kind: Classify(ext),
			Size: info.Size(),

			ModTime: info.ModTime(),
		})
	}
	return attachments, nil
}

// List returns only the supported attachments.
func (l *Library) List() ([]Attachment, error) {
	all, err := l.Snapshot()
	if err != nil {
		return nil, err
	}
	supported := all[:0]
	for _, a := range all {
		if a.Supported() {
			supported = append(supported, a)
		}
	}
	return supported, nil
}

// Save stores r under name, appending " (n)" before the extension when the
// name is taken. It returns the name actually used.
func (l *Library) Save(name string, r io.Reader) (string, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if err := validName(name); err != nil {
		return "", err
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	candidate := name
	for suffix := 1; ; suffix++ {
		f, err := os.OpenFile(filepath.Join(l.dir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			candidate = fmt.Sprintf("%s (%d)%s", base, suffix, ext)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create %s: %w", candidate, err)
		}
		if _, err := io.Copy(f, r); err != nil {
			f.Close()
			os.Remove(f.Name())
			return "", fmt.Errorf("write %s: %w", candidate, err)
		}
		if err := f.Close(); err != nil {
			return "", err
		}
		l.log.Info().Str("file", candidate).Msg("saved attachment")
		return candidate, nil
	}
}

// Delete removes one attachment. Names that would escape the directory are
// rejected with ErrInvalidName.
func (l *Library) Delete(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	full := filepath.Join(l.dir, name)
	if filepath.Dir(full) != l.dir {
		return ErrInvalidName
	}
	if err := os.Remove(full); err != nil {
		return err
	}
	l.log.Info().Str("file", name).Msg("deleted attachment")
	return nil
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return ErrInvalidName
	}
	return nil
}
