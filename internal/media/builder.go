package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"whatsapp-bulk/internal/whatsapp"
)

// Builder turns attachments into outgoing messages.
type Builder struct {
	thumbs Thumbnailer
	log    zerolog.Logger
}

func NewBuilder(thumbs Thumbnailer, log zerolog.Logger) *Builder {
	return &Builder{thumbs: thumbs, log: log}
}

// Build reads the attachment and produces a kind-specific message. caption is
// attached to images and videos only; audio never carries one. Thumbnail
// failures are logged and the message goes out without a preview.
func (b *Builder) Build(ctx context.Context, att Attachment, caption string) (*whatsapp.OutgoingMessage, error) {
	if att.Kind == KindUnsupported {
		return nil, fmt.Errorf("%s: %w", att.Name, ErrUnsupported)
	}

	data, err := os.ReadFile(att.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", att.Name, err)
	}

	switch att.Kind {
	case KindImage:
		thumb, err := b.thumbs.ImageThumbnail(ctx, att.Path)
		if err != nil {
			b.log.Warn().Err(err).Str("file", att.Name).Msg("failed to generate image thumbnail")
			thumb = nil
		}
		return &whatsapp.OutgoingMessage{
			Type: whatsapp.TypeImage,
			Image: &whatsapp.MediaObj{
				Filename:  att.Name,
				Mimetype:  mimetype.Detect(data).String(),
				Caption:   caption,
				Data:      data,
				Thumbnail: thumb,
			},
		}, nil

	case KindVideo:
		thumb, err := b.thumbs.VideoThumbnail(ctx, att.Path)
		if err != nil {
			b.log.Warn().Err(err).Str("file", att.Name).Msg("failed to generate video thumbnail")
			thumb = nil
		}
		return &whatsapp.OutgoingMessage{
			Type: whatsapp.TypeVideo,
			Video: &whatsapp.MediaObj{
				Filename:    att.Name,
				Mimetype:    mimetype.Detect(data).String(),
				Caption:     caption,
				GIFPlayback: strings.Contains(strings.ToLower(filepath.Base(att.Path)), "gif"),
				Data:        data,
				Thumbnail:   thumb,
			},
		}, nil

	case KindAudio:
		return &whatsapp.OutgoingMessage{
			Type: whatsapp.TypeAudio,
			Audio: &whatsapp.MediaObj{
				Filename: att.Name,
				Mimetype: whatsapp.AudioMimetype,
				Data:     data,
			},
		}, nil
	}
	return nil, fmt.Errorf("%s: %w", att.Name, ErrUnsupported)
}
