package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	thumbSize    = 96
	thumbQuality = 60
	videoSeekPos = "00:00:01.000"
)

// Thumbnailer renders small JPEG previews.
type Thumbnailer interface {
	ImageThumbnail(ctx context.Context, path string) ([]byte, error)
	VideoThumbnail(ctx context.Context, path string) ([]byte, error)
}

// DefaultThumbnailer resizes images in-process and grabs video frames with
// the ffmpeg binary.
type DefaultThumbnailer struct {
	FFmpegPath string
}

func (t DefaultThumbnailer) ImageThumbnail(_ context.Context, path string) ([]byte, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	thumb := imaging.Fill(img, thumbSize, thumbSize, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(thumbQuality)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func (t DefaultThumbnailer) VideoThumbnail(ctx context.Context, path string) ([]byte, error) {
	bin := t.FFmpegPath
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, bin,
		"-hide_banner", "-loglevel", "error",
		"-ss", videoSeekPos,
		"-i", path,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:%d", thumbSize, thumbSize),
		"-f", "image2pipe", "-vcodec", "mjpeg",
		"pipe:1",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, errors.New("ffmpeg produced no frame")
	}
	return stdout.Bytes(), nil
}
