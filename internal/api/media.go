package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"whatsapp-bulk/internal/media"
	"whatsapp-bulk/pkg/models"
)

// Sniffed content types accepted for upload.
var allowedMimetypes = []string{"image/jpeg", "image/png", "video/mp4", "audio/mpeg", "audio/ogg", "application/ogg"}

type MediaHandler struct {
	Library  *media.Library
	MaxBytes int64
	MaxFiles int
	Log      zerolog.Logger
}

func NewMediaHandler(library *media.Library, maxUploadMB, maxFiles int, log zerolog.Logger) *MediaHandler {
	return &MediaHandler{
		Library:  library,
		MaxBytes: int64(maxUploadMB) << 20,
		MaxFiles: maxFiles,
		Log:      log,
	}
}

// ListMedia returns the supported attachments in send order.
func (h *MediaHandler) ListMedia(c *gin.Context) {
	list, err := h.Library.List()
	if err != nil {
		h.Log.Error().Err(err).Msg("error listing media files")
		c.JSON(http.StatusOK, []models.MediaFile{})
		return
	}

	files := make([]models.MediaFile, 0, len(list))
	for _, a := range list {
		files = append(files, models.MediaFile{
			Name:       a.Name,
			Kind:       string(a.Kind),
			Size:       a.Size,
			SizeHuman:  humanize.Bytes(uint64(a.Size)),
			URL:        "/assets/" + url.PathEscape(a.Name),
			ModifiedAt: a.ModTime,
		})
	}
	c.JSON(http.StatusOK, files)
}

// UploadMedia stores every acceptable file of the mediaFiles field. Files with
// an unsupported extension or content, or over the size limit, are rejected
// individually.
func (h *MediaHandler) UploadMedia(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.UploadResult{Message: "No files", Files: []string{}})
		return
	}
	headers := form.File["mediaFiles"]
	if len(headers) == 0 {
		h.Log.Warn().Msg("no files uploaded in request")
		c.JSON(http.StatusOK, models.UploadResult{Message: "No files", Files: []string{}})
		return
	}
	if len(headers) > h.MaxFiles {
		c.JSON(http.StatusBadRequest, models.UploadResult{
			Message: fmt.Sprintf("At most %d files per upload", h.MaxFiles),
			Files:   []string{},
		})
		return
	}

	result := models.UploadResult{Files: []string{}, Rejected: map[string]string{}}
	for _, fh := range headers {
		saved, err := h.store(fh)
		if err != nil {
			h.Log.Warn().Err(err).Str("file", fh.Filename).Msg("upload rejected")
			result.Rejected[fh.Filename] = err.Error()
			continue
		}
		result.Files = append(result.Files, saved)
	}

	result.OK = len(result.Files) > 0
	if !result.OK {
		result.Message = "Only .jpg, .png images, .mp4 videos/GIFs, .mp3/.ogg audio allowed!"
	}
	h.Log.Info().Strs("files", result.Files).Int("rejected", len(result.Rejected)).Msg("uploaded files to assets")
	c.JSON(http.StatusOK, result)
}

func (h *MediaHandler) store(fh *multipart.FileHeader) (string, error) {
	if h.MaxBytes > 0 && fh.Size > h.MaxBytes {
		return "", fmt.Errorf("file larger than %s", humanize.Bytes(uint64(h.MaxBytes)))
	}
	if media.Classify(filepath.Ext(fh.Filename)) == media.KindUnsupported {
		return "", media.ErrUnsupported
	}

	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return "", fmt.Errorf("detect content type: %w", err)
	}
	if !allowedContent(mtype) {
		return "", fmt.Errorf("%w: %s", media.ErrUnsupported, mtype.String())
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return h.Library.Save(fh.Filename, f)
}

func allowedContent(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if mimetype.EqualsAny(m.String(), allowedMimetypes...) {
			return true
		}
	}
	return false
}

// DeleteMedia removes one file from the assets directory.
func (h *MediaHandler) DeleteMedia(c *gin.Context) {
	name := c.Param("file")
	err := h.Library.Delete(name)
	switch {
	case errors.Is(err, media.ErrInvalidName):
		h.Log.Error().Str("file", name).Msg("attempted path traversal")
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "message": "Invalid file path"})
	case errors.Is(err, os.ErrNotExist):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "message": "File not found"})
	case err != nil:
		h.Log.Error().Err(err).Str("file", name).Msg("delete error")
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "message": "Delete failed"})
	default:
		c.JSON(http.StatusOK, gin.H{"ok": true, "message": "File deleted successfully"})
	}
}
