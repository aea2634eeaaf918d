package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"whatsapp-bulk/internal/contacts"
	"whatsapp-bulk/internal/delivery"
	"whatsapp-bulk/internal/history"
	"whatsapp-bulk/internal/whatsapp"
	"whatsapp-bulk/pkg/models"
)

// Sessions is the connection manager as seen by the HTTP layer.
type Sessions interface {
	whatsapp.Session
	Current() whatsapp.Session
	State() whatsapp.State
}

// RunNotifier is told about every finished run.
type RunNotifier interface {
	RunFinished(*delivery.Summary)
}

type BroadcastHandler struct {
	Sessions  Sessions
	Deliverer *delivery.Deliverer
	Contacts  *contacts.Store
	History   *history.Store
	Notifier  RunNotifier
	Log       zerolog.Logger

	running sync.Mutex
}

func NewBroadcastHandler(sessions Sessions, deliverer *delivery.Deliverer, store *contacts.Store, hist *history.Store, notifier RunNotifier, log zerolog.Logger) *BroadcastHandler {
	return &BroadcastHandler{
		Sessions:  sessions,
		Deliverer: deliverer,
		Contacts:  store,
		History:   hist,
		Notifier:  notifier,
		Log:       log,
	}
}

// Busy reports whether a run is in progress.
func (h *BroadcastHandler) Busy() bool {
	if h.running.TryLock() {
		h.running.Unlock()
		return false
	}
	return true
}

// SendMessages runs a delivery over the current contact list and answers
// once every contact has been handled.
func (h *BroadcastHandler) SendMessages(c *gin.Context) {
	var req models.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "message": err.Error()})
		return
	}
	mode := delivery.ParseMode(req.Mode)
	h.Log.Info().Str("template", preview(req.MessageTemplate)).Str("mode", string(mode)).Msg("starting send-messages")

	if h.Sessions.Current() == nil {
		h.Log.Error().Msg("whatsapp socket not connected")
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "message": "WhatsApp not connected"})
		return
	}
	if !h.running.TryLock() {
		c.JSON(http.StatusConflict, gin.H{"ok": false, "message": "A send is already in progress"})
		return
	}
	defer h.running.Unlock()

	// The run outlives a client that goes away mid-request.
	ctx := context.WithoutCancel(c.Request.Context())
	list := h.Contacts.All()

	sum, err := h.Deliverer.Deliver(ctx, h.Sessions, list, delivery.TemplateRenderer(req.MessageTemplate), mode)
	if errors.Is(err, whatsapp.ErrNotConnected) {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "message": "WhatsApp not connected"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "message": err.Error()})
		return
	}

	if h.History != nil {
		if err := h.History.SaveRun(ctx, sum, req.MessageTemplate); err != nil {
			h.Log.Error().Err(err).Str("run", sum.RunID).Msg("error saving run history")
		}
	}
	if h.Notifier != nil {
		h.Notifier.RunFinished(sum)
	}
	h.Log.Info().Int("success", sum.SuccessCount).Int("failed", sum.FailureCount).Msg("send completed")

	details := make([]models.SendFailure, 0, len(sum.Details))
	for _, d := range sum.Details {
		details = append(details, models.SendFailure{Number: d.Number, File: d.File, Error: d.Error})
	}
	c.JSON(http.StatusOK, models.SendResponse{
		OK:    true,
		RunID: sum.RunID,
		Summary: models.SendSummary{
			Total:   sum.Total,
			Success: sum.SuccessCount,
			Failed:  sum.FailureCount,
		},
		SuccessNumbers: sum.SuccessNumbers,
		FailedNumbers:  sum.FailedNumbers,
		Details:        details,
	})
}

func (h *BroadcastHandler) GetRuns(c *gin.Context) {
	if h.History == nil {
		c.JSON(http.StatusOK, []any{})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := h.History.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, runs)
}

func (h *BroadcastHandler) GetRun(c *gin.Context) {
	if h.History == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}
	run, err := h.History.GetRun(c.Request.Context(), c.Param("id"))
	if errors.Is(err, history.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, run)
}

func preview(s string) string {
	r := []rune(s)
	if len(r) > 50 {
		return string(r[:50]) + "..."
	}
	return s
}
