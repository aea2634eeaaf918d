package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"whatsapp-bulk/internal/contacts"
	"whatsapp-bulk/internal/media"
	"whatsapp-bulk/internal/whatsapp"
	"whatsapp-bulk/pkg/models"
)

type DashboardHandler struct {
	Sessions  Sessions
	Contacts  *contacts.Store
	Library   *media.Library
	Broadcast *BroadcastHandler
}

func NewDashboardHandler(sessions Sessions, store *contacts.Store, library *media.Library, broadcast *BroadcastHandler) *DashboardHandler {
	return &DashboardHandler{Sessions: sessions, Contacts: store, Library: library, Broadcast: broadcast}
}

func (h *DashboardHandler) GetStatus(c *gin.Context) {
	state := h.Sessions.State()
	status := models.Status{
		State:     state.String(),
		Connected: state == whatsapp.StateOpen && h.Sessions.Current() != nil,
		Contacts:  h.Contacts.Len(),
	}
	if list, err := h.Library.List(); err == nil {
		status.Attachments = len(list)
	}
	if h.Broadcast != nil {
		status.Sending = h.Broadcast.Busy()
	}
	c.JSON(http.StatusOK, status)
}
