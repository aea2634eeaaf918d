package api

import (
	"encoding/csv"
	"net/http"

	"github.com/gin-gonic/gin"

	"whatsapp-bulk/internal/contacts"
	"whatsapp-bulk/internal/delivery"
)

type ContactHandler struct {
	Store       *contacts.Store
	Reloader    *contacts.Reloader
	CountryCode string
}

func NewContactHandler(store *contacts.Store, reloader *contacts.Reloader, countryCode string) *ContactHandler {
	return &ContactHandler{Store: store, Reloader: reloader, CountryCode: countryCode}
}

func (h *ContactHandler) GetContacts(c *gin.Context) {
	c.JSON(http.StatusOK, h.Store.All())
}

// ReloadContacts rereads the spreadsheet immediately instead of waiting for
// the schedule.
func (h *ContactHandler) ReloadContacts(c *gin.Context) {
	if h.Reloader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "message": "Reload not available"})
		return
	}
	h.Reloader.Reload()
	c.JSON(http.StatusOK, gin.H{"ok": true, "count": h.Store.Len()})
}

// ExportContacts writes the loaded contacts as CSV together with the number
// each one would be sent to.
func (h *ContactHandler) ExportContacts(c *gin.Context) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=contacts.csv")
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	w.Write([]string{"Number", "Name", "Recipient", "Valid"})
	for _, contact := range h.Store.All() {
		recipient, err := delivery.NormalizeNumber(contact.Number, h.CountryCode)
		valid := "yes"
		if err != nil {
			valid = "no"
		}
		w.Write([]string{contact.Number, contact.Name, recipient, valid})
	}
	w.Flush()
}
