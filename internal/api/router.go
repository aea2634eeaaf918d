package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Handlers struct {
	Contacts  *ContactHandler
	Media     *MediaHandler
	Broadcast *BroadcastHandler
	Dashboard *DashboardHandler

	// WS upgrades /ws requests; nil disables the route.
	WS http.HandlerFunc

	AssetsDir string
}

func NewRouter(h Handlers, log zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(log), CORS())
	r.MaxMultipartMemory = 32 << 20

	if h.AssetsDir != "" {
		r.Static("/assets", h.AssetsDir)
	}
	if h.WS != nil {
		r.GET("/ws", gin.WrapF(h.WS))
	}

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/status", h.Dashboard.GetStatus)

		apiGroup.GET("/contacts", h.Contacts.GetContacts)
		apiGroup.POST("/contacts/reload", h.Contacts.ReloadContacts)
		apiGroup.GET("/contacts/export", h.Contacts.ExportContacts)

		apiGroup.GET("/media", h.Media.ListMedia)
		apiGroup.POST("/upload-media", h.Media.UploadMedia)
		apiGroup.DELETE("/media/:file", h.Media.DeleteMedia)

		apiGroup.POST("/send-messages", h.Broadcast.SendMessages)
		apiGroup.GET("/runs", h.Broadcast.GetRuns)
		apiGroup.GET("/runs/:id", h.Broadcast.GetRun)
	}
	return r
}
