package api

import (
	"net/http"
	voiceCallHandler "voice-assistant/internal/voicecall/handler"

	"github.com/gin-gonic/gin"
)

type API struct {
	router           *gin.RouterGroup
	voiceCallHandler voiceCallHandler.Handler
	webhookAuth      []gin.HandlerFunc
	metricsHandler   http.Handler
}

// New wires the HTTP routes. webhookAuth runs in front of the call webhook only, and
// metricsHandler may be nil to leave /metrics unregistered.
func New(router *gin.RouterGroup, voiceCallHandler voiceCallHandler.Handler, metricsHandler http.Handler, webhookAuth ...gin.HandlerFunc) API {
	return API{
		router:           router,
		voiceCallHandler: voiceCallHandler,
		webhookAuth:      webhookAuth,
		metricsHandler:   metricsHandler,
	}
}

func (a *API) RegisterRoutes() {
	a.Health()

	voiceRoute := append(append([]gin.HandlerFunc{}, a.webhookAuth...), a.voiceCallHandler.HandleVoice)
	a.router.POST("/voice", voiceRoute...)
	a.router.GET("/audio/:call_id", a.voiceCallHandler.HandleAudio)

	if a.metricsHandler != nil {
		a.router.GET("/metrics", gin.WrapH(a.metricsHandler))
	}
}

func (a *API) Health() {
	a.router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Voice AI Service is running"})
	})
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
}
