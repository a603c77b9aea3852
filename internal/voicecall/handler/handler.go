package handler

import (
	"net/http"
	"voice-assistant/internal/apierrors"
	authProcessor "voice-assistant/internal/auth/processor"
	"voice-assistant/internal/observability"
	"voice-assistant/internal/voicecall/processor"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	callProcessor *processor.CallProcessor
	signer        *authProcessor.AudioTokenSigner
	publicBaseURL string
	logger        *observability.Logger
}

func New(callProcessor *processor.CallProcessor, signer *authProcessor.AudioTokenSigner, publicBaseURL string, logger *observability.Logger) Handler {
	return Handler{
		callProcessor: callProcessor,
		signer:        signer,
		publicBaseURL: publicBaseURL,
		logger:        logger,
	}
}

// VoiceWebhookRequest is the subset of the provider's webhook form the call flow reads.
type VoiceWebhookRequest struct {
	CallSID      string `form:"CallSid"`
	Digits       string `form:"Digits"`
	RecordingURL string `form:"RecordingUrl"`
}

// HandleVoice answers every call webhook with call-control markup. It always responds
// 200, even when the turn failed, so the provider keeps the call up.
func (h *Handler) HandleVoice(c *gin.Context) {
	ctx := c.Request.Context()

	var req VoiceWebhookRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.Error(ctx, "failed to bind voice webhook", err)
	}

	reply := h.callProcessor.HandleEvent(ctx, processor.CallEvent{
		CallSID:      req.CallSID,
		Digits:       req.Digits,
		RecordingURL: req.RecordingURL,
	})

	markup, err := h.render(c, req.CallSID, reply)
	if err != nil {
		h.logger.Error(ctx, "failed to render call markup", err)
		markup = apologyMarkup
	}

	c.Header("Content-Type", "text/xml")
	c.String(http.StatusOK, markup)
}

// HandleAudio serves the latest synthesized reply for a call.
func (h *Handler) HandleAudio(c *gin.Context) {
	ctx := c.Request.Context()
	callSID := c.Param("call_id")
	ctx = observability.WithFields(ctx, observability.Field{Key: "call_sid", Value: callSID})

	if err := h.signer.Verify(c.Query("token"), callSID); err != nil {
		h.logger.InfoWithError(ctx, "rejected audio request", err)
		apierrors.RespondWithError(c, err)
		return
	}

	clip, err := h.callProcessor.GetAudio(ctx, callSID)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, clip.ContentType(), clip.Data)
}
