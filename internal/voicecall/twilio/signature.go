package twilio

import (
	"voice-assistant/internal/apierrors"
	"voice-assistant/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/twilio/twilio-go/client"
)

const signatureHeader = "X-Twilio-Signature"

// SignatureMiddleware rejects webhook requests whose X-Twilio-Signature does not match.
// The signed URL is rebuilt from publicBaseURL because the server usually sits behind a proxy.
func SignatureMiddleware(authToken, publicBaseURL string, logger *observability.Logger) gin.HandlerFunc {
	validator := client.NewRequestValidator(authToken)

	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if err := c.Request.ParseForm(); err != nil {
			logger.Error(ctx, "failed to parse webhook form", err)
			apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "invalid form body"))
			c.Abort()
			return
		}

		params := make(map[string]string, len(c.Request.PostForm))
		for key, values := range c.Request.PostForm {
			if len(values) > 0 {
				params[key] = values[0]
			}
		}

		signedURL := publicBaseURL + c.Request.URL.RequestURI()
		if !validator.Validate(signedURL, params, c.GetHeader(signatureHeader)) {
			logger.Warn(ctx, "rejected webhook with invalid signature")
			apierrors.RespondWithError(c, apierrors.Forbidden(apierrors.CodeInvalidSignature, "invalid request signature"))
			c.Abort()
			return
		}

		c.Next()
	}
}
