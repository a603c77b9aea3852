package apierrors

import (
	"errors"
	authProcessor "voice-assistant/internal/auth/processor"
	voicecallProcessor "voice-assistant/internal/voicecall/processor"
)

// MapError converts domain/processor errors to APIErrors.
//
// If the error is already an APIError, it returns it as-is.
// If the error is unknown, it returns a sanitized InternalError (500).
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}

	// Check if already an APIError
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, voicecallProcessor.ErrAudioNotFound):
		return NotFound(CodeAudioNotFound, "No audio available for this call")

	case errors.Is(err, voicecallProcessor.ErrMissingCallSID):
		return BadRequest(CodeMissingCallSID, "CallSid is required")

	case errors.Is(err, authProcessor.ErrInvalidAudioToken):
		return Forbidden(CodeInvalidAudioToken, "Audio link is invalid or has expired")

	case errors.Is(err, voicecallProcessor.ErrSessionUnavailable):
		return ServiceUnavailable(CodeServiceUnavailable, "Session store is temporarily unavailable. Please try again later.", err)

	default:
		return InternalError(err)
	}
}
