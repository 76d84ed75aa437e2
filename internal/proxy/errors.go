package proxy

import (
	"errors"
	"net/http"

	"github.com/Uuq114/JanusBedrock/internal/bedrock"
)

const (
	modelNotReadyDetail = "Model is warming up, please retry in a few seconds"
	throttledDetail     = "Rate limit exceeded, please retry later"
)

// statusFor maps a provider failure to the HTTP status and detail returned
// to the caller. Only validation and unknown failures echo provider text.
func statusFor(err error) (int, string) {
	var bErr *bedrock.Error
	if !errors.As(err, &bErr) {
		return http.StatusInternalServerError, "Error calling Bedrock: " + err.Error()
	}

	switch bErr.Kind {
	case bedrock.KindValidation:
		return http.StatusBadRequest, "Invalid request: " + bErr.Message
	case bedrock.KindNotReady:
		return http.StatusServiceUnavailable, modelNotReadyDetail
	case bedrock.KindThrottled:
		return http.StatusTooManyRequests, throttledDetail
	}
	return http.StatusInternalServerError, "Error calling Bedrock: " + bErr.Message
}
