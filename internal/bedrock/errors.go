package bedrock

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
)

var ErrEmptyContent = errors.New("model response contained no content blocks")

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotReady
	KindThrottled
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotReady:
		return "not_ready"
	case KindThrottled:
		return "throttled"
	}
	return "unknown"
}

// Error is a classified provider failure. Message holds the provider's text.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("bedrock %s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func classify(err error) *Error {
	var (
		validation *types.ValidationException
		notReady   *types.ModelNotReadyException
		throttled  *types.ThrottlingException
	)
	kind := KindUnknown
	switch {
	case errors.As(err, &validation):
		kind = KindValidation
	case errors.As(err, &notReady):
		kind = KindNotReady
	case errors.As(err, &throttled):
		kind = KindThrottled
	default:
		// errors not modelled by the runtime client still carry the code
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "ValidationException":
				kind = KindValidation
			case "ModelNotReadyException":
				kind = KindNotReady
			case "ThrottlingException", "TooManyRequestsException":
				kind = KindThrottled
			}
		}
	}
	return &Error{Kind: kind, Message: err.Error(), Err: err}
}
