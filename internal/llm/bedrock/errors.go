package bedrock

import (
	"context"
	"errors"
	"fmt"

	"github.com/HerbHall/mobchat/pkg/llm"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// mapError translates Bedrock runtime exceptions into typed
// llm.ProviderError values. Throttling, validation and quota exceptions get
// dedicated messages; everything else is reported as unexpected with the
// raw exception text.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var pe *llm.ProviderError
	if errors.As(err, &pe) {
		return err
	}

	var (
		throttling *types.ThrottlingException
		validation *types.ValidationException
		quota      *types.ServiceQuotaExceededException
		denied     *types.AccessDeniedException
		notFound   *types.ResourceNotFoundException
		internal   *types.InternalServerException
		unavail    *types.ServiceUnavailableException
		modelTO    *types.ModelTimeoutException
		sendErr    *smithyhttp.RequestSendError
	)
	switch {
	case errors.As(err, &throttling):
		return llm.NewProviderError(llm.ErrCodeRateLimit, "Rate limit exceeded. Please try again later.", err)
	case errors.As(err, &validation):
		detail := validation.ErrorMessage()
		if detail == "" {
			detail = validation.ErrorCode()
		}
		return llm.NewProviderError(llm.ErrCodeInvalidRequest, "Invalid request: "+detail, err)
	case errors.As(err, &quota):
		return llm.NewProviderError(llm.ErrCodeQuotaExceeded, "Service quota exceeded. Contact administrator.", err)
	case errors.As(err, &denied):
		return llm.NewProviderError(llm.ErrCodeAuthentication, "Access denied: check AWS credentials", err)
	case errors.As(err, &notFound):
		return llm.NewProviderError(llm.ErrCodeModelNotFound, unexpected(err), err)
	case errors.As(err, &internal), errors.As(err, &unavail):
		return llm.NewProviderError(llm.ErrCodeServerError, unexpected(err), err)
	case errors.As(err, &modelTO), errors.Is(err, context.DeadlineExceeded):
		return llm.NewProviderError(llm.ErrCodeTimeout, unexpected(err), err)
	case errors.As(err, &sendErr):
		return llm.NewProviderError(llm.ErrCodeNetwork, unexpected(err), err)
	}
	return llm.NewProviderError(llm.ErrCodeUnknown, unexpected(err), err)
}

func unexpected(err error) string {
	return "Unexpected error: " + err.Error()
}

// errorCode returns the AWS error code for logging, or "" for non-API errors.
func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

func parseError(format string, args ...any) error {
	return llm.NewProviderError(llm.ErrCodeParse, "Failed to parse response: "+fmt.Sprintf(format, args...), nil)
}
