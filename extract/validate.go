package extract

import (
	"strings"

	"github.com/jackzampolin/distill/internal/providers"
)

// validateResult inspects a completion's finish reason and content parts and
// returns the usable text, or a *ResponseError.
//
// Order matters: filter and length checks precede content checks because a
// filtered response may also report zero content parts, and the filter is the
// actionable fact.
func validateResult(res *providers.ChatResult) (string, error) {
	switch res.FinishReason {
	case providers.FinishContentFilter:
		return "", &ResponseError{Kind: ErrFiltered, Raw: res.Raw}
	case providers.FinishLength:
		return "", &ResponseError{Kind: ErrTruncated, Raw: res.Raw}
	}

	if len(res.Parts) == 0 {
		return "", &ResponseError{Kind: ErrEmptyResponse, Raw: res.Raw}
	}

	text := res.Parts[0].Text
	if strings.TrimSpace(text) == "" {
		return "", &ResponseError{Kind: ErrNullContent, Raw: res.Raw}
	}

	return text, nil
}
