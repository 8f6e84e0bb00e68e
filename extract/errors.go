package extract

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel kinds for unusable completions, checked with errors.Is. The
// concrete error in the chain is a *ResponseError carrying the raw response
// body for diagnostics.
var (
	ErrFiltered      = errors.New("response blocked by content filter")
	ErrTruncated     = errors.New("response truncated by output length limit")
	ErrEmptyResponse = errors.New("response contains no content parts")
	ErrNullContent   = errors.New("response content is empty")
)

// ResponseError is a completion rejected by the response validator.
type ResponseError struct {
	Kind error           // one of the sentinel kinds above
	Raw  json.RawMessage // response body as received, if obtainable
}

func (e *ResponseError) Error() string {
	return e.Kind.Error()
}

func (e *ResponseError) Unwrap() error {
	return e.Kind
}

// MismatchError is a structural mismatch: the completion carried text, but
// the text does not convert into the target shape. The retry orchestrator
// treats this kind specially: the next attempt's prompt embeds Raw plus a
// correction directive.
type MismatchError struct {
	Target string // target shape name
	Raw    string // offending model output, verbatim
	Err    error
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("output does not match target shape %s: %v", e.Target, e.Err)
}

func (e *MismatchError) Unwrap() error {
	return e.Err
}
