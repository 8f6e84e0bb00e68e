package extract

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/jackzampolin/distill/internal/providers"
)

func TestValidateResult(t *testing.T) {
	raw := json.RawMessage(`{"id":"resp-1"}`)

	tests := []struct {
		name    string
		res     *providers.ChatResult
		wantErr error
	}{
		{
			name: "filtered wins even with content present",
			res: &providers.ChatResult{
				FinishReason: providers.FinishContentFilter,
				Parts:        []providers.ResultPart{{Text: `{"a":1}`}},
				Raw:          raw,
			},
			wantErr: ErrFiltered,
		},
		{
			name: "filtered with zero parts",
			res: &providers.ChatResult{
				FinishReason: providers.FinishContentFilter,
				Raw:          raw,
			},
			wantErr: ErrFiltered,
		},
		{
			name: "truncated wins even with content present",
			res: &providers.ChatResult{
				FinishReason: providers.FinishLength,
				Parts:        []providers.ResultPart{{Text: `{"a":`}},
				Raw:          raw,
			},
			wantErr: ErrTruncated,
		},
		{
			name:    "zero content parts",
			res:     &providers.ChatResult{FinishReason: providers.FinishStop, Raw: raw},
			wantErr: ErrEmptyResponse,
		},
		{
			name: "empty first part",
			res: &providers.ChatResult{
				FinishReason: providers.FinishStop,
				Parts:        []providers.ResultPart{{Text: "  \n"}},
				Raw:          raw,
			},
			wantErr: ErrNullContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validateResult(tt.res)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}

			var respErr *ResponseError
			if !errors.As(err, &respErr) {
				t.Fatalf("error = %T, want *ResponseError", err)
			}
			if string(respErr.Raw) != string(raw) {
				t.Error("raw response body not retained for diagnostics")
			}
		})
	}
}

func TestValidateResult_OK(t *testing.T) {
	text, err := validateResult(&providers.ChatResult{
		FinishReason: providers.FinishStop,
		Parts:        []providers.ResultPart{{Text: `{"a":1}`}},
	})
	if err != nil {
		t.Fatalf("validateResult() error = %v", err)
	}
	if text != `{"a":1}` {
		t.Errorf("text = %q", text)
	}
}
