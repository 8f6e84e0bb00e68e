package extract

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/jackzampolin/distill/internal/schema"
)

// decodeInto converts completion text into the target value. Every failure is
// a *MismatchError carrying the offending raw text, so the retry orchestrator
// can route it onto the corrective path.
func decodeInto(text string, schemaRaw json.RawMessage, target string, out any) error {
	doc, err := normalizeJSON(text)
	if err != nil {
		return &MismatchError{Target: target, Raw: text, Err: err}
	}

	if err := schema.Validate(schemaRaw, doc); err != nil {
		return &MismatchError{Target: target, Raw: text, Err: err}
	}

	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return &MismatchError{Target: target, Raw: text, Err: err}
	}
	return nil
}

// decodeRaw validates completion text against a caller-supplied schema and
// returns the normalized JSON document.
func decodeRaw(text string, schemaRaw json.RawMessage, target string) (json.RawMessage, error) {
	doc, err := normalizeJSON(text)
	if err != nil {
		return nil, &MismatchError{Target: target, Raw: text, Err: err}
	}
	if err := schema.Validate(schemaRaw, doc); err != nil {
		return nil, &MismatchError{Target: target, Raw: text, Err: err}
	}
	return doc, nil
}

// normalizeJSON parses JSON from model output, with lightweight recovery for
// markdown code fences, surrounding prose, and minor syntax damage.
func normalizeJSON(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errEmptyOutput
	}

	candidates := []string{content}
	if stripped := stripCodeFences(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	if extracted := extractJSONCandidate(content); extracted != "" && extracted != content {
		candidates = append(candidates, extracted)
	}

	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}

		if doc, ok := tryParse(candidate); ok {
			return doc, nil
		}

		// Last local resort before a corrective round-trip: repair common
		// syntax damage (single quotes, trailing commas, unquoted keys).
		if repaired, err := jsonrepair.JSONRepair(candidate); err == nil {
			if doc, ok := tryParse(repaired); ok {
				return doc, nil
			}
		}
	}

	return nil, errUnparsableOutput
}

var (
	errEmptyOutput      = jsonError("empty structured output")
	errUnparsableOutput = jsonError("failed to parse structured JSON")
)

type jsonError string

func (e jsonError) Error() string { return string(e) }

// tryParse decodes a candidate and re-marshals it into canonical form.
func tryParse(candidate string) (json.RawMessage, bool) {
	var parsed any
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		return nil, false
	}
	normalized, err := json.Marshal(parsed)
	if err != nil {
		return nil, false
	}
	return normalized, true
}

// stripCodeFences removes a surrounding markdown code fence, if any.
func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return ""
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return ""
	}

	// Drop first fence line.
	lines = lines[1:]
	// Drop trailing fence if present.
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// extractJSONCandidate pulls the outermost JSON object or array out of
// surrounding prose.
func extractJSONCandidate(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ""
	}

	objectStart := strings.Index(trimmed, "{")
	arrayStart := strings.Index(trimmed, "[")

	start := -1
	closeChar := ""
	switch {
	case objectStart >= 0 && arrayStart >= 0:
		if objectStart < arrayStart {
			start = objectStart
			closeChar = "}"
		} else {
			start = arrayStart
			closeChar = "]"
		}
	case objectStart >= 0:
		start = objectStart
		closeChar = "}"
	case arrayStart >= 0:
		start = arrayStart
		closeChar = "]"
	default:
		return ""
	}

	end := strings.LastIndex(trimmed, closeChar)
	if end < start {
		return ""
	}
	return strings.TrimSpace(trimmed[start : end+1])
}
