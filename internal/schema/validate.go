package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// compiled caches compiled validators keyed by the schema document bytes.
// Documents come out of the generation cache, so the key space is bounded by
// the number of distinct target shapes in the process.
var compiled sync.Map // string -> *jsonschema.Schema

// Validate checks doc against the schema document. A nil error means the
// document structurally conforms; the error message otherwise pinpoints the
// first violated constraint.
func Validate(schemaRaw, doc json.RawMessage) error {
	if len(schemaRaw) == 0 || len(doc) == 0 {
		return nil
	}

	s, err := compileSchema(schemaRaw)
	if err != nil {
		return err
	}

	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		return fmt.Errorf("failed to decode document for validation: %w", err)
	}

	if err := s.Validate(v); err != nil {
		return fmt.Errorf("document does not match schema: %w", err)
	}
	return nil
}

func compileSchema(schemaRaw json.RawMessage) (*jsonschema.Schema, error) {
	key := string(schemaRaw)
	if s, ok := compiled.Load(key); ok {
		return s.(*jsonschema.Schema), nil
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(schemaRaw)); err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	s, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	actual, _ := compiled.LoadOrStore(key, s)
	return actual.(*jsonschema.Schema), nil
}
