// Package schema derives JSON Schema documents from Go target shapes and
// validates model output against them.
//
// Generated documents are strict by construction: every object disallows
// unknown properties and lists all of its declared properties as required.
// That forces the model toward an exact structural match with the caller's
// shape; callers express optionality with pointer fields (nullable types)
// rather than omitted keys.
package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/invopop/jsonschema"
)

// GenerationError indicates a target shape could not be represented as a
// JSON Schema. It is surfaced before any network call is made.
type GenerationError struct {
	Shape  string
	Reason string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("cannot generate schema for %s: %s", e.Shape, e.Reason)
}

// cache maps reflect.Type to the generated schema document. Generation is
// pure and deterministic, so concurrent first use for the same shape may
// recompute idempotently; the document is shared read-only afterwards.
var cache sync.Map // reflect.Type -> json.RawMessage

// Generate derives a JSON Schema document from the dynamic type of shape.
// Pointer shapes are dereferenced. The same shape always yields
// byte-identical output, so results are cached for the process lifetime.
func Generate(shape any) (json.RawMessage, error) {
	if shape == nil {
		return nil, &GenerationError{Shape: "<nil>", Reason: "nil shape"}
	}
	return ForType(reflect.TypeOf(shape))
}

// ForType derives a JSON Schema document for t. See Generate.
func ForType(t reflect.Type) (json.RawMessage, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := cache.Load(t); ok {
		return cached.(json.RawMessage), nil
	}

	doc, err := generate(t)
	if err != nil {
		return nil, err
	}

	// First writer wins; any concurrent generation produced identical bytes.
	actual, _ := cache.LoadOrStore(t, doc)
	return actual.(json.RawMessage), nil
}

func generate(t reflect.Type) (json.RawMessage, error) {
	if t.Kind() != reflect.Struct {
		return nil, &GenerationError{Shape: t.String(), Reason: "target shape must be a struct"}
	}
	if err := checkShape(t, t.String(), map[reflect.Type]bool{}); err != nil {
		return nil, err
	}

	r := &jsonschema.Reflector{
		// Inline nested definitions so the document stands alone. Response
		// format endpoints reject $ref indirection more often than not.
		DoNotReference: true,
		ExpandedStruct: true,
		// Unknown keys are rejected for every object in the tree.
		AllowAdditionalProperties: false,
		KeyNamer:                  lowerCamel,
	}

	s := r.ReflectFromType(t)
	s.Version = ""

	raw, err := json.Marshal(s)
	if err != nil {
		return nil, &GenerationError{Shape: t.String(), Reason: err.Error()}
	}

	// Round-trip through a plain map: encoding/json sorts map keys, which
	// makes the final document canonical, and the map form is what the
	// strictness rewrite below walks.
	var root map[string]any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, &GenerationError{Shape: t.String(), Reason: err.Error()}
	}

	markNullable(root, t)

	if err := tighten(root, t.String()); err != nil {
		return nil, err
	}

	doc, err := json.Marshal(root)
	if err != nil {
		return nil, &GenerationError{Shape: t.String(), Reason: err.Error()}
	}
	return doc, nil
}

var timeType = reflect.TypeOf(time.Time{})

// checkShape rejects field kinds that have no JSON Schema representation
// before the reflector runs, so unsupported shapes fail deterministically.
func checkShape(t reflect.Type, shape string, seen map[reflect.Type]bool) error {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if seen[t] {
		return nil
	}
	seen[t] = true

	switch t.Kind() {
	case reflect.Chan, reflect.Func, reflect.Complex64, reflect.Complex128,
		reflect.UnsafePointer, reflect.Uintptr:
		return &GenerationError{Shape: shape, Reason: fmt.Sprintf("type %s has no JSON Schema representation", t)}
	case reflect.Interface:
		return &GenerationError{Shape: shape, Reason: fmt.Sprintf("interface type %s has no fixed JSON Schema representation", t)}
	case reflect.Struct:
		if t == timeType {
			return nil
		}
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			if _, skip := jsonName(field); skip {
				continue
			}
			if err := checkShape(field.Type, shape, seen); err != nil {
				return err
			}
		}
	case reflect.Slice, reflect.Array:
		return checkShape(t.Elem(), shape, seen)
	case reflect.Map:
		return checkShape(t.Elem(), shape, seen)
	}
	return nil
}

// markNullable widens the type of every pointer field to include "null".
// Callers express optionality with pointer fields; all properties stay
// required, so the model must emit an explicit null rather than omit the key.
func markNullable(node map[string]any, t reflect.Type) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || t == timeType {
		return
	}

	props, ok := node["properties"].(map[string]any)
	if !ok {
		return
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		if field.Anonymous {
			// Embedded fields are inlined into this object.
			markNullable(node, field.Type)
			continue
		}

		name, skip := jsonName(field)
		if skip {
			continue
		}
		sub, ok := props[name].(map[string]any)
		if !ok {
			continue
		}

		ft := field.Type
		if ft.Kind() == reflect.Pointer {
			widenNull(sub)
			ft = ft.Elem()
		}

		switch ft.Kind() {
		case reflect.Struct:
			markNullable(sub, ft)
		case reflect.Slice, reflect.Array:
			if items, ok := sub["items"].(map[string]any); ok {
				elem := ft.Elem()
				if elem.Kind() == reflect.Pointer {
					widenNull(items)
					elem = elem.Elem()
				}
				markNullable(items, elem)
			}
		}
	}
}

// widenNull rewrites {"type": X} to {"type": [X, "null"]}.
func widenNull(node map[string]any) {
	switch tv := node["type"].(type) {
	case string:
		node["type"] = []any{tv, "null"}
	case []any:
		for _, v := range tv {
			if v == "null" {
				return
			}
		}
		node["type"] = append(tv, "null")
	}
}

// jsonName resolves the property name for a struct field the same way the
// reflector does. The KeyNamer applies to tag-derived names too, so a tag
// like `json:"DisplayName"` still becomes the property "displayName".
func jsonName(field reflect.StructField) (name string, skip bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", true
	}
	if idx := strings.Index(tag, ","); idx >= 0 {
		tag = tag[:idx]
	}
	if tag != "" {
		return lowerCamel(tag), false
	}
	return lowerCamel(field.Name), false
}

// tighten rewrites every object schema so that all declared properties are
// required and unknown properties are disallowed, and rejects property
// schemas that carry no type information (interfaces, channels, funcs reflect
// to the empty schema, which would silently accept anything).
func tighten(node map[string]any, shape string) error {
	if props, ok := node["properties"].(map[string]any); ok {
		required := make([]string, 0, len(props))
		for name, sub := range props {
			subSchema, ok := sub.(map[string]any)
			if !ok || !describable(subSchema) {
				return &GenerationError{
					Shape:  shape,
					Reason: fmt.Sprintf("field %q has no JSON Schema representation", name),
				}
			}
			required = append(required, name)
			if err := tighten(subSchema, shape); err != nil {
				return err
			}
		}
		sort.Strings(required)
		node["required"] = required
		node["additionalProperties"] = false
	}

	if items, ok := node["items"].(map[string]any); ok {
		if !describable(items) {
			return &GenerationError{Shape: shape, Reason: "array items have no JSON Schema representation"}
		}
		if err := tighten(items, shape); err != nil {
			return err
		}
	}

	for _, key := range []string{"anyOf", "oneOf", "allOf"} {
		if branches, ok := node[key].([]any); ok {
			for _, b := range branches {
				if sub, ok := b.(map[string]any); ok {
					if err := tighten(sub, shape); err != nil {
						return err
					}
				}
			}
		}
	}

	return nil
}

// describable reports whether a schema node constrains its value at all.
func describable(node map[string]any) bool {
	for _, key := range []string{"type", "$ref", "enum", "const", "properties", "items", "anyOf", "oneOf", "allOf"} {
		if _, ok := node[key]; ok {
			return true
		}
	}
	return false
}

// lowerCamel converts an exported Go field name to conventional lower camel
// case: Name -> name, PublicationYear -> publicationYear, ID -> id,
// URLPath -> urlPath. Explicit json tags take precedence over this.
func lowerCamel(name string) string {
	runes := []rune(name)
	if len(runes) == 0 {
		return name
	}

	// Length of the leading uppercase run.
	upper := 0
	for upper < len(runes) && unicode.IsUpper(runes[upper]) {
		upper++
	}

	switch {
	case upper == 0:
		return name
	case upper == len(runes):
		// Whole name is an acronym.
		for i := range runes {
			runes[i] = unicode.ToLower(runes[i])
		}
	case upper == 1:
		runes[0] = unicode.ToLower(runes[0])
	default:
		// Leading acronym followed by a word: lowercase all but the last
		// upper rune, which starts the next word.
		for i := 0; i < upper-1; i++ {
			runes[i] = unicode.ToLower(runes[i])
		}
	}
	return string(runes)
}
