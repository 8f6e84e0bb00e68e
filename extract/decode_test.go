package extract

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/jackzampolin/distill/internal/schema"
)

type person struct {
	Name    string  `json:"name"`
	Age     int     `json:"age"`
	Title   *string `json:"title"`
	Summary string  `json:"summary"`
}

func personSchema(t *testing.T) json.RawMessage {
	t.Helper()
	raw, err := schema.Generate(person{})
	if err != nil {
		t.Fatalf("schema.Generate() error = %v", err)
	}
	return raw
}

func TestDecodeInto(t *testing.T) {
	schemaRaw := personSchema(t)

	tests := []struct {
		name string
		text string
	}{
		{"plain JSON", `{"name":"Jane","age":34,"title":"product manager","summary":"PM"}`},
		{"fenced JSON", "```json\n{\"name\":\"Jane\",\"age\":34,\"title\":\"product manager\",\"summary\":\"PM\"}\n```"},
		{"prose-wrapped JSON", `Here is the result: {"name":"Jane","age":34,"title":"product manager","summary":"PM"} Hope that helps!`},
		{"repairable JSON", `{'name': 'Jane', 'age': 34, 'title': 'product manager', 'summary': 'PM',}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got person
			if err := decodeInto(tt.text, schemaRaw, "person", &got); err != nil {
				t.Fatalf("decodeInto() error = %v", err)
			}
			if got.Name != "Jane" || got.Age != 34 {
				t.Errorf("got %+v", got)
			}
			if got.Title == nil || *got.Title != "product manager" {
				t.Errorf("title = %v", got.Title)
			}
		})
	}
}

func TestDecodeInto_NullableField(t *testing.T) {
	var got person
	text := `{"name":"Jane","age":34,"title":null,"summary":"PM"}`
	if err := decodeInto(text, personSchema(t), "person", &got); err != nil {
		t.Fatalf("decodeInto() error = %v", err)
	}
	if got.Title != nil {
		t.Errorf("title = %v, want nil", got.Title)
	}
}

func TestDecodeInto_Mismatch(t *testing.T) {
	schemaRaw := personSchema(t)

	tests := []struct {
		name string
		text string
	}{
		{"missing required field", `{"name":"Jane","age":34,"title":null}`},
		{"type mismatch", `{"name":"Jane","age":"thirty-four","title":null,"summary":"PM"}`},
		{"unknown property", `{"name":"Jane","age":34,"title":null,"summary":"PM","extra":true}`},
		{"not JSON at all", `I could not find any structured data in the input.`},
		{"empty", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got person
			err := decodeInto(tt.text, schemaRaw, "person", &got)
			if err == nil {
				t.Fatal("expected mismatch error")
			}

			var mismatch *MismatchError
			if !errors.As(err, &mismatch) {
				t.Fatalf("error = %T, want *MismatchError", err)
			}
			if mismatch.Raw != tt.text {
				t.Error("mismatch error should carry the offending raw text verbatim")
			}
			if mismatch.Target != "person" {
				t.Errorf("target = %q, want person", mismatch.Target)
			}
		})
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	title := "product manager"
	want := person{Name: "Jane", Age: 34, Title: &title, Summary: "PM from Berlin"}

	encoded, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got person
	if err := decodeInto(string(encoded), personSchema(t), "person", &got); err != nil {
		t.Fatalf("decodeInto() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch: got %+v want %+v", got, want)
	}
}

func TestNormalizeJSON_CanonicalOutput(t *testing.T) {
	a, err := normalizeJSON("```json\n{\"b\": 2, \"a\": 1}\n```")
	if err != nil {
		t.Fatalf("normalizeJSON() error = %v", err)
	}
	b, err := normalizeJSON(`{"b":2,"a":1}`)
	if err != nil {
		t.Fatalf("normalizeJSON() error = %v", err)
	}
	if string(a) != string(b) {
		t.Errorf("normalized forms differ: %s vs %s", a, b)
	}
}
