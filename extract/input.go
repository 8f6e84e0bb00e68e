// Package extract turns unstructured text or images into strongly-typed Go
// values by delegating interpretation to an LLM chat-completion endpoint.
//
// The pipeline per call: derive a JSON Schema from the target shape, build a
// system/user message pair, issue one schema-constrained completion, validate
// the response's finish reason and content, and decode the payload into the
// target shape. Failures are retried with backoff; a structural mismatch
// triggers a corrective retry whose prompt carries the model's own prior
// malformed output and a fix-it directive, instead of a blind re-ask.
package extract

import (
	"encoding/base64"
	"fmt"

	"github.com/jackzampolin/distill/internal/providers"
)

// Input is the tagged variant of supported input payloads: Text, ImageURL,
// or Image.
type Input interface {
	userParts() []providers.ContentPart
}

// ImageInput restricts Input to the two image variants.
type ImageInput interface {
	Input
	isImage()
}

// Text is raw text input.
type Text string

func (t Text) userParts() []providers.ContentPart {
	return []providers.ContentPart{{
		Type: providers.PartText,
		Text: fmt.Sprintf("%s\n%s\n%s", beginInput, string(t), endInput),
	}}
}

// ImageURL references a remote image by URL.
type ImageURL struct {
	URL string
	// Detail is an optional fidelity hint ("low" or "high"), passed through
	// to the transport unmodified.
	Detail string
}

func (i ImageURL) isImage() {}

func (i ImageURL) userParts() []providers.ContentPart {
	return []providers.ContentPart{
		{Type: providers.PartText, Text: imageDirective},
		{Type: providers.PartImageURL, ImageURL: i.URL, Detail: i.Detail},
	}
}

// Image is inline image bytes with a declared MIME type.
type Image struct {
	Data     []byte
	MIMEType string // e.g. "image/png"; defaults to "image/jpeg"
	Detail   string // optional fidelity hint
}

func (i Image) isImage() {}

func (i Image) userParts() []providers.ContentPart {
	mime := i.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(i.Data))
	return []providers.ContentPart{
		{Type: providers.PartText, Text: imageDirective},
		{Type: providers.PartImageURL, ImageURL: dataURL, Detail: i.Detail},
	}
}
