package extract

import (
	"fmt"
	"strings"

	"github.com/jackzampolin/distill/internal/providers"
)

// systemPreamble frames the model as an extraction engine and forbids
// fabrication. Caller-supplied considerations are appended verbatim to steer
// edge cases ("set missing titles to null", date formats, and so on).
const systemPreamble = `You are a data extraction engine. Extract the requested structured data from the provided input.

Rules:
- Use only facts explicitly present in the input. Never invent, guess, or fabricate values.
- Respond with a single JSON document conforming to the requested schema. No markdown, no commentary.`

// Text input is fenced with explicit markers so the model cannot confuse
// instructions with content.
const (
	beginInput = "<<<BEGIN INPUT>>>"
	endInput   = "<<<END INPUT>>>"
)

const imageDirective = "Extract the requested structured data from the following image."

const correctionDirective = "Your previous response did not conform to the requested schema. " +
	"Return complete, corrected JSON that matches the schema exactly. Include every required field."

// maxCorrectionOutput bounds how much of a prior bad response is echoed back
// into a corrective prompt.
const maxCorrectionOutput = 12000

// buildMessages assembles the system/user message pair for one attempt.
// lastRaw is the previous attempt's malformed output; when non-empty the user
// message gains a correction block so the model fixes its own output instead
// of answering blind.
func buildMessages(input Input, considerations, lastRaw string) []providers.Message {
	system := systemPreamble
	if considerations != "" {
		system += "\n\nAdditional considerations:\n" + considerations
	}

	parts := input.userParts()
	if lastRaw != "" {
		parts = append(parts, providers.ContentPart{
			Type: providers.PartText,
			Text: correctionBlock(lastRaw),
		})
	}

	user := providers.Message{Role: providers.RoleUser}
	if len(parts) == 1 && parts[0].Type == providers.PartText {
		user.Content = parts[0].Text
	} else {
		user.Parts = parts
	}

	return []providers.Message{
		{Role: providers.RoleSystem, Content: system},
		user,
	}
}

func correctionBlock(lastRaw string) string {
	lastRaw = strings.TrimSpace(lastRaw)
	if len(lastRaw) > maxCorrectionOutput {
		lastRaw = lastRaw[:maxCorrectionOutput] + "\n...[truncated]"
	}
	return fmt.Sprintf("%s\n\nYour previous output:\n%s", correctionDirective, lastRaw)
}
