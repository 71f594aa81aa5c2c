package model

import (
	"encoding/json"
	"strings"

	"github.com/Nephrolytics-ai/polyglot-media/pkg/utils"
)

const DefaultFreeTextSystemInstruction = "You are a helpful assistant."

const ScriptSystemPrompt = `
You are an expert educational comic book writer.
Your task is to convert the provided content (text, images, or documents) into a 4-panel comic strip script.

Goal: Make it easy to understand, educational, and engaging.

Return a JSON object with a "title" (string) and "panels" (array of 4 objects).
Each panel object must have:
- "description": A detailed visual description for an AI image generator (English).
- "dialogue": The character dialogue (Chinese, unless requested otherwise).

Ensure the output is valid JSON.
`

// ScriptUserPrompt is empty when there is no topic, leaving the attachments to speak for themselves.
func ScriptUserPrompt(topic string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return ""
	}
	return `Additional Instructions/Context: "` + topic + `"`
}

func PanelImagePrompt(style string, description string) string {
	return "Comic panel, " + style + ". " + description + ". High quality, detailed. No text bubbles."
}

// ParseScript decodes a model response into a validated four-panel script.
func ParseScript(text string) (ComicScript, error) {
	if strings.TrimSpace(text) == "" {
		return ComicScript{}, &ParseError{Reason: "no response content from model"}
	}

	script := ComicScript{}
	err := json.Unmarshal([]byte(utils.ExtractJSONPayload(text)), &script)
	if err != nil {
		return ComicScript{}, &ParseError{Reason: "response is not valid script JSON", Raw: utils.TruncateDiagnostic(text), Err: err}
	}

	err = script.Validate()
	if err != nil {
		if parseErr, ok := err.(*ParseError); ok {
			parseErr.Raw = utils.TruncateDiagnostic(text)
		}
		return ComicScript{}, err
	}
	return script, nil
}
