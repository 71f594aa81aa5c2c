package model

import (
	"fmt"
	"strings"
)

// ScriptPanelCount is the number of panels every generated script must carry.
const ScriptPanelCount = 4

type Attachment struct {
	Name     string `json:"name,omitempty"`
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

func (a Attachment) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(a.MIMEType), "image/")
}

type Panel struct {
	Description string `json:"description" jsonschema:"description=Detailed visual description for an AI image generator (English)"`
	Dialogue    string `json:"dialogue" jsonschema:"description=Character dialogue for the panel"`
}

type ComicScript struct {
	Title  string  `json:"title"`
	Panels []Panel `json:"panels" jsonschema:"minItems=4,maxItems=4"`
}

type PanelField string

const (
	PanelFieldDescription PanelField = "description"
	PanelFieldDialogue    PanelField = "dialogue"
)

// Validate rejects scripts that do not have a title and exactly four described panels.
func (s ComicScript) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return &ParseError{Reason: "script is missing a title"}
	}
	if len(s.Panels) != ScriptPanelCount {
		return &ParseError{Reason: fmt.Sprintf("script has %d panels, want %d", len(s.Panels), ScriptPanelCount)}
	}
	for i, panel := range s.Panels {
		if strings.TrimSpace(panel.Description) == "" {
			return &ParseError{Reason: fmt.Sprintf("panel %d has an empty description", i+1)}
		}
	}
	return nil
}

func (s ComicScript) Clone() ComicScript {
	return ComicScript{
		Title:  s.Title,
		Panels: append([]Panel(nil), s.Panels...),
	}
}
