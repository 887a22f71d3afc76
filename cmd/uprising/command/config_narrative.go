package command

import (
	"github.com/latchko/go-uprising/internal/narrative"
)

type NarrativeConfig struct {
	// Templates override the built-in outcome templates by kind.
	Templates map[string]string `json:"templates,omitempty"`
}

func (n *NarrativeConfig) buildDescriber() (narrative.Describer, error) {
	return narrative.NewTemplateDescriber(n.Templates)
}
