package narrative

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/latchko/go-uprising/internal/world"
)

// defaultTemplates cover the standard outcome kinds. Overrides merge
// on top per kind.
var defaultTemplates = map[string]string{
	"raid":           `{{ .ActorName }} hits {{ .TargetName }} for {{ .Damage }} damage{{ if .Defeated }} and brings the tower down{{ end }}.`,
	"team_raid":      `The cell strikes {{ .TargetName }} together for {{ .Damage }} combined damage{{ if .Defeated }}, and the tower goes dark{{ end }}.`,
	"countermeasure": `{{ .TargetName }} retaliates against {{ .ActorName }}: {{ .Detail.archetype }}.`,
	"blocked":        `{{ .TargetName }} launches {{ .Detail.archetype }} at {{ .ActorName }}, but their defenses hold.`,
	"level_up":       `{{ .ActorName }} reaches level {{ .Level }}.`,
	"trade":          `{{ .ActorName }} closes a deal with {{ .TargetName }} worth {{ credits .Credits }}.`,
	"listing_sold":   `{{ .ActorName }} buys {{ index .Items 0 }} off the market for {{ credits .Credits }}.`,
	"auction_won":    `{{ .ActorName }} wins the auction for {{ index .Items 0 }} at {{ credits .Credits }}.`,
	"defeat":         `{{ .TargetName }} collapses. Its systems reboot behind fresh ice.`,
}

// TemplateDescriber renders events from parsed text templates.
type TemplateDescriber struct {
	templates map[string]*template.Template
}

// NewTemplateDescriber parses the default templates merged with any
// overrides. Every template is validated up front.
func NewTemplateDescriber(overrides map[string]string) (*TemplateDescriber, error) {
	printer := message.NewPrinter(language.English)
	funcs := sprig.TxtFuncMap()
	funcs["credits"] = func(n int64) string {
		return printer.Sprintf("%d credits", n)
	}

	sources := make(map[string]string, len(defaultTemplates)+len(overrides))
	for kind, src := range defaultTemplates {
		sources[kind] = src
	}
	for kind, src := range overrides {
		sources[kind] = src
	}

	d := &TemplateDescriber{templates: make(map[string]*template.Template, len(sources))}
	for kind, src := range sources {
		tmpl, err := template.New(kind).Funcs(funcs).Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parsing %q template: %w", kind, err)
		}
		d.templates[kind] = tmpl
	}
	return d, nil
}

// Describe renders the event's template. An unknown kind or a render
// failure reports the collaborator unavailable; callers fall back to
// no text.
func (d *TemplateDescriber) Describe(ctx context.Context, ev *Event) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("describing %s: %w", ev.Kind, world.ErrCollaboratorUnavailable)
	}

	tmpl, ok := d.templates[ev.Kind]
	if !ok {
		return "", fmt.Errorf("no template for %s: %w", ev.Kind, world.ErrCollaboratorUnavailable)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ev); err != nil {
		return "", fmt.Errorf("rendering %s: %w", ev.Kind, world.ErrCollaboratorUnavailable)
	}
	return buf.String(), nil
}
