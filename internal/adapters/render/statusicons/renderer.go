// Package statusicons renders the board's status-icon pills and legend from
// user-editable html/template sources.
package statusicons

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hylla/connboard/internal/app"
)

// DefaultIconsTemplate renders one pill per raised flag.
const DefaultIconsTemplate = `
<div class='board-card-pills'>
    {{if .StatusIcons.IsAssignedToYou}}
    <span class='board-card-pill badge-info js-legend-badge' data-toggle='tooltip' data-original-title='Assigned To You'><span class='sr-only'>Assigned To You</span></span>
    {{end}}
    {{if .StatusIcons.IsUnassigned}}
    <span class='board-card-pill badge-warning js-legend-badge' data-toggle='tooltip' data-original-title='Unassigned'><span class='sr-only'>Unassigned</span></span>
    {{end}}
    {{if .StatusIcons.IsCritical}}
    <span class='board-card-pill badge-critical js-legend-badge' data-toggle='tooltip' data-original-title='Critical'><span class='sr-only'>Critical</span></span>
    {{end}}
    {{if .StatusIcons.IsIdle}}
    <span class='board-card-pill badge-danger js-legend-badge' data-toggle='tooltip' data-original-title='{{.IdleTooltip}}'><span class='sr-only'>{{.IdleTooltip}}</span></span>
    {{end}}
</div>
`

// DefaultLegendTemplate renders the legend shown above the board.
const DefaultLegendTemplate = `
<div class='pull-left badge-legend padding-r-md'>
    <span class='pull-left badge badge-info badge-circle js-legend-badge' data-toggle='tooltip' data-original-title='Assigned To You'><span class='sr-only'>Assigned To You</span></span>
    <span class='pull-left badge badge-warning badge-circle js-legend-badge' data-toggle='tooltip' data-original-title='Unassigned Item'><span class='sr-only'>Unassigned Item</span></span>
    <span class='pull-left badge badge-critical badge-circle js-legend-badge' data-toggle='tooltip' data-original-title='Critical Status'><span class='sr-only'>Critical Status</span></span>
    <span class='pull-left badge badge-danger badge-circle js-legend-badge' data-toggle='tooltip' data-original-title='{{.IdleTooltip}}'><span class='sr-only'>{{.IdleTooltip}}</span></span>
</div>
`

var whitespace = regexp.MustCompile(`\s+`)

// Renderer implements app.StatusIconRenderer.
type Renderer struct {
	icons  *template.Template
	legend *template.Template
	policy *bluemonday.Policy
}

var _ app.StatusIconRenderer = (*Renderer)(nil)

// iconData is the template's merge-field root.
type iconData struct {
	StatusIcons app.StatusIconFields
	IdleTooltip string
}

// New parses both templates. Blank sources fall back to the defaults.
func New(iconsSrc, legendSrc string) (*Renderer, error) {
	if strings.TrimSpace(iconsSrc) == "" {
		iconsSrc = DefaultIconsTemplate
	}
	if strings.TrimSpace(legendSrc) == "" {
		legendSrc = DefaultLegendTemplate
	}
	icons, err := template.New("status_icons").Option("missingkey=zero").Parse(iconsSrc)
	if err != nil {
		return nil, fmt.Errorf("parse status icons template: %w", err)
	}
	legend, err := template.New("status_legend").Option("missingkey=zero").Parse(legendSrc)
	if err != nil {
		return nil, fmt.Errorf("parse status legend template: %w", err)
	}
	return &Renderer{icons: icons, legend: legend, policy: markupPolicy()}, nil
}

// RenderStatusIcons renders the pills for one card.
func (r *Renderer) RenderStatusIcons(fields app.StatusIconFields, idleTooltip string) (string, error) {
	return r.render(r.icons, iconData{StatusIcons: fields, IdleTooltip: idleTooltip})
}

// RenderStatusLegend renders the board legend.
func (r *Renderer) RenderStatusLegend(idleTooltip string) (string, error) {
	return r.render(r.legend, iconData{IdleTooltip: idleTooltip})
}

func (r *Renderer) render(tmpl *template.Template, data iconData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute %s template: %w", tmpl.Name(), err)
	}
	out := r.policy.Sanitize(buf.String())
	return strings.TrimSpace(whitespace.ReplaceAllString(out, " ")), nil
}

// markupPolicy keeps the inline containers and attributes the templates use;
// anything else, scripts included, is dropped.
func markupPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("div", "span", "i", "b", "strong", "em", "small")
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^[\w\- ]*$`)).Globally()
	p.AllowAttrs("title").Globally()
	p.AllowDataAttributes()
	return p
}
