package main

import (
	"fmt"
	"html"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/hylla/connboard/internal/app"
)

// minRenderWidth keeps glamour from wrapping card lines into single words.
const minRenderWidth = 40

// renderMarkdown converts board markdown into terminal text. style "auto" picks a
// style from the terminal; any other value names a glamour standard style.
func renderMarkdown(markdown, style string, width int) (string, error) {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return "", nil
	}
	width = max(width, minRenderWidth)

	styleOption := glamour.WithStandardStyle(style)
	if strings.TrimSpace(style) == "" || style == "auto" {
		styleOption = glamour.WithAutoStyle()
	}
	renderer, err := glamour.NewTermRenderer(styleOption, glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("configure markdown renderer: %w", err)
	}
	rendered, err := renderer.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return strings.TrimRight(rendered, "\n") + "\n", nil
}

// boardMarkdown lays out one projected board as markdown.
func boardMarkdown(view app.BoardView) string {
	var b strings.Builder

	title := "Connection board"
	if view.Opportunity != nil {
		title = view.Opportunity.Name
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "View: %s · Sort: %s\n\n", view.State.ViewMode, sortLabel(view.State.Sort))

	for _, notice := range view.Notices {
		writeNotice(&b, notice)
	}

	switch {
	case view.Opportunity == nil:
		b.WriteString("_No active opportunity._\n")
	case view.Grid != nil:
		writeGrid(&b, *view.Grid)
	default:
		for _, column := range view.Columns {
			writeColumn(&b, column)
		}
	}

	if view.Detail != nil {
		writeDetail(&b, *view.Detail)
	}
	return b.String()
}

func writeNotice(b *strings.Builder, notice app.Notice) {
	label := strings.ToUpper(string(notice.Kind))
	if notice.Title != "" {
		label += " " + notice.Title
	}
	fmt.Fprintf(b, "> **%s:** %s\n\n", label, notice.Message)
}

func writeColumn(b *strings.Builder, column app.ColumnView) {
	heading := column.Name
	if column.IsCritical {
		heading += " (critical)"
	}
	fmt.Fprintf(b, "## %s · %d\n\n", heading, column.Total)
	if len(column.Cards) == 0 {
		b.WriteString("_Empty_\n\n")
		return
	}
	for _, card := range column.Cards {
		fmt.Fprintf(b, "- %s\n", cardLine(card))
	}
	if hidden := column.Total - len(column.Cards); hidden > 0 {
		fmt.Fprintf(b, "- _%d more_\n", hidden)
	}
	b.WriteString("\n")
}

func writeGrid(b *strings.Builder, grid app.GridView) {
	fmt.Fprintf(b, "## Requests · page %d of %d · %d total\n\n", grid.Page+1, grid.Pages, grid.Total)
	if len(grid.Rows) == 0 {
		b.WriteString("_No requests match._\n\n")
		return
	}
	for _, row := range grid.Rows {
		fmt.Fprintf(b, "- %s · %s\n", cardLine(row), row.StatusName)
	}
	b.WriteString("\n")
}

// cardLine is the one-line summary shared by cards and grid rows.
func cardLine(card app.RequestView) string {
	parts := []string{fmt.Sprintf("**%s** (#%d)", card.PersonName, card.ID)}
	if card.ConnectorName != "" {
		parts = append(parts, "connector "+card.ConnectorName)
	}
	if card.CampusName != "" {
		parts = append(parts, card.CampusName)
	}
	if card.State != "" {
		parts = append(parts, card.StateLabel)
	}
	if flags := cardFlags(card); len(flags) > 0 {
		parts = append(parts, "["+strings.Join(flags, ", ")+"]")
	}
	return strings.Join(parts, " · ")
}

func cardFlags(card app.RequestView) []string {
	var flags []string
	if card.IsAssignedToYou {
		flags = append(flags, "yours")
	}
	if card.IsUnassigned {
		flags = append(flags, "unassigned")
	}
	if card.IsCritical {
		flags = append(flags, "critical")
	}
	if card.IsIdle {
		flags = append(flags, "idle")
	}
	return flags
}

func writeDetail(b *strings.Builder, detail app.RequestDetail) {
	req := detail.Request
	fmt.Fprintf(b, "## Request #%d: %s\n\n", req.ID, req.PersonName)
	fmt.Fprintf(b, "- Status: %s\n", req.StatusName)
	fmt.Fprintf(b, "- State: %s\n", req.StateLabel)
	if req.ConnectorName != "" {
		fmt.Fprintf(b, "- Connector: %s\n", req.ConnectorName)
	}
	if req.GroupName != "" {
		fmt.Fprintf(b, "- Group: %s\n", req.GroupName)
	}
	if req.Comments != "" {
		fmt.Fprintf(b, "- Comments: %s\n", html.EscapeString(req.Comments))
	}
	fmt.Fprintf(b, "- Can connect: %t · Can transfer: %t\n\n", detail.CanConnect, detail.CanTransfer)

	if len(detail.Requirements) > 0 {
		b.WriteString("### Requirements\n\n")
		for _, requirement := range detail.Requirements {
			line := fmt.Sprintf("- %s: %s", requirement.Name, requirement.Meets)
			if requirement.MustMeetToAdd {
				line += " (required)"
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("### Activities\n\n")
	if len(detail.Activities.Items) == 0 {
		b.WriteString("_None yet._\n\n")
	} else {
		for _, activity := range detail.Activities.Items {
			line := fmt.Sprintf("- %s · %s", activity.CreatedAt.Format("2006-01-02"), activity.TypeName)
			if activity.ConnectorName != "" {
				line += " · " + activity.ConnectorName
			}
			if activity.Note != "" {
				line += ": " + html.EscapeString(activity.Note)
			}
			b.WriteString(line + "\n")
		}
		if detail.Activities.HasMore {
			b.WriteString("- _more activities hidden_\n")
		}
		b.WriteString("\n")
	}

	if len(detail.Workflows) > 0 {
		b.WriteString("### Workflows\n\n")
		for _, workflow := range detail.Workflows {
			fmt.Fprintf(b, "- %s (%s)\n", workflow.Name, workflow.Status)
		}
		b.WriteString("\n")
	}
}

func sortLabel(sort app.SortProperty) string {
	for _, opt := range app.SortOptions() {
		if opt.Value == sort {
			return opt.Label
		}
	}
	return string(sort)
}
