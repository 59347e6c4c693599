package workflow

import (
	"fmt"
	"strings"

	"github.com/devflowkit/mrpilot/internal/review"
)

// severityMarkers map review severities to the markers used in posted
// comments. Unknown severities never reach this point.
var severityMarkers = map[review.Severity]string{
	review.SeverityError:      "🔴",
	review.SeverityWarning:    "🟡",
	review.SeverityInfo:       "🔵",
	review.SeveritySuggestion: "💡",
}

// formatSummaryNote renders the review result as the MR-level summary note.
// A degraded review posts the raw summary with a notice instead of the
// structured sections.
func formatSummaryNote(r review.Result) string {
	var b strings.Builder
	b.WriteString("## Automated Code Review\n\n")

	if r.Degraded {
		b.WriteString("_Structured review unavailable, raw assessment below._\n\n")
		b.WriteString(strings.TrimSpace(r.Summary))
		b.WriteString("\n")
		return b.String()
	}

	fmt.Fprintf(&b, "**Score:** %d/100\n\n", r.Score)
	b.WriteString(strings.TrimSpace(r.Summary))
	b.WriteString("\n")

	files, groups := r.GroupByFile()
	for _, file := range files {
		fmt.Fprintf(&b, "\n### %s\n", file)
		for _, c := range groups[file] {
			fmt.Fprintf(&b, "- %s **%s** line %d: %s\n",
				severityMarkers[c.Severity], c.Severity, c.Line, c.Message)
		}
	}
	return b.String()
}

// formatInlineComment renders one positioned discussion body.
func formatInlineComment(c review.Comment) string {
	return fmt.Sprintf("%s **%s:** %s", severityMarkers[c.Severity], c.Severity, c.Message)
}

// formatMRDescription renders the description for a newly created MR.
func formatMRDescription(run *Run) string {
	var b strings.Builder
	if run.Ticket != "" {
		fmt.Fprintf(&b, "Ticket: %s\n\n", run.Ticket)
	}
	if run.CommitMessage != "" {
		_, body, found := strings.Cut(run.CommitMessage, "\n\n")
		if found && strings.TrimSpace(body) != "" {
			b.WriteString(strings.TrimSpace(body))
			b.WriteString("\n\n")
		}
	}
	fmt.Fprintf(&b, "---\n_Opened by mrpilot from branch `%s`._\n", run.Branch)
	return b.String()
}
