// Package review turns raw LLM review output into a validated result. The
// expected shape is a JSON object with a summary, a comment list, and a
// numeric score; structurally broken output degrades to a summary-only
// result instead of failing the workflow.
package review

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/devflowkit/mrpilot/internal/normalize"
)

// Severity buckets a review comment.
type Severity string

const (
	SeverityError      Severity = "error"
	SeverityWarning    Severity = "warning"
	SeverityInfo       Severity = "info"
	SeveritySuggestion Severity = "suggestion"
)

// NeutralScore is used when the model returned no parseable score.
const NeutralScore = 50

// Comment is a single review finding mapped to a file and line.
type Comment struct {
	File     string   `json:"file"`
	Line     int      `json:"line"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Result is a validated review.
type Result struct {
	Summary  string    `json:"summary"`
	Score    int       `json:"score"`
	Comments []Comment `json:"comments"`

	// Degraded is set when structural parsing failed and the raw text was
	// kept as the summary.
	Degraded bool `json:"-"`
}

// Parse converts raw review text into a Result. Markup is stripped first so
// a fenced JSON answer still parses. On structural failure the raw text
// becomes the summary, comments stay empty, and the score is neutral.
func Parse(raw string) Result {
	text := normalize.Sanitize(raw)

	var parsed struct {
		Summary  string    `json:"summary"`
		Score    *int      `json:"score"`
		Comments []Comment `json:"comments"`
	}
	if err := json.Unmarshal([]byte(extractObject(text)), &parsed); err != nil || parsed.Summary == "" {
		return Result{Summary: strings.TrimSpace(raw), Score: NeutralScore, Degraded: true}
	}

	score := NeutralScore
	if parsed.Score != nil && *parsed.Score >= 0 && *parsed.Score <= 100 {
		score = *parsed.Score
	}
	return Result{
		Summary:  parsed.Summary,
		Score:    score,
		Comments: cleanComments(parsed.Comments),
	}
}

// extractObject trims any stray prose around the outermost JSON object.
func extractObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return text
	}
	return text[start : end+1]
}

// cleanComments drops comments without a message and defaults unknown
// severities to info.
func cleanComments(comments []Comment) []Comment {
	var out []Comment
	for _, c := range comments {
		if strings.TrimSpace(c.Message) == "" {
			continue
		}
		switch c.Severity {
		case SeverityError, SeverityWarning, SeverityInfo, SeveritySuggestion:
		default:
			c.Severity = SeverityInfo
		}
		out = append(out, c)
	}
	return out
}

// GroupByFile buckets comments per file for presentation, files sorted.
func (r Result) GroupByFile() ([]string, map[string][]Comment) {
	groups := make(map[string][]Comment)
	for _, c := range r.Comments {
		file := c.File
		if file == "" {
			file = "(general)"
		}
		groups[file] = append(groups[file], c)
	}
	files := make([]string, 0, len(groups))
	for f := range groups {
		files = append(files, f)
	}
	sort.Strings(files)
	return files, groups
}

// ForInline returns up to max comments eligible for inline posting: only
// the highest-severity buckets (error, then warning), in that order.
func (r Result) ForInline(max int) []Comment {
	var out []Comment
	for _, want := range []Severity{SeverityError, SeverityWarning} {
		for _, c := range r.Comments {
			if c.Severity != want {
				continue
			}
			if len(out) >= max {
				return out
			}
			out = append(out, c)
		}
	}
	return out
}
