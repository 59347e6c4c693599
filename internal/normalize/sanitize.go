// Package normalize converts raw LLM output into strictly validated branch
// names and commit messages. The model is treated as an untrusted text
// generator: its output passes through a fixed-order sanitization pipeline
// (strip reasoning tags, strip generic markup, unwrap code markers, trim
// quotes, pick the best line, case-normalize) and a hard validation gate
// against the active rule set before any artifact reaches git.
package normalize

import (
	"regexp"
	"strings"
)

var (
	// reasoningTagRe removes paired reasoning blocks some models emit before
	// the actual answer, e.g. <think>...</think>.
	reasoningTagRe = regexp.MustCompile(`(?is)<(think|thinking|reasoning|reflection|scratchpad)>.*?</(think|thinking|reasoning|reflection|scratchpad)>`)

	// genericTagRe removes any remaining paired tag-delimited region wholesale.
	genericTagRe = regexp.MustCompile(`(?is)<([a-z][a-z0-9_-]*)>.*?</[a-z][a-z0-9_-]*>`)

	// fencedRe unwraps fenced code blocks, keeping the content. Models often
	// put the real answer inside a fence.
	fencedRe = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*\\n?(.*?)```")

	inlineCodeRe = regexp.MustCompile("`([^`\n]*)`")
)

// Sanitize applies the tag/markup stripping steps of the pipeline. Each step
// is idempotent; running Sanitize on its own output is a no-op.
func Sanitize(raw string) string {
	s := reasoningTagRe.ReplaceAllString(raw, "")
	s = genericTagRe.ReplaceAllString(s, "")
	s = fencedRe.ReplaceAllString(s, "$1")
	s = inlineCodeRe.ReplaceAllString(s, "$1")
	s = strings.TrimSpace(s)
	s = trimQuoteLayer(s)
	return strings.TrimSpace(s)
}

// trimQuoteLayer removes a single layer of matching surrounding quotes.
func trimQuoteLayer(s string) string {
	if len(s) < 2 {
		return s
	}
	pairs := [][2]string{{`"`, `"`}, {`'`, `'`}, {"“", "”"}, {"‘", "’"}}
	for _, p := range pairs {
		if strings.HasPrefix(s, p[0]) && strings.HasSuffix(s, p[1]) {
			return s[len(p[0]) : len(s)-len(p[1])]
		}
	}
	return s
}

// BestLine returns the line to treat as the answer when sanitized output
// spans multiple lines. A line matching the target grammar wins over the
// last non-blank line, since models sometimes prepend commentary.
func BestLine(s string, grammar *regexp.Regexp) string {
	lines := strings.Split(s, "\n")
	last := ""
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if grammar != nil && grammar.MatchString(line) {
			return line
		}
		last = line
	}
	return last
}

// slugify lowercases s and collapses every run of characters outside
// [a-z0-9] into a single hyphen, trimming leading/trailing hyphens.
func slugify(s string) string {
	lower := strings.ToLower(s)
	cleaned := regexp.MustCompile(`[^a-z0-9]+`).ReplaceAllString(lower, "-")
	cleaned = regexp.MustCompile(`-+`).ReplaceAllString(cleaned, "-")
	return strings.Trim(cleaned, "-")
}
