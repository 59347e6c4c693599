package rules

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// stageTokens mark a CI job or stage as a naming/format check. Matching is a
// plain substring test; absence of every token means the repository has no
// naming rules, which is not an error.
var stageTokens = []string{
	"git-check",
	"git_check",
	"branch-naming",
	"branch_naming",
	"commit-lint",
	"commitlint",
	"commit-check",
}

// conventionalFallbackPattern is applied for branches only, when type
// keywords are present but no explicit pattern was found. Commit patterns
// get no such fallback.
const conventionalFallbackPattern = `^(feature|bugfix|hotfix|release|chore|docs)/[A-Z]+-[0-9]+-[a-z0-9-]+$`

var (
	branchKeyRe   = regexp.MustCompile(`(?i)branch[a-z_-]*(?:pattern|regex)["']?\s*[:=]\s*["']([^"']+)["']`)
	commitKeyRe   = regexp.MustCompile(`(?i)commit[a-z_-]*(?:pattern|regex)["']?\s*[:=]\s*["']([^"']+)["']`)
	shellCompRe   = regexp.MustCompile(`=~\s*(?:/((?:\\.|[^/\n])+)/|["'](.+?)["'])`)
	grepExtRe     = regexp.MustCompile(`grep\s+-[a-zA-Z]*E[a-zA-Z]*\s+["'](.+?)["']`)
	alternationRe = regexp.MustCompile(`\(([a-z|]+)\)`)
	upperClassRe  = regexp.MustCompile(`\[A-Z\]|\[0-9A-Z\]|\[A-Z0-9\]`)
	digitClassRe  = regexp.MustCompile(`\[0-9\]|\\d`)
)

// Extract derives a rule Set from raw CI configuration text. It never
// returns an error: unreadable or unrecognized input yields the zero Set.
func Extract(ciText string) Set {
	var s Set
	if strings.TrimSpace(ciText) == "" {
		return s
	}

	scope := checkScope(ciText)
	if scope == "" {
		return s
	}
	s.HasRules = true

	if pat := extractBranchPattern(scope); pat != "" {
		if re, err := regexp.Compile(pat); err == nil {
			s.BranchPattern = pat
			s.BranchRegex = re
		}
	}
	if pat := extractCommitPattern(scope); pat != "" {
		if re, err := regexp.Compile(pat); err == nil {
			s.CommitPattern = pat
			s.CommitRegex = re
		}
	}

	s.AllowedTypes = extractAllowedTypes(s.BranchPattern)
	s.BranchRequiresTicket = requiresTicket(s.BranchPattern)
	s.CommitRequiresTicket = requiresTicket(s.CommitPattern)
	return s
}

// checkScope returns the text to search for patterns: the scripts of jobs
// whose name or stage carries a check token when the config parses as YAML,
// or the whole raw text otherwise. Returns "" when no token is present at
// all, meaning no naming-check stage exists.
func checkScope(ciText string) string {
	if !containsToken(ciText) {
		return ""
	}

	var doc map[string]any
	if err := yaml.Unmarshal([]byte(ciText), &doc); err != nil {
		// Not valid YAML; fall back to scanning the raw text.
		return ciText
	}

	var b strings.Builder
	for name, val := range doc {
		job, ok := val.(map[string]any)
		if !ok {
			continue
		}
		stage, _ := job["stage"].(string)
		if !containsToken(name) && !containsToken(stage) {
			continue
		}
		b.WriteString(name)
		b.WriteString("\n")
		writeScript(&b, job["script"])
		writeScript(&b, job["before_script"])
		writeScript(&b, job["variables"])
	}
	if b.Len() == 0 {
		// Token present outside any parseable job; search everything.
		return ciText
	}
	return b.String()
}

func writeScript(b *strings.Builder, v any) {
	switch t := v.(type) {
	case string:
		b.WriteString(t)
		b.WriteString("\n")
	case []any:
		for _, item := range t {
			writeScript(b, item)
		}
	case map[string]any:
		for k, item := range t {
			b.WriteString(k)
			b.WriteString(": ")
			writeScript(b, item)
		}
	}
}

func containsToken(s string) bool {
	lower := strings.ToLower(s)
	for _, tok := range stageTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

// extractBranchPattern applies the branch strategies in priority order:
// explicit pattern key, shell-style =~ comparison, conventional-types
// fallback.
func extractBranchPattern(scope string) string {
	if m := branchKeyRe.FindStringSubmatch(scope); m != nil {
		return m[1]
	}
	if pat := shellComparison(scope, "branch"); pat != "" {
		return pat
	}
	lower := strings.ToLower(scope)
	if strings.Contains(lower, "feature") && (strings.Contains(lower, "bugfix") || strings.Contains(lower, "fix")) {
		return conventionalFallbackPattern
	}
	return ""
}

// extractCommitPattern applies the commit strategies in priority order:
// grep -E argument, explicit pattern key, shell-style comparison. No
// convention fallback here.
func extractCommitPattern(scope string) string {
	if m := grepExtRe.FindStringSubmatch(scope); m != nil {
		return m[1]
	}
	if m := commitKeyRe.FindStringSubmatch(scope); m != nil {
		return m[1]
	}
	if pat := shellComparison(scope, "commit"); pat != "" {
		return pat
	}
	return ""
}

// shellComparison finds an =~ /pattern/ or =~ "pattern" comparison on a line
// that mentions the given subject (branch or commit).
func shellComparison(scope, subject string) string {
	for _, line := range strings.Split(scope, "\n") {
		if !strings.Contains(strings.ToLower(line), subject) {
			continue
		}
		if m := shellCompRe.FindStringSubmatch(line); m != nil {
			if m[1] != "" {
				return m[1]
			}
			return m[2]
		}
	}
	return ""
}

// extractAllowedTypes pulls the type alternation out of a branch pattern,
// e.g. "^(feature|bugfix)/..." yields [feature bugfix]. Falls back to the
// default type set.
func extractAllowedTypes(branchPattern string) []string {
	if branchPattern != "" {
		if m := alternationRe.FindStringSubmatch(branchPattern); m != nil {
			parts := strings.Split(m[1], "|")
			var types []string
			for _, p := range parts {
				if p != "" {
					types = append(types, p)
				}
			}
			if len(types) > 0 {
				return types
			}
		}
	}
	return append([]string(nil), DefaultTypes...)
}

// requiresTicket is a conservative heuristic: a pattern is judged
// ticket-requiring when it contains an uppercase character class next to a
// digit class, or the literal word "ticket". False negatives are preferred
// over false positives that would block valid work.
func requiresTicket(pattern string) bool {
	if pattern == "" {
		return false
	}
	if strings.Contains(strings.ToLower(pattern), "ticket") {
		return true
	}
	return upperClassRe.MatchString(pattern) && digitClassRe.MatchString(pattern)
}
