package normalize

import (
	"regexp"
	"strings"

	"github.com/devflowkit/mrpilot/internal/rules"
)

var (
	// defaultCommitTicketRe is the default subject grammar when a ticket is
	// required: type(TICKET): description.
	defaultCommitTicketRe = regexp.MustCompile(`^[a-z]+\([A-Z]+-[0-9]+\)(!)?: .+$`)

	// defaultCommitRe is the default subject grammar without a ticket.
	defaultCommitRe = regexp.MustCompile(`^[a-z]+(\([^)]+\))?(!)?: .+$`)

	// subjectShapeRe recognizes a conventional type(scope)?: desc subject in
	// any case. Subjects outside this shape are passed through unchanged and
	// rejected by validation instead of being invented from scratch.
	subjectShapeRe = regexp.MustCompile(`^([A-Za-z]+)(?:\(([^)]*)\))?(!)?:\s*(.+)$`)
)

// ConventionalTypes is the fixed vocabulary for commit subject types.
var ConventionalTypes = []string{
	"feat", "fix", "docs", "style", "refactor", "perf",
	"test", "build", "ci", "chore", "revert",
}

// CommitMessage converts raw LLM output into a commit message whose subject
// line satisfies the active rule set, or the conventional default grammar.
// When a ticket is required the scope segment is re-derived: a ticket-shaped
// scope is case-fixed, any other scope is replaced, and a missing scope is
// inserted.
func CommitMessage(raw string, ticket Ticket, rs rules.Set) (string, error) {
	text := Sanitize(raw)
	subject, body := splitSubject(text)
	if subject == "" {
		return "", &ValidationError{Kind: "commit message", Value: raw, Pattern: commitGrammar(rs, ticket != "")}
	}

	subject = rewriteSubject(subject, ticket, rs)
	if err := validateCommitSubject(subject, ticket, rs); err != nil {
		return "", err
	}
	if body != "" {
		return subject + "\n\n" + body, nil
	}
	return subject, nil
}

// splitSubject separates the first non-blank line from the remainder.
func splitSubject(text string) (string, string) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		body := strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
		return line, body
	}
	return "", ""
}

// rewriteSubject lowercases the type and re-derives the scope when a ticket
// is required. Subjects not matching the conventional shape are returned
// unchanged.
func rewriteSubject(subject string, ticket Ticket, rs rules.Set) string {
	m := subjectShapeRe.FindStringSubmatch(subject)
	if m == nil {
		return subject
	}
	typ := strings.ToLower(m[1])
	scope := m[2]
	bang := m[3]
	desc := m[4]

	requireTicket := rs.CommitRequiresTicket || ticket != ""
	if requireTicket {
		t := ticket
		if t == "" {
			t = PlaceholderTicket
		}
		switch {
		case scope == "":
			scope = t.String()
		case strings.EqualFold(scope, t.String()):
			// Same ticket, wrong case.
			scope = t.String()
		case IsTicketShaped(scope) && ticket == "":
			// No ticket was provided; keep the embedded one, case-fixed,
			// rather than clobbering it with the placeholder.
			scope = strings.ToUpper(scope)
		default:
			scope = t.String()
		}
	}

	if scope != "" {
		return typ + "(" + scope + ")" + bang + ": " + desc
	}
	return typ + bang + ": " + desc
}

func validateCommitSubject(subject string, ticket Ticket, rs rules.Set) error {
	if rs.CommitRegex != nil {
		if !rs.CommitRegex.MatchString(subject) {
			return &ValidationError{Kind: "commit message", Value: subject, Pattern: rs.CommitPattern}
		}
		return nil
	}

	grammar := defaultCommitRe
	if rs.CommitRequiresTicket || ticket != "" {
		grammar = defaultCommitTicketRe
	}
	if !grammar.MatchString(subject) {
		return &ValidationError{Kind: "commit message", Value: subject, Pattern: grammar.String()}
	}

	m := subjectShapeRe.FindStringSubmatch(subject)
	if m != nil && !conventionalType(m[1]) {
		return &ValidationError{Kind: "commit message", Value: subject,
			Pattern: "type must be one of " + strings.Join(ConventionalTypes, ", ")}
	}
	return nil
}

func conventionalType(typ string) bool {
	for _, t := range ConventionalTypes {
		if t == typ {
			return true
		}
	}
	return false
}

func commitGrammar(rs rules.Set, haveTicket bool) string {
	if rs.CommitPattern != "" {
		return rs.CommitPattern
	}
	if rs.CommitRequiresTicket || haveTicket {
		return defaultCommitTicketRe.String()
	}
	return defaultCommitRe.String()
}
