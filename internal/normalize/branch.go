package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/devflowkit/mrpilot/internal/rules"
)

var (
	// defaultBranchTicketRe is the default grammar when a ticket is required.
	defaultBranchTicketRe = regexp.MustCompile(`^[a-z]+/[A-Z]+-[0-9]+-[a-z0-9-]+$`)

	// defaultBranchRe is the default grammar without a ticket.
	defaultBranchRe = regexp.MustCompile(`^[a-z]+/[a-z0-9-]+$`)

	// branchShapeRe loosely matches a type/rest candidate line before case
	// normalization has run.
	branchShapeRe = regexp.MustCompile(`^[A-Za-z]+/\S+$`)

	// leadingTicketRe splits an embedded ticket off the front of the part
	// after the type segment, in any case.
	leadingTicketRe = regexp.MustCompile(`^([A-Za-z]+-[0-9]+)[-_\s]*(.*)$`)
)

// BranchName converts raw LLM output into a branch name satisfying the
// active rule set, or the default type/TICKET-description grammar when no
// branch regex was extracted. A ticket is embedded whenever the rule set
// requires one or a non-empty ticket is provided.
func BranchName(raw string, ticket Ticket, rs rules.Set) (string, error) {
	line := BestLine(Sanitize(raw), branchShapeRe)
	if line == "" {
		return "", &ValidationError{Kind: "branch name", Value: raw, Pattern: branchGrammar(rs, ticket != "")}
	}

	name := caseNormalizeBranch(line, ticket, rs)
	if err := validateBranch(name, ticket, rs); err != nil {
		return "", err
	}
	return name, nil
}

// caseNormalizeBranch lowercases the type segment, upper-cases the ticket
// segment, and slugifies the description.
func caseNormalizeBranch(line string, ticket Ticket, rs rules.Set) string {
	typ, rest, found := strings.Cut(line, "/")
	if !found {
		// No type segment at all; treat the whole thing as a description and
		// let validation reject it if the grammar demands more.
		return slugify(line)
	}
	typ = strings.ToLower(strings.TrimSpace(typ))

	requireTicket := rs.BranchRequiresTicket || ticket != ""
	if !requireTicket {
		return typ + "/" + slugify(rest)
	}

	if m := leadingTicketRe.FindStringSubmatch(rest); m != nil {
		embedded := strings.ToUpper(m[1])
		desc := slugify(m[2])
		if desc == "" {
			return typ + "/" + embedded
		}
		return typ + "/" + embedded + "-" + desc
	}

	// No embedded ticket; prepend the provided one.
	t := ticket
	if t == "" {
		t = PlaceholderTicket
	}
	desc := slugify(rest)
	if desc == "" {
		return typ + "/" + t.String()
	}
	return typ + "/" + t.String() + "-" + desc
}

func validateBranch(name string, ticket Ticket, rs rules.Set) error {
	if rs.BranchRegex != nil {
		if !rs.BranchRegex.MatchString(name) {
			return &ValidationError{Kind: "branch name", Value: name, Pattern: rs.BranchPattern}
		}
		return nil
	}

	grammar := defaultBranchRe
	if rs.BranchRequiresTicket || ticket != "" {
		grammar = defaultBranchTicketRe
	}
	if !grammar.MatchString(name) {
		return &ValidationError{Kind: "branch name", Value: name, Pattern: grammar.String()}
	}

	typ, _, _ := strings.Cut(name, "/")
	if !rs.TypeAllowed(typ) {
		return &ValidationError{Kind: "branch name", Value: name,
			Pattern: fmt.Sprintf("type must be one of %s", strings.Join(allowedTypes(rs), ", "))}
	}
	return nil
}

func allowedTypes(rs rules.Set) []string {
	if len(rs.AllowedTypes) > 0 {
		return rs.AllowedTypes
	}
	return rules.DefaultTypes
}

func branchGrammar(rs rules.Set, haveTicket bool) string {
	if rs.BranchPattern != "" {
		return rs.BranchPattern
	}
	if rs.BranchRequiresTicket || haveTicket {
		return defaultBranchTicketRe.String()
	}
	return defaultBranchRe.String()
}
