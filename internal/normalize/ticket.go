package normalize

import (
	"fmt"
	"regexp"
	"strings"
)

// Ticket is a normalized issue reference in UPPER-DIGITS form, e.g. "ABC-123".
type Ticket string

// PlaceholderTicket is used when the user provides no ticket but the active
// rule set requires one.
const PlaceholderTicket Ticket = "TASK-0"

var (
	ticketRe = regexp.MustCompile(`^[A-Z]+-[0-9]+$`)

	// ticketShapeRe matches anything ticket-shaped regardless of case.
	// Used to decide whether an existing commit scope should be case-fixed
	// or replaced outright.
	ticketShapeRe = regexp.MustCompile(`^[A-Za-z]+-[0-9]+$`)
)

// ParseTicket normalizes raw user input into a Ticket. Input is trimmed and
// upper-cased before validation.
func ParseTicket(raw string) (Ticket, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if !ticketRe.MatchString(s) {
		return "", fmt.Errorf("invalid ticket reference %q: expected LETTERS-DIGITS form like ABC-123", raw)
	}
	return Ticket(s), nil
}

func (t Ticket) String() string { return string(t) }

// IsTicketShaped reports whether s looks like a ticket reference, ignoring case.
func IsTicketShaped(s string) bool {
	return ticketShapeRe.MatchString(s)
}
