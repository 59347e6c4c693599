package normalize

import "fmt"

// ValidationError indicates that a normalized artifact still fails its
// grammar. It carries the offending value and the pattern it was checked
// against so the operator can see exactly what was rejected.
type ValidationError struct {
	Kind    string // "branch name" or "commit message"
	Value   string
	Pattern string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %q does not match required pattern %s", e.Kind, e.Value, e.Pattern)
}
