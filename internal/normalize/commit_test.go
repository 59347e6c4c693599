package normalize

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devflowkit/mrpilot/internal/rules"
)

func TestCommitMessageScopeDerivation(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		ticket   Ticket
		expected string
	}{
		{
			name:     "foreign scope replaced with ticket",
			input:    "fix(xyz-1): bug",
			ticket:   "ABC-123",
			expected: "fix(ABC-123): bug",
		},
		{
			name:     "missing scope inserted",
			input:    "fix: bug",
			ticket:   "ABC-123",
			expected: "fix(ABC-123): bug",
		},
		{
			name:     "case-mismatched ticket scope fixed",
			input:    "fix(abc-123): bug",
			ticket:   "ABC-123",
			expected: "fix(ABC-123): bug",
		},
		{
			name:     "uppercase type lowered",
			input:    "Fix(ABC-123): bug",
			ticket:   "ABC-123",
			expected: "fix(ABC-123): bug",
		},
		{
			name:     "breaking change marker preserved",
			input:    "feat(ABC-123)!: drop legacy endpoint",
			ticket:   "ABC-123",
			expected: "feat(ABC-123)!: drop legacy endpoint",
		},
		{
			name:     "sanitization before shaping",
			input:    "```\nfeat: add search\n```",
			ticket:   "ABC-123",
			expected: "feat(ABC-123): add search",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CommitMessage(tt.input, tt.ticket, rules.Set{})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCommitMessageBodyPreserved(t *testing.T) {
	input := "feat(ABC-123): add search\n\nAdds a fuzzy search box to the header."
	got, err := CommitMessage(input, "ABC-123", rules.Set{})
	require.NoError(t, err)
	assert.Equal(t, "feat(ABC-123): add search\n\nAdds a fuzzy search box to the header.", got)
}

func TestCommitMessageIdempotent(t *testing.T) {
	first, err := CommitMessage("fix(xyz-1): bug", "ABC-123", rules.Set{})
	require.NoError(t, err)

	second, err := CommitMessage(first, "ABC-123", rules.Set{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCommitMessageUnrecognizedShapeRejected(t *testing.T) {
	// The normalizer must not invent structure; unrecognized shapes pass
	// through and fail validation instead.
	_, err := CommitMessage("just a plain sentence about a bug", "ABC-123", rules.Set{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "commit message", verr.Kind)
}

func TestCommitMessageUnknownTypeRejected(t *testing.T) {
	_, err := CommitMessage("wip(ABC-123): half done", "ABC-123", rules.Set{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestCommitMessageAgainstRuleRegex(t *testing.T) {
	pattern := `^(feat|fix)\([A-Z]+-[0-9]+\): .{1,50}$`
	rs := rules.Set{
		HasRules:             true,
		CommitPattern:        pattern,
		CommitRegex:          regexp.MustCompile(pattern),
		CommitRequiresTicket: true,
	}

	got, err := CommitMessage("feat: short change", "DEV-42", rs)
	require.NoError(t, err)
	assert.Equal(t, "feat(DEV-42): short change", got)

	_, err = CommitMessage("chore: not allowed here", "DEV-42", rs)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, pattern, verr.Pattern)
}

func TestCommitMessageKeepsEmbeddedTicketWithoutProvided(t *testing.T) {
	rs := rules.Set{HasRules: true, CommitRequiresTicket: true}
	got, err := CommitMessage("fix(abc-9): bug", "", rs)
	require.NoError(t, err)
	assert.Equal(t, "fix(ABC-9): bug", got)
}

func TestParseTicket(t *testing.T) {
	tests := []struct {
		input    string
		expected Ticket
		wantErr  bool
	}{
		{"abc-123", "ABC-123", false},
		{"  DEV-7 ", "DEV-7", false},
		{"ABC123", "", true},
		{"123-ABC", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseTicket(tt.input)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.input)
			continue
		}
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.expected, got)
	}
}
