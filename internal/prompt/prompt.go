// Package prompt builds the fixed prompts sent to the LLM backend. Prompts
// ask for strictly formatted answers; the normalizer and parsers downstream
// still treat every response as untrusted.
package prompt

import (
	"fmt"
	"strings"

	"github.com/MakeNowJust/heredoc"

	"github.com/devflowkit/mrpilot/internal/rules"
)

// maxDiffChars caps the diff text embedded in a prompt so requests stay
// inside model context limits.
const maxDiffChars = 24000

// BranchName asks for a single branch name for the given diff.
func BranchName(diff, ticket string, rs rules.Set) string {
	var b strings.Builder
	b.WriteString(heredoc.Doc(`
		Generate a git branch name for the changes below.

		Requirements:
		- Answer with the branch name only, on a single line. No explanation,
		  no quotes, no code fences.
		- Format: type/TICKET-short-description
		- The description is lowercase words joined by hyphens.
	`))
	fmt.Fprintf(&b, "- Allowed types: %s\n", strings.Join(typesFor(rs), ", "))
	if ticket != "" {
		fmt.Fprintf(&b, "- Ticket: %s\n", ticket)
	}
	if rs.BranchPattern != "" {
		fmt.Fprintf(&b, "- The name must match this regex: %s\n", rs.BranchPattern)
	}
	b.WriteString("\nChanges:\n")
	b.WriteString(clipDiff(diff))
	return b.String()
}

// CommitMessage asks for a conventional commit message for the given diff.
func CommitMessage(diff, ticket string, rs rules.Set) string {
	var b strings.Builder
	b.WriteString(heredoc.Doc(`
		Write a commit message for the changes below.

		Requirements:
		- First line: type(scope): short imperative description, 72 chars max.
		- Types: feat, fix, docs, style, refactor, perf, test, build, ci, chore, revert.
		- Optionally add a short body after a blank line.
		- Answer with the commit message only. No explanation, no code fences.
	`))
	if ticket != "" {
		fmt.Fprintf(&b, "- Use the ticket %s as the scope.\n", ticket)
	}
	if rs.CommitPattern != "" {
		fmt.Fprintf(&b, "- The first line must match this regex: %s\n", rs.CommitPattern)
	}
	b.WriteString("\nChanges:\n")
	b.WriteString(clipDiff(diff))
	return b.String()
}

// TargetInput carries the signals available for target branch selection.
type TargetInput struct {
	CurrentBranch    string
	AvailableTargets []string
	DefaultBranch    string
	RecentMRTargets  []string
	RecentSubjects   []string
	Ticket           string
}

// TargetBranch asks the model to pick a merge target under a fixed rule set.
// The answer is JSON so the selector can parse it defensively.
func TargetBranch(in TargetInput) string {
	var b strings.Builder
	b.WriteString(heredoc.Doc(`
		Pick the merge target for the branch described below.

		Rules, in priority order:
		1. feature/* targets the development integration branch when one
		   exists, else the default branch. bugfix/* does the same unless the
		   fix is clearly critical, then it targets the production branch.
		   hotfix/* and release/* always target the production branch.
		   chore/* and docs/* follow the feature rule.
		2. Both an integration branch (develop/development/dev) and a
		   production branch (main/master) present means a two-tier flow.
		   Only a production branch means a single-tier flow targeting the
		   default branch.
		3. Recent merge request targets indicate the established pattern;
		   prefer it when in doubt.

		Answer with a single JSON object and nothing else:
		{"target_branch": "...", "confidence": "high|medium|low", "reasoning": "..."}
		The target_branch must be one of the available branches.
	`))
	fmt.Fprintf(&b, "\nCurrent branch: %s\n", in.CurrentBranch)
	fmt.Fprintf(&b, "Available branches: %s\n", strings.Join(in.AvailableTargets, ", "))
	fmt.Fprintf(&b, "Default branch: %s\n", in.DefaultBranch)
	if len(in.RecentMRTargets) > 0 {
		fmt.Fprintf(&b, "Recent MR targets: %s\n", strings.Join(in.RecentMRTargets, ", "))
	}
	if len(in.RecentSubjects) > 0 {
		fmt.Fprintf(&b, "Recent commits: %s\n", strings.Join(in.RecentSubjects, "; "))
	}
	if in.Ticket != "" {
		fmt.Fprintf(&b, "Ticket: %s\n", in.Ticket)
	}
	return b.String()
}

// Review asks for a structured code review of the given changes.
// businessContext is optional free text describing project conventions.
func Review(changes []string, businessContext string) string {
	var b strings.Builder
	b.WriteString(heredoc.Doc(`
		Review the following merge request changes.

		Answer with a single JSON object and nothing else:
		{
		  "summary": "one paragraph overall assessment",
		  "score": 0-100,
		  "comments": [
		    {"file": "path", "line": 10, "severity": "error|warning|info|suggestion", "message": "..."}
		  ]
		}
		Line numbers refer to the new file version. Only raise comments you
		are confident about; severity "error" is reserved for bugs and
		security problems.
	`))
	if businessContext != "" {
		b.WriteString("\nProject context:\n")
		b.WriteString(businessContext)
		b.WriteString("\n")
	}
	b.WriteString("\nChanges:\n")
	b.WriteString(clipDiff(strings.Join(changes, "\n")))
	return b.String()
}

func typesFor(rs rules.Set) []string {
	if len(rs.AllowedTypes) > 0 {
		return rs.AllowedTypes
	}
	return rules.DefaultTypes
}

func clipDiff(diff string) string {
	if len(diff) <= maxDiffChars {
		return diff
	}
	return diff[:maxDiffChars] + "\n[diff truncated]"
}
