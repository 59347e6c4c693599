// Package workflow orchestrates the branch, commit, push, merge request,
// and review pipeline. The pipeline is forward-only: a run advances through
// a fixed stage order, never revisits a completed stage, and performs no
// rollback on failure. Cancellation is honored at stage boundaries only.
package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/devflowkit/mrpilot/internal/gitlab"
	"github.com/devflowkit/mrpilot/internal/normalize"
	"github.com/devflowkit/mrpilot/internal/review"
	"github.com/devflowkit/mrpilot/internal/rules"
	"github.com/devflowkit/mrpilot/internal/target"
)

// Stage identifies how far a run has progressed.
type Stage string

const (
	StageIdle             Stage = "idle"
	StageProjectResolved  Stage = "project_resolved"
	StageRulesExtracted   Stage = "rules_extracted"
	StageBranchEnsured    Stage = "branch_ensured"
	StageStaged           Stage = "staged"
	StageCommitGenerated  Stage = "commit_generated"
	StageCommitted        Stage = "committed"
	StagePushed           Stage = "pushed"
	StageMRResolved       Stage = "mr_resolved"
	StageChangesAvailable Stage = "changes_available"
	StageReviewed         Stage = "reviewed"
	StageCommentsPosted   Stage = "comments_posted"
	StageDone             Stage = "done"
	StageCancelled        Stage = "cancelled"
	StageFailed           Stage = "failed"
)

// stageOrder positions each non-terminal stage on the forward axis.
// Cancelled and Failed are terminal and sit outside the ordering.
var stageOrder = map[Stage]int{
	StageIdle:             0,
	StageProjectResolved:  1,
	StageRulesExtracted:   2,
	StageBranchEnsured:    3,
	StageStaged:           4,
	StageCommitGenerated:  5,
	StageCommitted:        6,
	StagePushed:           7,
	StageMRResolved:       8,
	StageChangesAvailable: 9,
	StageReviewed:         10,
	StageCommentsPosted:   11,
	StageDone:             12,
}

func (s Stage) String() string { return string(s) }

// Terminal reports whether a run in this stage has stopped.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageCancelled || s == StageFailed
}

// Sentinel outcomes a caller may branch on.
var (
	// ErrCancelled is returned when the user declines a confirmation or the
	// context is cancelled at a stage boundary.
	ErrCancelled = errors.New("workflow cancelled")

	// ErrNoChanges is returned when the working tree holds nothing to process.
	ErrNoChanges = errors.New("no changes to process")

	// ErrChangesUnavailable marks a merge request whose diff the backend has
	// not populated within the polling window. Review is skipped, not failed.
	ErrChangesUnavailable = errors.New("merge request changes not yet available")
)

// StageError wraps a failure with the stage being attempted.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Run is the mutable state of one pipeline invocation.
type Run struct {
	Stage  Stage
	Ticket normalize.Ticket
	Rules  rules.Set

	Branch        string
	CommitSHA     string
	CommitMessage string

	Project *gitlab.Project
	MR      *gitlab.MergeRequest
	Target  target.Decision

	Review        review.Result
	InlinePosted  int
	InlineSkipped int

	StartedAt  time.Time
	FinishedAt time.Time
}

// NewRun returns a run in the idle stage.
func NewRun() *Run {
	return &Run{Stage: StageIdle, StartedAt: time.Now()}
}

// advance moves the run forward to next. Moves that would go backwards or
// leave a terminal stage are ignored.
func (r *Run) advance(next Stage) {
	if r.Stage.Terminal() {
		return
	}
	if stageOrder[next] > stageOrder[r.Stage] {
		r.Stage = next
	}
}

// RunOptions are the per-invocation inputs.
type RunOptions struct {
	// Ticket is the raw issue reference, normalized before use. Empty falls
	// back to the configured default ticket.
	Ticket string

	// TargetBranch overrides target selection. It must name an existing
	// branch.
	TargetBranch string

	// SkipReview stops the pipeline after the merge request exists.
	SkipReview bool
}
