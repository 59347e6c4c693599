// Package workflow interfaces for dependency injection and testing.
// Related: internal/workflow/orchestrator.go, internal/workflow/mocks_test.go (test doubles)
package workflow

import (
	"context"

	"github.com/devflowkit/mrpilot/internal/git"
	"github.com/devflowkit/mrpilot/internal/gitlab"
	"github.com/devflowkit/mrpilot/internal/target"
)

// GitRunner abstracts local repository operations so the orchestrator can be
// tested without a working tree or a git binary.
//
// Primary implementation: CLIGit, which shells out via the git package.
type GitRunner interface {
	CurrentBranch() (string, error)
	BranchNames() ([]string, error)
	CreateBranch(name string) error
	StageAll() error
	HasStagedChanges() bool
	Commit(message string) (string, error)

	// Push pushes branch to remote. With upstream set the branch is pushed
	// with tracking; the orchestrator retries once without it on failure.
	Push(remote, branch string, upstream bool) error

	DiffStaged() (string, error)
	DiffWorkingTree() (string, error)
	RecentSubjects(n int) ([]string, error)
	ProjectPath() (string, error)
}

// SCM is the backend surface the orchestrator consumes. gitlab.Client is the
// production implementation.
type SCM interface {
	ProjectByPath(ctx context.Context, path string) (*gitlab.Project, error)
	ListBranches(ctx context.Context, projectID int) ([]gitlab.Branch, error)
	RawFile(ctx context.Context, projectID int, filePath, ref string) ([]byte, error)
	Codeowners(ctx context.Context, projectID int, ref string) ([]byte, error)
	ListMergeRequests(ctx context.Context, projectID int, opts gitlab.ListMergeRequestsOptions) ([]gitlab.MergeRequest, error)
	CreateMergeRequest(ctx context.Context, projectID int, opts gitlab.CreateMergeRequestOptions) (*gitlab.MergeRequest, error)
	GetMergeRequestChanges(ctx context.Context, projectID, iid int) (*gitlab.MergeRequest, error)
	CreateNote(ctx context.Context, projectID, iid int, body string) error
	CreateDiscussion(ctx context.Context, projectID, iid int, body string, pos gitlab.Position) error
}

// TargetSelector picks the merge target for a branch.
type TargetSelector interface {
	Select(ctx context.Context, in target.Input) target.Decision
}

// Confirmer gates irreversible actions behind user approval.
type Confirmer interface {
	// Confirm asks the user a yes/no question. A false answer cancels the
	// run at the next stage boundary.
	Confirm(question string, defaultYes bool) (bool, error)
}

// Progress reports pipeline activity to the user.
type Progress interface {
	Start(message string)
	Done(message string)
	Info(message string)
	Warn(message string)
}

// CLIGit implements GitRunner on top of the local git binary.
type CLIGit struct{}

func (CLIGit) CurrentBranch() (string, error)            { return git.CurrentBranch() }
func (CLIGit) BranchNames() ([]string, error)            { return git.BranchNames() }
func (CLIGit) CreateBranch(name string) error            { return git.CreateBranch(name) }
func (CLIGit) StageAll() error                           { return git.StageAll() }
func (CLIGit) HasStagedChanges() bool                    { return git.HasStagedChanges() }
func (CLIGit) Commit(message string) (string, error)     { return git.Commit(message) }
func (CLIGit) Push(remote, branch string, up bool) error { return git.Push(remote, branch, up) }
func (CLIGit) DiffStaged() (string, error)               { return git.DiffStaged() }
func (CLIGit) DiffWorkingTree() (string, error)          { return git.DiffWorkingTree() }
func (CLIGit) RecentSubjects(n int) ([]string, error)    { return git.RecentSubjects(n) }
func (CLIGit) ProjectPath() (string, error)              { return git.ProjectPath() }

// AutoConfirm answers yes to everything. Used when confirmations are
// disabled by configuration.
type AutoConfirm struct{}

func (AutoConfirm) Confirm(string, bool) (bool, error) { return true, nil }

// NopProgress discards all progress output.
type NopProgress struct{}

func (NopProgress) Start(string) {}
func (NopProgress) Done(string)  {}
func (NopProgress) Info(string)  {}
func (NopProgress) Warn(string)  {}

// Compile-time interface compliance checks.
var (
	_ GitRunner      = (*CLIGit)(nil)
	_ SCM            = (*gitlab.Client)(nil)
	_ TargetSelector = (*target.Selector)(nil)
	_ Confirmer      = (*AutoConfirm)(nil)
	_ Progress       = (*NopProgress)(nil)
)
