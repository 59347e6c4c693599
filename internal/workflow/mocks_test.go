// Package workflow test doubles for the GitRunner, SCM, Confirmer, and chat
// interfaces. Mocks record calls and allow configuring return values.
// Related: internal/workflow/interfaces.go, internal/workflow/orchestrator_test.go
package workflow

import (
	"context"

	"github.com/devflowkit/mrpilot/internal/gitlab"
	"github.com/devflowkit/mrpilot/internal/llm"
	"github.com/devflowkit/mrpilot/internal/target"
)

// PushCall records one Push invocation.
type PushCall struct {
	Remote   string
	Branch   string
	Upstream bool
}

// MockGit is an in-memory GitRunner.
type MockGit struct {
	Current     string
	Branches    []string
	Staged      bool
	WorkingDiff string
	StagedDiff  string
	Subjects    []string
	RemotePath  string

	CommitErr       error
	PushErr         error
	PushUpstreamErr error

	CreatedBranches []string
	CommittedMsgs   []string
	Pushes          []PushCall
	StageCalls      int
}

func (m *MockGit) CurrentBranch() (string, error) { return m.Current, nil }
func (m *MockGit) BranchNames() ([]string, error) { return m.Branches, nil }

func (m *MockGit) CreateBranch(name string) error {
	m.CreatedBranches = append(m.CreatedBranches, name)
	m.Current = name
	return nil
}

func (m *MockGit) StageAll() error {
	m.StageCalls++
	return nil
}

func (m *MockGit) HasStagedChanges() bool { return m.Staged }

func (m *MockGit) Commit(message string) (string, error) {
	if m.CommitErr != nil {
		return "", m.CommitErr
	}
	m.CommittedMsgs = append(m.CommittedMsgs, message)
	m.Staged = false
	return "abc123def456789012345678901234567890abcd", nil
}

func (m *MockGit) Push(remote, branch string, upstream bool) error {
	m.Pushes = append(m.Pushes, PushCall{Remote: remote, Branch: branch, Upstream: upstream})
	if upstream && m.PushUpstreamErr != nil {
		return m.PushUpstreamErr
	}
	return m.PushErr
}

func (m *MockGit) DiffStaged() (string, error)          { return m.StagedDiff, nil }
func (m *MockGit) DiffWorkingTree() (string, error)     { return m.WorkingDiff, nil }
func (m *MockGit) RecentSubjects(int) ([]string, error) { return m.Subjects, nil }
func (m *MockGit) ProjectPath() (string, error)         { return m.RemotePath, nil }

// MockSCM is an in-memory SCM backend.
type MockSCM struct {
	Project    *gitlab.Project
	ProjectErr error
	Branches   []gitlab.Branch
	RawFiles   map[string][]byte

	CodeownersData []byte

	OpenMRs   []gitlab.MergeRequest
	MergedMRs []gitlab.MergeRequest

	CreatedMR  *gitlab.MergeRequest
	CreateErr  error
	CreateOpts []gitlab.CreateMergeRequestOptions

	// ChangesSeq is returned call by call; the last entry repeats.
	ChangesSeq   []*gitlab.MergeRequest
	changesCalls int

	Notes           []string
	NoteErr         error
	Discussions     []gitlab.Position
	DiscussionErrs  []error
	discussionCalls int
}

func (m *MockSCM) ProjectByPath(_ context.Context, _ string) (*gitlab.Project, error) {
	if m.ProjectErr != nil {
		return nil, m.ProjectErr
	}
	return m.Project, nil
}

func (m *MockSCM) ListBranches(_ context.Context, _ int) ([]gitlab.Branch, error) {
	return m.Branches, nil
}

func (m *MockSCM) RawFile(_ context.Context, _ int, filePath, _ string) ([]byte, error) {
	if data, ok := m.RawFiles[filePath]; ok {
		return data, nil
	}
	return nil, &gitlab.APIError{Status: 404, Message: "404 File Not Found"}
}

func (m *MockSCM) Codeowners(_ context.Context, _ int, _ string) ([]byte, error) {
	return m.CodeownersData, nil
}

func (m *MockSCM) ListMergeRequests(_ context.Context, _ int, opts gitlab.ListMergeRequestsOptions) ([]gitlab.MergeRequest, error) {
	if opts.State == "opened" {
		return m.OpenMRs, nil
	}
	return m.MergedMRs, nil
}

func (m *MockSCM) CreateMergeRequest(_ context.Context, _ int, opts gitlab.CreateMergeRequestOptions) (*gitlab.MergeRequest, error) {
	m.CreateOpts = append(m.CreateOpts, opts)
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	if m.CreatedMR != nil {
		return m.CreatedMR, nil
	}
	return &gitlab.MergeRequest{
		IID:          1,
		Title:        opts.Title,
		SourceBranch: opts.SourceBranch,
		TargetBranch: opts.TargetBranch,
		WebURL:       "https://gitlab.example.com/group/app/-/merge_requests/1",
		DiffRefs:     gitlab.DiffRefs{BaseSHA: "base", StartSHA: "start", HeadSHA: "head"},
	}, nil
}

func (m *MockSCM) GetMergeRequestChanges(_ context.Context, _ int, _ int) (*gitlab.MergeRequest, error) {
	i := m.changesCalls
	m.changesCalls++
	if i >= len(m.ChangesSeq) {
		i = len(m.ChangesSeq) - 1
	}
	return m.ChangesSeq[i], nil
}

func (m *MockSCM) CreateNote(_ context.Context, _ int, _ int, body string) error {
	if m.NoteErr != nil {
		return m.NoteErr
	}
	m.Notes = append(m.Notes, body)
	return nil
}

func (m *MockSCM) CreateDiscussion(_ context.Context, _ int, _ int, _ string, pos gitlab.Position) error {
	i := m.discussionCalls
	m.discussionCalls++
	if i < len(m.DiscussionErrs) && m.DiscussionErrs[i] != nil {
		return m.DiscussionErrs[i]
	}
	m.Discussions = append(m.Discussions, pos)
	return nil
}

// SeqChat answers with a fixed script, one entry per call. The last entry
// repeats when the script runs out.
type SeqChat struct {
	Answers []string
	Err     error
	Calls   []llm.Request
}

func (s *SeqChat) Chat(_ context.Context, req llm.Request) (llm.Response, error) {
	s.Calls = append(s.Calls, req)
	if s.Err != nil {
		return llm.Response{}, s.Err
	}
	i := len(s.Calls) - 1
	if i >= len(s.Answers) {
		i = len(s.Answers) - 1
	}
	return llm.Response{Text: s.Answers[i]}, nil
}

// MockConfirm pops answers from a queue, defaulting to yes when empty.
type MockConfirm struct {
	Answers   []bool
	Questions []string
}

func (m *MockConfirm) Confirm(question string, _ bool) (bool, error) {
	m.Questions = append(m.Questions, question)
	if len(m.Answers) == 0 {
		return true, nil
	}
	answer := m.Answers[0]
	m.Answers = m.Answers[1:]
	return answer, nil
}

// stubSelector returns a fixed decision.
type stubSelector struct {
	decision target.Decision
}

func (s stubSelector) Select(_ context.Context, _ target.Input) target.Decision {
	return s.decision
}

var (
	_ GitRunner      = (*MockGit)(nil)
	_ SCM            = (*MockSCM)(nil)
	_ llm.Client     = (*SeqChat)(nil)
	_ Confirmer      = (*MockConfirm)(nil)
	_ TargetSelector = (stubSelector{})
)
