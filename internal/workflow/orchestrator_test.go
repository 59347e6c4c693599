package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devflowkit/mrpilot/internal/config"
	"github.com/devflowkit/mrpilot/internal/gitlab"
	"github.com/devflowkit/mrpilot/internal/review"
	"github.com/devflowkit/mrpilot/internal/target"
)

func testConfig(t *testing.T) *config.Configuration {
	t.Helper()
	return &config.Configuration{
		GitLabURL:           "https://gitlab.example.com",
		GitLabToken:         "glpat-test",
		LLMAPIKey:           "sk-test",
		LLMModel:            "test-model",
		LLMMaxTokens:        1024,
		Temperature:         0.2,
		Remote:              "origin",
		ProtectedBranches:   []string{"main", "master", "develop"},
		MaxInlineComments:   5,
		ChangesPollAttempts: 3,
		ChangesPollDelaySec: 0,
		LLMTimeoutSec:       180,
		CIConfigPath:        filepath.Join(t.TempDir(), "ci.yml"),
		ContextPath:         filepath.Join(t.TempDir(), "context.md"),
	}
}

func testProject() *gitlab.Project {
	return &gitlab.Project{
		ID:                7,
		PathWithNamespace: "group/app",
		DefaultBranch:     "main",
		WebURL:            "https://gitlab.example.com/group/app",
	}
}

func mrWithChanges(n int) *gitlab.MergeRequest {
	mr := &gitlab.MergeRequest{
		IID:          1,
		SourceBranch: "feature/ABC-123-add-login",
		TargetBranch: "develop",
		WebURL:       "https://gitlab.example.com/group/app/-/merge_requests/1",
		DiffRefs:     gitlab.DiffRefs{BaseSHA: "base", StartSHA: "start", HeadSHA: "head"},
	}
	for i := 0; i < n; i++ {
		mr.Changes = append(mr.Changes, gitlab.Change{
			NewPath: "auth.go",
			Diff:    "@@ -1 +1 @@\n+login()",
		})
	}
	return mr
}

const reviewAnswer = `{
	"summary": "Login handling looks correct, two issues found.",
	"score": 70,
	"comments": [
		{"file": "auth.go", "line": 10, "severity": "error", "message": "nil session dereference"},
		{"file": "auth.go", "line": 25, "severity": "warning", "message": "unchecked error"},
		{"file": "auth.go", "line": 30, "severity": "info", "message": "naming"}
	]
}`

func newTestOrchestrator(cfg *config.Configuration, gitm *MockGit, scm *MockSCM, chat *SeqChat) (*Orchestrator, *MockConfirm) {
	confirm := &MockConfirm{}
	o := &Orchestrator{
		Config:   cfg,
		Git:      gitm,
		SCM:      scm,
		Chat:     chat,
		Targets:  &target.Selector{Chat: chat},
		Confirm:  confirm,
		Progress: NopProgress{},
	}
	return o, confirm
}

func TestExecuteFullFlow(t *testing.T) {
	cfg := testConfig(t)
	gitm := &MockGit{
		Current:     "main",
		Staged:      true,
		WorkingDiff: "+login()",
		StagedDiff:  "+login()",
		RemotePath:  "group/app",
	}
	scm := &MockSCM{
		Project:    testProject(),
		Branches:   []gitlab.Branch{{Name: "main", Default: true}, {Name: "develop"}},
		ChangesSeq: []*gitlab.MergeRequest{mrWithChanges(0), mrWithChanges(1)},
	}
	chat := &SeqChat{Answers: []string{
		"<think>branch naming</think>\n`feature/ABC-123-add-login`",
		"fix: handle login",
		`{"target_branch": "develop", "confidence": "high", "reasoning": "two-tier flow"}`,
		reviewAnswer,
	}}
	o, _ := newTestOrchestrator(cfg, gitm, scm, chat)

	run, err := o.Execute(context.Background(), RunOptions{Ticket: "abc-123"})
	require.NoError(t, err)

	assert.Equal(t, StageDone, run.Stage)
	assert.Equal(t, []string{"feature/ABC-123-add-login"}, gitm.CreatedBranches)
	require.Len(t, gitm.CommittedMsgs, 1)
	assert.Equal(t, "fix(ABC-123): handle login", gitm.CommittedMsgs[0])
	require.Len(t, gitm.Pushes, 1)
	assert.True(t, gitm.Pushes[0].Upstream)

	require.Len(t, scm.CreateOpts, 1)
	assert.Equal(t, "develop", scm.CreateOpts[0].TargetBranch)
	assert.Equal(t, "fix(ABC-123): handle login", scm.CreateOpts[0].Title)

	// Summary note plus error and warning inline comments, info filtered.
	require.Len(t, scm.Notes, 1)
	assert.Contains(t, scm.Notes[0], "70/100")
	require.Len(t, scm.Discussions, 2)
	assert.Equal(t, "auth.go", scm.Discussions[0].NewPath)
	assert.Equal(t, 10, scm.Discussions[0].NewLine)
	assert.Equal(t, 2, run.InlinePosted)
	assert.Equal(t, 70, run.Review.Score)
}

func TestExecuteCleanTreeCompletesEarly(t *testing.T) {
	cfg := testConfig(t)
	gitm := &MockGit{Current: "main", RemotePath: "group/app"}
	scm := &MockSCM{Project: testProject()}
	chat := &SeqChat{Answers: []string{"unused"}}
	o, _ := newTestOrchestrator(cfg, gitm, scm, chat)

	run, err := o.Execute(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, StageDone, run.Stage)
	assert.Empty(t, chat.Calls, "a clean tree must not reach the model")
	assert.Empty(t, gitm.CreatedBranches)
	assert.Empty(t, scm.CreateOpts)
}

func TestCommitRefusedOnProtectedBranch(t *testing.T) {
	cfg := testConfig(t)
	gitm := &MockGit{Current: "develop", Staged: true}
	o, _ := newTestOrchestrator(cfg, gitm, &MockSCM{}, &SeqChat{})

	err := o.CommitChanges(context.Background(), NewRun())
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageStaged, stageErr.Stage)
	assert.Contains(t, err.Error(), "protected")
	assert.Empty(t, gitm.CommittedMsgs)
}

func TestPushRetriesWithoutUpstream(t *testing.T) {
	cfg := testConfig(t)
	gitm := &MockGit{Current: "feature/ABC-1-x", PushUpstreamErr: errors.New("unknown option")}
	o, _ := newTestOrchestrator(cfg, gitm, &MockSCM{}, &SeqChat{})

	run := NewRun()
	run.Branch = "feature/ABC-1-x"
	require.NoError(t, o.PushBranch(context.Background(), run))

	require.Len(t, gitm.Pushes, 2)
	assert.True(t, gitm.Pushes[0].Upstream)
	assert.False(t, gitm.Pushes[1].Upstream)
	assert.Equal(t, StagePushed, run.Stage)
}

func TestPushRefusedOnProtectedBranch(t *testing.T) {
	cfg := testConfig(t)
	gitm := &MockGit{Current: "main"}
	o, _ := newTestOrchestrator(cfg, gitm, &MockSCM{}, &SeqChat{})

	err := o.PushBranch(context.Background(), NewRun())
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StagePushed, stageErr.Stage)
	assert.Contains(t, err.Error(), "protected")
	assert.Empty(t, gitm.Pushes)
}

func TestEnsureMergeRequestReusesExisting(t *testing.T) {
	cfg := testConfig(t)
	existing := gitlab.MergeRequest{
		IID:          4,
		SourceBranch: "feature/ABC-1-x",
		TargetBranch: "develop",
		State:        "opened",
		WebURL:       "https://gitlab.example.com/group/app/-/merge_requests/4",
	}
	scm := &MockSCM{Project: testProject(), OpenMRs: []gitlab.MergeRequest{existing}}
	o, _ := newTestOrchestrator(cfg, &MockGit{}, scm, &SeqChat{})

	run := NewRun()
	run.Project = testProject()
	run.Branch = "feature/ABC-1-x"
	require.NoError(t, o.EnsureMergeRequest(context.Background(), run, RunOptions{}))

	assert.Equal(t, 4, run.MR.IID)
	assert.Empty(t, scm.CreateOpts, "existing MR must be reused, not recreated")
	assert.Equal(t, target.ConfidenceHigh, run.Target.Confidence)
}

func TestEnsureMergeRequestLowConfidenceDeclined(t *testing.T) {
	cfg := testConfig(t)
	scm := &MockSCM{
		Project:  testProject(),
		Branches: []gitlab.Branch{{Name: "trunk"}},
	}
	o, confirm := newTestOrchestrator(cfg, &MockGit{}, scm, &SeqChat{})
	o.Targets = stubSelector{decision: target.Decision{
		TargetBranch: "trunk",
		Confidence:   target.ConfidenceLow,
		Reasoning:    "nothing recognizable",
	}}
	confirm.Answers = []bool{false}

	run := NewRun()
	run.Project = testProject()
	run.Branch = "feature/ABC-1-x"
	err := o.EnsureMergeRequest(context.Background(), run, RunOptions{})

	require.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, StageCancelled, run.Stage)
	assert.Empty(t, scm.CreateOpts)
}

func TestEnsureMergeRequestExplicitTargetMustExist(t *testing.T) {
	cfg := testConfig(t)
	scm := &MockSCM{Project: testProject(), Branches: []gitlab.Branch{{Name: "main"}}}
	o, _ := newTestOrchestrator(cfg, &MockGit{}, scm, &SeqChat{})

	run := NewRun()
	run.Project = testProject()
	run.Branch = "feature/ABC-1-x"
	err := o.EnsureMergeRequest(context.Background(), run, RunOptions{TargetBranch: "staging"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestAwaitChangesDegradesWhenDiffNeverAppears(t *testing.T) {
	cfg := testConfig(t)
	scm := &MockSCM{Project: testProject(), ChangesSeq: []*gitlab.MergeRequest{mrWithChanges(0)}}
	o, _ := newTestOrchestrator(cfg, &MockGit{}, scm, &SeqChat{})

	run := NewRun()
	run.Project = testProject()
	run.MR = mrWithChanges(0)
	err := o.AwaitChanges(context.Background(), run)

	require.ErrorIs(t, err, ErrChangesUnavailable)
	assert.NotEqual(t, StageFailed, run.Stage, "missing diff degrades, never fails")
}

func TestExecuteSkipsReviewWhenDiffUnavailable(t *testing.T) {
	cfg := testConfig(t)
	gitm := &MockGit{
		Current:     "feature/ABC-1-x",
		Staged:      true,
		StagedDiff:  "+x",
		WorkingDiff: "+x",
		RemotePath:  "group/app",
	}
	scm := &MockSCM{
		Project:    testProject(),
		Branches:   []gitlab.Branch{{Name: "main"}, {Name: "develop"}},
		ChangesSeq: []*gitlab.MergeRequest{mrWithChanges(0)},
	}
	chat := &SeqChat{Answers: []string{
		"fix: tighten checks",
		`{"target_branch": "develop", "confidence": "high", "reasoning": "x"}`,
	}}
	o, _ := newTestOrchestrator(cfg, gitm, scm, chat)

	run, err := o.Execute(context.Background(), RunOptions{Ticket: "ABC-1"})
	require.NoError(t, err)

	assert.Equal(t, StageDone, run.Stage)
	assert.Empty(t, scm.Notes, "no review may be posted without a diff")
	assert.Len(t, chat.Calls, 2, "review model call must be skipped")
}

func TestReviewMergeRequestDegradesWhenDiffUnavailable(t *testing.T) {
	cfg := testConfig(t)
	scm := &MockSCM{Project: testProject(), ChangesSeq: []*gitlab.MergeRequest{mrWithChanges(0)}}
	chat := &SeqChat{Answers: []string{"unused"}}
	o, _ := newTestOrchestrator(cfg, &MockGit{}, scm, chat)

	run := NewRun()
	run.Project = testProject()
	run.MR = mrWithChanges(0)
	require.NoError(t, o.ReviewMergeRequest(context.Background(), run),
		"exhausted polling completes the run, it does not fail it")

	assert.Equal(t, StageDone, run.Stage)
	assert.Empty(t, chat.Calls)
	assert.Empty(t, scm.Notes)
}

func TestReviewChangesIncludesCodeowners(t *testing.T) {
	cfg := testConfig(t)
	scm := &MockSCM{Project: testProject(), CodeownersData: []byte("auth/* @backend-team\n")}
	chat := &SeqChat{Answers: []string{reviewAnswer}}
	o, _ := newTestOrchestrator(cfg, &MockGit{}, scm, chat)

	run := NewRun()
	run.Project = testProject()
	run.MR = mrWithChanges(1)
	require.NoError(t, o.ReviewChanges(context.Background(), run))

	require.Len(t, chat.Calls, 1)
	assert.Contains(t, chat.Calls[0].Messages[0].Content, "@backend-team")
}

func TestPostReviewSkipsFailedInlineComments(t *testing.T) {
	cfg := testConfig(t)
	scm := &MockSCM{
		Project:        testProject(),
		DiscussionErrs: []error{errors.New("line not in diff")},
	}
	o, _ := newTestOrchestrator(cfg, &MockGit{}, scm, &SeqChat{})

	run := NewRun()
	run.Project = testProject()
	run.MR = mrWithChanges(1)
	run.Review = review.Parse(reviewAnswer)

	require.NoError(t, o.PostReview(context.Background(), run))
	assert.Equal(t, 1, run.InlineSkipped)
	assert.Equal(t, 1, run.InlinePosted)
	require.Len(t, scm.Notes, 1)
}

func TestExecuteCancelledBeforeStart(t *testing.T) {
	cfg := testConfig(t)
	gitm := &MockGit{Current: "main"}
	o, _ := newTestOrchestrator(cfg, gitm, &MockSCM{}, &SeqChat{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	run, err := o.Execute(ctx, RunOptions{})

	require.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, StageCancelled, run.Stage)
	assert.Empty(t, gitm.CreatedBranches)
}

func TestEnsureBranchDeclinedCancelsRun(t *testing.T) {
	cfg := testConfig(t)
	gitm := &MockGit{Current: "main", WorkingDiff: "+x", Staged: true}
	chat := &SeqChat{Answers: []string{"feature/ABC-9-cleanup"}}
	o, confirm := newTestOrchestrator(cfg, gitm, &MockSCM{Project: testProject()}, chat)
	confirm.Answers = []bool{false}

	run := NewRun()
	run.Ticket = "ABC-9"
	err := o.EnsureBranch(context.Background(), run)

	require.ErrorIs(t, err, ErrCancelled)
	assert.Empty(t, gitm.CreatedBranches)
}

func TestGenerateRetriesWithFeedback(t *testing.T) {
	cfg := testConfig(t)
	chat := &SeqChat{Answers: []string{
		"that is a great question, let me think",
		"feature/ABC-9-cleanup",
	}}
	o, _ := newTestOrchestrator(cfg, &MockGit{}, &MockSCM{}, chat)

	got, err := o.generate(context.Background(), "base prompt", func(answer string) (string, error) {
		if answer != "feature/ABC-9-cleanup" {
			return "", errors.New("not a branch name")
		}
		return answer, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "feature/ABC-9-cleanup", got)
	require.Len(t, chat.Calls, 2)
	assert.Contains(t, chat.Calls[1].Messages[0].Content, "rejected")
}

func TestRunAdvanceIsForwardOnly(t *testing.T) {
	run := NewRun()
	run.advance(StagePushed)
	assert.Equal(t, StagePushed, run.Stage)

	run.advance(StageStaged)
	assert.Equal(t, StagePushed, run.Stage, "runs never move backwards")

	run.Stage = StageCancelled
	run.advance(StageDone)
	assert.Equal(t, StageCancelled, run.Stage, "terminal stages are final")
}
