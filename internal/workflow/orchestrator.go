package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"

	"github.com/devflowkit/mrpilot/internal/config"
	"github.com/devflowkit/mrpilot/internal/gitlab"
	"github.com/devflowkit/mrpilot/internal/llm"
	"github.com/devflowkit/mrpilot/internal/normalize"
	"github.com/devflowkit/mrpilot/internal/prompt"
	"github.com/devflowkit/mrpilot/internal/repoctx"
	"github.com/devflowkit/mrpilot/internal/review"
	"github.com/devflowkit/mrpilot/internal/rules"
	"github.com/devflowkit/mrpilot/internal/target"
)

// maxGenerationAttempts bounds the regenerate-on-validation-failure loop for
// branch names and commit messages. Each retry feeds the validation error
// back into the prompt.
const maxGenerationAttempts = 3

// recentHistoryDepth is how many merged MRs and commit subjects feed target
// selection.
const recentHistoryDepth = 10

// Orchestrator coordinates the full pipeline. It contains only coordination
// logic; git, backend, and model access go through the injected interfaces.
type Orchestrator struct {
	Config   *config.Configuration
	Git      GitRunner
	SCM      SCM
	Chat     llm.Client
	Targets  TargetSelector
	Confirm  Confirmer
	Progress Progress
}

// New wires an orchestrator with production implementations. scm and chat
// are required; confirm and progress may be nil for non-interactive use.
func New(cfg *config.Configuration, scm SCM, chat llm.Client, confirm Confirmer, progress Progress) *Orchestrator {
	if confirm == nil || cfg.SkipConfirmations {
		confirm = AutoConfirm{}
	}
	if progress == nil {
		progress = NopProgress{}
	}
	return &Orchestrator{
		Config:   cfg,
		Git:      CLIGit{},
		SCM:      scm,
		Chat:     chat,
		Targets:  &target.Selector{Chat: chat},
		Confirm:  confirm,
		Progress: progress,
	}
}

// Execute runs the complete pipeline: resolve project and rules, ensure a
// working branch, commit, push, ensure a merge request, and review it.
// A run with nothing to process completes early without touching the model.
func (o *Orchestrator) Execute(ctx context.Context, opts RunOptions) (*Run, error) {
	run := NewRun()
	defer func() { run.FinishedAt = time.Now() }()

	if err := o.Prepare(ctx, run, opts); err != nil {
		return run, err
	}
	if err := o.EnsureBranch(ctx, run); err != nil {
		if errors.Is(err, ErrNoChanges) {
			return run, o.finish(run, "nothing to do, working tree is clean")
		}
		return run, err
	}
	if err := o.CommitChanges(ctx, run); err != nil {
		if !errors.Is(err, ErrNoChanges) {
			return run, err
		}
		// Branch may still carry earlier commits; continue to the MR.
		o.Progress.Info("no new changes to commit")
	}
	if err := o.PushBranch(ctx, run); err != nil {
		return run, err
	}
	if err := o.EnsureMergeRequest(ctx, run, opts); err != nil {
		return run, err
	}
	if opts.SkipReview {
		return run, o.finish(run, fmt.Sprintf("merge request ready: %s", run.MR.WebURL))
	}
	return run, o.ReviewMergeRequest(ctx, run)
}

// ReviewMergeRequest runs the review tail of the pipeline: wait for the MR
// diff, review it, and post the findings. An unavailable diff completes the
// run early with a warning; the merge request itself is already in place.
func (o *Orchestrator) ReviewMergeRequest(ctx context.Context, run *Run) error {
	if err := o.AwaitChanges(ctx, run); err != nil {
		if errors.Is(err, ErrChangesUnavailable) {
			o.Progress.Warn("merge request diff not available yet, skipping review")
			return o.finish(run, fmt.Sprintf("merge request ready: %s", run.MR.WebURL))
		}
		return err
	}
	if err := o.ReviewChanges(ctx, run); err != nil {
		return err
	}
	if err := o.PostReview(ctx, run); err != nil {
		return err
	}
	return o.finish(run, fmt.Sprintf("review posted on %s", run.MR.WebURL))
}

// Prepare resolves the ticket, the backend project, and the naming rules.
// Backend unavailability is tolerated here so local-only stages still work;
// stages that need the project fail later instead.
func (o *Orchestrator) Prepare(ctx context.Context, run *Run, opts RunOptions) error {
	if err := o.checkpoint(ctx, run); err != nil {
		return err
	}

	ticket, err := o.resolveTicket(opts)
	if err != nil {
		return o.failAt(run, StageProjectResolved, err)
	}
	run.Ticket = ticket

	o.Progress.Start("resolving project")
	if path, err := o.Git.ProjectPath(); err == nil {
		project, perr := o.SCM.ProjectByPath(ctx, path)
		if perr != nil {
			o.Progress.Warn(fmt.Sprintf("project %s not resolvable: %v", path, perr))
		} else {
			run.Project = project
		}
	} else {
		o.Progress.Warn(fmt.Sprintf("cannot derive project from remote: %v", err))
	}
	run.advance(StageProjectResolved)

	run.Rules = o.extractRules(ctx, run)
	run.advance(StageRulesExtracted)
	if run.Rules.HasRules {
		o.Progress.Done("naming rules extracted from CI config")
	} else {
		o.Progress.Done("no naming rules found, using defaults")
	}
	return nil
}

// extractRules reads the CI config locally, falling back to the backend copy
// on the default branch. Extraction itself never fails.
func (o *Orchestrator) extractRules(ctx context.Context, run *Run) rules.Set {
	if data, err := os.ReadFile(o.Config.CIConfigPath); err == nil {
		return rules.Extract(string(data))
	}
	if run.Project != nil {
		if data, err := o.SCM.RawFile(ctx, run.Project.ID, o.Config.CIConfigPath, run.Project.DefaultBranch); err == nil {
			return rules.Extract(string(data))
		}
	}
	return rules.Set{}
}

// EnsureBranch guarantees the run sits on a committable branch. On a
// protected branch a new branch name is generated from the working tree
// diff, confirmed, and created. Commits never land on a protected branch.
func (o *Orchestrator) EnsureBranch(ctx context.Context, run *Run) error {
	if err := o.checkpoint(ctx, run); err != nil {
		return err
	}

	current, err := o.Git.CurrentBranch()
	if err != nil {
		return o.failAt(run, StageBranchEnsured, err)
	}
	if !o.Config.IsProtected(current) {
		run.Branch = current
		run.advance(StageBranchEnsured)
		return nil
	}

	diff, err := o.Git.DiffWorkingTree()
	if err != nil {
		return o.failAt(run, StageBranchEnsured, err)
	}
	if strings.TrimSpace(diff) == "" && !o.Git.HasStagedChanges() {
		return ErrNoChanges
	}

	o.Progress.Start("generating branch name")
	name, err := o.generate(ctx,
		prompt.BranchName(diff, run.Ticket.String(), run.Rules),
		func(answer string) (string, error) {
			return normalize.BranchName(answer, run.Ticket, run.Rules)
		})
	if err != nil {
		return o.failAt(run, StageBranchEnsured, err)
	}

	ok, err := o.Confirm.Confirm(fmt.Sprintf("Create branch %s from %s?", name, current), true)
	if err != nil {
		return o.failAt(run, StageBranchEnsured, err)
	}
	if !ok {
		return o.cancel(run, "branch creation declined")
	}
	if err := o.Git.CreateBranch(name); err != nil {
		return o.failAt(run, StageBranchEnsured, err)
	}
	run.Branch = name
	run.advance(StageBranchEnsured)
	o.Progress.Done("created branch " + name)
	return nil
}

// CommitChanges stages everything, generates a commit message for the staged
// diff, and commits. Returns ErrNoChanges when nothing is staged.
func (o *Orchestrator) CommitChanges(ctx context.Context, run *Run) error {
	if err := o.checkpoint(ctx, run); err != nil {
		return err
	}

	// The branch invariant holds even when this stage is entered directly.
	current, err := o.Git.CurrentBranch()
	if err != nil {
		return o.failAt(run, StageStaged, err)
	}
	if o.Config.IsProtected(current) {
		return o.failAt(run, StageStaged,
			fmt.Errorf("refusing to commit on protected branch %q", current))
	}

	if err := o.Git.StageAll(); err != nil {
		return o.failAt(run, StageStaged, err)
	}
	if !o.Git.HasStagedChanges() {
		return ErrNoChanges
	}
	run.advance(StageStaged)

	diff, err := o.Git.DiffStaged()
	if err != nil {
		return o.failAt(run, StageCommitGenerated, err)
	}

	o.Progress.Start("generating commit message")
	message, err := o.generate(ctx,
		prompt.CommitMessage(diff, run.Ticket.String(), run.Rules),
		func(answer string) (string, error) {
			return normalize.CommitMessage(answer, run.Ticket, run.Rules)
		})
	if err != nil {
		return o.failAt(run, StageCommitGenerated, err)
	}
	run.CommitMessage = message
	run.advance(StageCommitGenerated)

	ok, err := o.Confirm.Confirm(fmt.Sprintf("Commit with message %q?", firstLine(message)), true)
	if err != nil {
		return o.failAt(run, StageCommitted, err)
	}
	if !ok {
		return o.cancel(run, "commit declined")
	}

	sha, err := o.Git.Commit(message)
	if err != nil {
		return o.failAt(run, StageCommitted, err)
	}
	run.CommitSHA = sha
	run.advance(StageCommitted)
	o.Progress.Done("committed " + shortSHA(sha))
	return nil
}

// PushBranch pushes the run's branch, first with upstream tracking and once
// more without it when that fails.
func (o *Orchestrator) PushBranch(ctx context.Context, run *Run) error {
	if err := o.checkpoint(ctx, run); err != nil {
		return err
	}
	if run.Branch == "" {
		current, err := o.Git.CurrentBranch()
		if err != nil {
			return o.failAt(run, StagePushed, err)
		}
		run.Branch = current
	}
	// The branch invariant also covers direct entry into this stage.
	if o.Config.IsProtected(run.Branch) {
		return o.failAt(run, StagePushed,
			fmt.Errorf("refusing to push protected branch %q", run.Branch))
	}

	o.Progress.Start("pushing " + run.Branch)
	if err := o.Git.Push(o.Config.Remote, run.Branch, true); err != nil {
		o.Progress.Warn(fmt.Sprintf("push with upstream failed, retrying: %v", err))
		if err := o.Git.Push(o.Config.Remote, run.Branch, false); err != nil {
			return o.failAt(run, StagePushed, err)
		}
	}
	run.advance(StagePushed)
	o.Progress.Done("pushed to " + o.Config.Remote)
	return nil
}

// EnsureMergeRequest reuses the open MR for the branch or creates one after
// target selection. A low-confidence target requires user confirmation.
func (o *Orchestrator) EnsureMergeRequest(ctx context.Context, run *Run, opts RunOptions) error {
	if err := o.checkpoint(ctx, run); err != nil {
		return err
	}
	if run.Project == nil {
		return o.failAt(run, StageMRResolved, errors.New("backend project not resolved"))
	}

	existing, err := o.SCM.ListMergeRequests(ctx, run.Project.ID, gitlab.ListMergeRequestsOptions{
		State:        "opened",
		SourceBranch: run.Branch,
	})
	if err != nil {
		return o.failAt(run, StageMRResolved, err)
	}
	if len(existing) > 0 {
		run.MR = &existing[0]
		run.Target = target.Decision{
			TargetBranch: existing[0].TargetBranch,
			Confidence:   target.ConfidenceHigh,
			Reasoning:    "existing merge request",
		}
		run.advance(StageMRResolved)
		o.Progress.Info("reusing merge request " + existing[0].WebURL)
		return nil
	}

	decision, err := o.selectTarget(ctx, run, opts)
	if err != nil {
		return o.failAt(run, StageMRResolved, err)
	}
	if decision.Confidence == target.ConfidenceLow {
		ok, cerr := o.Confirm.Confirm(
			fmt.Sprintf("Target branch %s chosen with low confidence (%s). Proceed?",
				decision.TargetBranch, decision.Reasoning), false)
		if cerr != nil {
			return o.failAt(run, StageMRResolved, cerr)
		}
		if !ok {
			return o.cancel(run, "target branch declined")
		}
	}
	run.Target = decision

	o.Progress.Start(fmt.Sprintf("creating merge request into %s", decision.TargetBranch))
	mr, err := o.SCM.CreateMergeRequest(ctx, run.Project.ID, gitlab.CreateMergeRequestOptions{
		SourceBranch:       run.Branch,
		TargetBranch:       decision.TargetBranch,
		Title:              o.mrTitle(run),
		Description:        formatMRDescription(run),
		RemoveSourceBranch: true,
	})
	if err != nil {
		return o.failAt(run, StageMRResolved, err)
	}
	run.MR = mr
	run.advance(StageMRResolved)
	o.Progress.Done("merge request created: " + mr.WebURL)
	return nil
}

// selectTarget gathers selection signals and delegates to the selector. An
// explicit override bypasses selection but must name an existing branch.
func (o *Orchestrator) selectTarget(ctx context.Context, run *Run, opts RunOptions) (target.Decision, error) {
	branches, err := o.SCM.ListBranches(ctx, run.Project.ID)
	if err != nil {
		return target.Decision{}, err
	}
	available := make([]string, 0, len(branches))
	for _, b := range branches {
		if b.Name != run.Branch {
			available = append(available, b.Name)
		}
	}

	if opts.TargetBranch != "" {
		for _, name := range available {
			if name == opts.TargetBranch {
				return target.Decision{
					TargetBranch: name,
					Confidence:   target.ConfidenceHigh,
					Reasoning:    "explicitly requested",
				}, nil
			}
		}
		return target.Decision{}, fmt.Errorf("requested target branch %q does not exist", opts.TargetBranch)
	}

	// History signals are best effort.
	var recentTargets []string
	if merged, err := o.SCM.ListMergeRequests(ctx, run.Project.ID, gitlab.ListMergeRequestsOptions{
		State:   "merged",
		OrderBy: "updated_at",
	}); err == nil {
		for i, mr := range merged {
			if i == recentHistoryDepth {
				break
			}
			recentTargets = append(recentTargets, mr.TargetBranch)
		}
	}
	subjects, _ := o.Git.RecentSubjects(recentHistoryDepth)

	return o.Targets.Select(ctx, target.Input{
		CurrentBranch:   run.Branch,
		Available:       available,
		DefaultBranch:   run.Project.DefaultBranch,
		RecentMRTargets: recentTargets,
		RecentSubjects:  subjects,
		Ticket:          run.Ticket.String(),
	}), nil
}

// AwaitChanges polls until the backend has populated the MR diff. Exhausting
// the polling window yields ErrChangesUnavailable, which callers treat as a
// degraded outcome rather than a failure.
func (o *Orchestrator) AwaitChanges(ctx context.Context, run *Run) error {
	if err := o.checkpoint(ctx, run); err != nil {
		return err
	}

	o.Progress.Start("waiting for merge request diff")
	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewConstantBackOff(time.Duration(o.Config.ChangesPollDelaySec)*time.Second),
		uint64(o.Config.ChangesPollAttempts-1)), ctx)

	err := backoff.Retry(func() error {
		mr, err := o.SCM.GetMergeRequestChanges(ctx, run.Project.ID, run.MR.IID)
		if err != nil {
			return err
		}
		if len(mr.Changes) == 0 {
			return ErrChangesUnavailable
		}
		run.MR = mr
		return nil
	}, policy)
	if err != nil {
		if ctx.Err() != nil {
			return o.checkpoint(ctx, run)
		}
		// Transport errors and exhausted polling both degrade the same way.
		return ErrChangesUnavailable
	}
	run.advance(StageChangesAvailable)
	o.Progress.Done(fmt.Sprintf("%d changed files", len(run.MR.Changes)))
	return nil
}

// ReviewChanges asks the model for a structured review of the MR diff.
// Malformed model output degrades inside review.Parse; only transport
// failures surface as errors.
func (o *Orchestrator) ReviewChanges(ctx context.Context, run *Run) error {
	if err := o.checkpoint(ctx, run); err != nil {
		return err
	}

	changes := make([]string, 0, len(run.MR.Changes))
	for _, c := range run.MR.Changes {
		changes = append(changes, fmt.Sprintf("--- %s\n%s", c.NewPath, c.Diff))
	}
	business := repoctx.Load(o.Config.ContextPath).Render()
	// Ownership is best-effort context; a missing CODEOWNERS is not an error.
	if owners, oerr := o.SCM.Codeowners(ctx, run.Project.ID, run.MR.TargetBranch); oerr == nil && len(owners) > 0 {
		if business != "" {
			business += "\n\n"
		}
		business += "Code ownership:\n" + strings.TrimSpace(string(owners))
	}

	o.Progress.Start("reviewing changes")
	resp, err := o.Chat.Chat(ctx, llm.Request{
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: prompt.Review(changes, business),
		}},
		MaxTokens:   o.Config.LLMMaxTokens,
		Temperature: o.Config.Temperature,
	})
	if err != nil {
		return o.failAt(run, StageReviewed, err)
	}

	run.Review = review.Parse(resp.Text)
	run.advance(StageReviewed)
	if run.Review.Degraded {
		o.Progress.Warn("review output was unstructured, posting summary only")
	} else {
		o.Progress.Done(fmt.Sprintf("review complete, score %d/100", run.Review.Score))
	}
	return nil
}

// PostReview publishes the summary note and up to the configured number of
// inline comments. Individual inline failures are skipped and reported; only
// a failed summary note fails the stage.
func (o *Orchestrator) PostReview(ctx context.Context, run *Run) error {
	if err := o.checkpoint(ctx, run); err != nil {
		return err
	}

	o.Progress.Start("posting review")
	if err := o.SCM.CreateNote(ctx, run.Project.ID, run.MR.IID, formatSummaryNote(run.Review)); err != nil {
		return o.failAt(run, StageCommentsPosted, err)
	}

	var errs *multierror.Error
	for _, c := range run.Review.ForInline(o.Config.MaxInlineComments) {
		pos := gitlab.Position{
			BaseSHA:  run.MR.DiffRefs.BaseSHA,
			StartSHA: run.MR.DiffRefs.StartSHA,
			HeadSHA:  run.MR.DiffRefs.HeadSHA,
			NewPath:  c.File,
			NewLine:  c.Line,
		}
		if err := o.SCM.CreateDiscussion(ctx, run.Project.ID, run.MR.IID, formatInlineComment(c), pos); err != nil {
			run.InlineSkipped++
			errs = multierror.Append(errs, fmt.Errorf("%s:%d: %w", c.File, c.Line, err))
			continue
		}
		run.InlinePosted++
	}
	if errs != nil {
		o.Progress.Warn(fmt.Sprintf("skipped %d inline comments: %v", run.InlineSkipped, errs.ErrorOrNil()))
	}
	run.advance(StageCommentsPosted)
	o.Progress.Done(fmt.Sprintf("posted summary and %d inline comments", run.InlinePosted))
	return nil
}

// generate runs the bounded generate-validate loop shared by branch name and
// commit message generation. Validation failures are fed back to the model;
// transport failures abort immediately.
func (o *Orchestrator) generate(ctx context.Context, basePrompt string, normalizeFn func(string) (string, error)) (string, error) {
	p := basePrompt
	var lastErr error
	for attempt := 1; attempt <= maxGenerationAttempts; attempt++ {
		resp, err := o.Chat.Chat(ctx, llm.Request{
			Messages:    []llm.Message{{Role: llm.RoleUser, Content: p}},
			MaxTokens:   o.Config.LLMMaxTokens,
			Temperature: o.Config.Temperature,
		})
		if err != nil {
			return "", fmt.Errorf("model request failed: %w", err)
		}
		result, err := normalizeFn(resp.Text)
		if err == nil {
			return result, nil
		}
		lastErr = err
		p = fmt.Sprintf("%s\n\nYour previous answer was rejected: %v\nAnswer again, following the requirements exactly.", basePrompt, err)
	}
	return "", fmt.Errorf("no valid answer after %d attempts: %w", maxGenerationAttempts, lastErr)
}

func (o *Orchestrator) resolveTicket(opts RunOptions) (normalize.Ticket, error) {
	raw := opts.Ticket
	if raw == "" {
		raw = o.Config.DefaultTicket
	}
	if raw == "" {
		return "", nil
	}
	return normalize.ParseTicket(raw)
}

func (o *Orchestrator) mrTitle(run *Run) string {
	if run.CommitMessage != "" {
		return firstLine(run.CommitMessage)
	}
	return run.Branch
}

// checkpoint enforces the stage-boundary cancellation contract.
func (o *Orchestrator) checkpoint(ctx context.Context, run *Run) error {
	if err := ctx.Err(); err != nil {
		run.Stage = StageCancelled
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	return nil
}

func (o *Orchestrator) cancel(run *Run, reason string) error {
	run.Stage = StageCancelled
	o.Progress.Warn("cancelled: " + reason)
	return fmt.Errorf("%w: %s", ErrCancelled, reason)
}

func (o *Orchestrator) failAt(run *Run, stage Stage, err error) error {
	run.Stage = StageFailed
	return &StageError{Stage: stage, Err: err}
}

func (o *Orchestrator) finish(run *Run, message string) error {
	run.Stage = StageDone
	o.Progress.Done(message)
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
