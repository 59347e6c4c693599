package cli

import (
	"fmt"
	"time"

	"github.com/devflowkit/mrpilot/internal/config"
	"github.com/devflowkit/mrpilot/internal/git"
	"github.com/devflowkit/mrpilot/internal/gitlab"
	"github.com/devflowkit/mrpilot/internal/llm"
	"github.com/devflowkit/mrpilot/internal/workflow"
)

// buildOrchestrator loads configuration and wires the production pipeline.
func buildOrchestrator() (*workflow.Orchestrator, error) {
	if !git.IsRepository() {
		return nil, fmt.Errorf("not inside a git repository")
	}

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagYes {
		cfg.SkipConfirmations = true
	}

	scm, err := gitlab.NewClient(cfg.GitLabURL, cfg.GitLabToken,
		gitlab.WithTimeout(time.Duration(cfg.GitLabTimeoutSec)*time.Second))
	if err != nil {
		return nil, err
	}

	chat, err := llm.NewOpenAIClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel,
		llm.WithTimeout(time.Duration(cfg.LLMTimeoutSec)*time.Second))
	if err != nil {
		return nil, err
	}

	progress := newProgress()
	return workflow.New(cfg, scm, chat, &surveyConfirm{progress: progress}, progress), nil
}
