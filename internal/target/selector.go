// Package target picks the merge target for a branch. The LLM applies a
// fixed rule prompt over naming heuristics and historical signals; its
// answer is defensively re-validated and replaced by a deterministic
// fallback whenever it is absent, unparsable, or names an unknown branch.
package target

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/devflowkit/mrpilot/internal/llm"
	"github.com/devflowkit/mrpilot/internal/normalize"
	"github.com/devflowkit/mrpilot/internal/prompt"
)

// Confidence is the coarse reliability tier of a decision. Low confidence
// obligates the caller to request human confirmation before use.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Decision is a selected merge target with its confidence and reasoning.
type Decision struct {
	TargetBranch string
	Confidence   Confidence
	Reasoning    string
}

// fallbackOrder is the deterministic preference list checked against the
// available branch set when the model's answer cannot be used.
var fallbackOrder = []string{"develop", "development", "dev", "main", "master"}

// Input carries the signals available for selection.
type Input struct {
	CurrentBranch   string
	Available       []string
	DefaultBranch   string
	RecentMRTargets []string
	RecentSubjects  []string
	Ticket          string
}

// Selector chooses merge targets using a chat model.
type Selector struct {
	Chat llm.Client
}

// Select produces a Decision. It never returns a branch outside the
// available set: an unusable model answer degrades to Fallback. Transport
// errors from the model are treated the same as an absent answer.
func (s *Selector) Select(ctx context.Context, in Input) Decision {
	raw, err := s.ask(ctx, in)
	if err != nil {
		return Fallback(in.Available, in.DefaultBranch,
			fmt.Sprintf("model unavailable (%v)", err))
	}

	var answer struct {
		TargetBranch string `json:"target_branch"`
		Confidence   string `json:"confidence"`
		Reasoning    string `json:"reasoning"`
	}
	text := normalize.Sanitize(raw)
	if err := json.Unmarshal([]byte(extractObject(text)), &answer); err != nil || answer.TargetBranch == "" {
		return Fallback(in.Available, in.DefaultBranch, "model answer was not parseable")
	}

	if !contains(in.Available, answer.TargetBranch) {
		return Fallback(in.Available, in.DefaultBranch,
			fmt.Sprintf("model proposed %q which is not an available branch", answer.TargetBranch))
	}

	return Decision{
		TargetBranch: answer.TargetBranch,
		Confidence:   parseConfidence(answer.Confidence),
		Reasoning:    answer.Reasoning,
	}
}

func (s *Selector) ask(ctx context.Context, in Input) (string, error) {
	resp, err := s.Chat.Chat(ctx, llm.Request{
		Messages: []llm.Message{{
			Role: llm.RoleUser,
			Content: prompt.TargetBranch(prompt.TargetInput{
				CurrentBranch:    in.CurrentBranch,
				AvailableTargets: in.Available,
				DefaultBranch:    in.DefaultBranch,
				RecentMRTargets:  in.RecentMRTargets,
				RecentSubjects:   in.RecentSubjects,
				Ticket:           in.Ticket,
			}),
		}},
		MaxTokens:   300,
		Temperature: 0.1,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Fallback walks the deterministic preference order against the available
// set. A found well-known branch yields medium confidence; exhausting the
// list yields the configured default with low confidence, forcing a
// confirmation gate.
func Fallback(available []string, defaultBranch, reason string) Decision {
	for _, name := range fallbackOrder {
		if contains(available, name) {
			return Decision{
				TargetBranch: name,
				Confidence:   ConfidenceMedium,
				Reasoning:    fmt.Sprintf("%s; fell back to %s", reason, name),
			}
		}
	}
	return Decision{
		TargetBranch: defaultBranch,
		Confidence:   ConfidenceLow,
		Reasoning:    fmt.Sprintf("%s; no well-known branch available, using configured default", reason),
	}
}

func parseConfidence(s string) Confidence {
	switch Confidence(strings.ToLower(strings.TrimSpace(s))) {
	case ConfidenceHigh:
		return ConfidenceHigh
	case ConfidenceMedium:
		return ConfidenceMedium
	default:
		// Unknown confidence never upgrades trust.
		return ConfidenceLow
	}
}

func extractObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return text
	}
	return text[start : end+1]
}

func contains(set []string, name string) bool {
	for _, s := range set {
		if s == name {
			return true
		}
	}
	return false
}
