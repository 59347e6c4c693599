package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// ListMergeRequestsOptions filters the MR listing.
type ListMergeRequestsOptions struct {
	State        string // "opened", "merged", "closed", or "" for all
	SourceBranch string
	TargetBranch string
	OrderBy      string // e.g. "updated_at"
}

// ListMergeRequests lists project MRs matching the filters.
func (c *Client) ListMergeRequests(ctx context.Context, projectID int, opts ListMergeRequestsOptions) ([]MergeRequest, error) {
	query := url.Values{"per_page": {"50"}}
	if opts.State != "" {
		query.Set("state", opts.State)
	}
	if opts.SourceBranch != "" {
		query.Set("source_branch", opts.SourceBranch)
	}
	if opts.TargetBranch != "" {
		query.Set("target_branch", opts.TargetBranch)
	}
	if opts.OrderBy != "" {
		query.Set("order_by", opts.OrderBy)
	}

	var mrs []MergeRequest
	path := fmt.Sprintf("/projects/%d/merge_requests", projectID)
	if err := c.do(ctx, http.MethodGet, path, query, nil, &mrs); err != nil {
		return nil, fmt.Errorf("listing merge requests: %w", err)
	}
	return mrs, nil
}

// CreateMergeRequestOptions describes a new MR.
type CreateMergeRequestOptions struct {
	SourceBranch       string `json:"source_branch"`
	TargetBranch       string `json:"target_branch"`
	Title              string `json:"title"`
	Description        string `json:"description,omitempty"`
	RemoveSourceBranch bool   `json:"remove_source_branch,omitempty"`
}

// CreateMergeRequest opens a new MR.
func (c *Client) CreateMergeRequest(ctx context.Context, projectID int, opts CreateMergeRequestOptions) (*MergeRequest, error) {
	var mr MergeRequest
	path := fmt.Sprintf("/projects/%d/merge_requests", projectID)
	if err := c.do(ctx, http.MethodPost, path, nil, opts, &mr); err != nil {
		return nil, fmt.Errorf("creating merge request: %w", err)
	}
	return &mr, nil
}

// GetMergeRequest fetches one MR by internal id.
func (c *Client) GetMergeRequest(ctx context.Context, projectID, iid int) (*MergeRequest, error) {
	var mr MergeRequest
	path := fmt.Sprintf("/projects/%d/merge_requests/%d", projectID, iid)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &mr); err != nil {
		return nil, fmt.Errorf("fetching merge request !%d: %w", iid, err)
	}
	return &mr, nil
}

// GetMergeRequestChanges fetches an MR including its changed-file diffs.
// Freshly created MRs may return zero changes until the backend populates
// the diff; callers poll.
func (c *Client) GetMergeRequestChanges(ctx context.Context, projectID, iid int) (*MergeRequest, error) {
	var mr MergeRequest
	path := fmt.Sprintf("/projects/%d/merge_requests/%d/changes", projectID, iid)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &mr); err != nil {
		return nil, fmt.Errorf("fetching merge request !%d changes: %w", iid, err)
	}
	return &mr, nil
}

// CreateNote posts an MR-level comment.
func (c *Client) CreateNote(ctx context.Context, projectID, iid int, body string) error {
	payload := map[string]string{"body": body}
	path := fmt.Sprintf("/projects/%d/merge_requests/%d/notes", projectID, iid)
	if err := c.do(ctx, http.MethodPost, path, nil, payload, nil); err != nil {
		return fmt.Errorf("posting note on !%d: %w", iid, err)
	}
	return nil
}

// CreateDiscussion posts a positioned inline discussion on an MR diff.
func (c *Client) CreateDiscussion(ctx context.Context, projectID, iid int, body string, pos Position) error {
	pos.PositionType = "text"
	payload := struct {
		Body     string   `json:"body"`
		Position Position `json:"position"`
	}{Body: body, Position: pos}

	path := fmt.Sprintf("/projects/%d/merge_requests/%d/discussions", projectID, iid)
	if err := c.do(ctx, http.MethodPost, path, nil, payload, nil); err != nil {
		return fmt.Errorf("posting discussion on %s: %w", pos.NewPath, err)
	}
	return nil
}
