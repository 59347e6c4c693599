package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// CurrentUser resolves the account owning the token.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/user", nil, nil, &user); err != nil {
		return nil, fmt.Errorf("resolving current user: %w", err)
	}
	return &user, nil
}

// ProjectByPath resolves a project by its "group/name" path.
func (c *Client) ProjectByPath(ctx context.Context, path string) (*Project, error) {
	var project Project
	if err := c.do(ctx, http.MethodGet, "/projects/"+projectPath(path), nil, nil, &project); err != nil {
		return nil, fmt.Errorf("resolving project %q: %w", path, err)
	}
	return &project, nil
}

// ListBranches returns the project's branches.
func (c *Client) ListBranches(ctx context.Context, projectID int) ([]Branch, error) {
	var branches []Branch
	query := url.Values{"per_page": {"100"}}
	path := fmt.Sprintf("/projects/%d/repository/branches", projectID)
	if err := c.do(ctx, http.MethodGet, path, query, nil, &branches); err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}
	return branches, nil
}

// GetBranch fetches one branch by name.
func (c *Client) GetBranch(ctx context.Context, projectID int, name string) (*Branch, error) {
	var branch Branch
	path := fmt.Sprintf("/projects/%d/repository/branches/%s", projectID, url.PathEscape(name))
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &branch); err != nil {
		return nil, err
	}
	return &branch, nil
}

// CreateBranch creates a branch from ref.
func (c *Client) CreateBranch(ctx context.Context, projectID int, name, ref string) (*Branch, error) {
	var branch Branch
	query := url.Values{"branch": {name}, "ref": {ref}}
	path := fmt.Sprintf("/projects/%d/repository/branches", projectID)
	if err := c.do(ctx, http.MethodPost, path, query, nil, &branch); err != nil {
		return nil, fmt.Errorf("creating branch %q: %w", name, err)
	}
	return &branch, nil
}

// CompareRefs compares two refs, returning commits and changed files.
func (c *Client) CompareRefs(ctx context.Context, projectID int, from, to string) (*Compare, error) {
	var result Compare
	query := url.Values{"from": {from}, "to": {to}}
	path := fmt.Sprintf("/projects/%d/repository/compare", projectID)
	if err := c.do(ctx, http.MethodGet, path, query, nil, &result); err != nil {
		return nil, fmt.Errorf("comparing %s..%s: %w", from, to, err)
	}
	return &result, nil
}

// RawFile fetches file content at a ref. Returns an APIError with status 404
// when the file does not exist at that ref.
func (c *Client) RawFile(ctx context.Context, projectID int, filePath, ref string) ([]byte, error) {
	query := url.Values{"ref": {ref}}
	path := fmt.Sprintf("/projects/%d/repository/files/%s/raw", projectID, url.PathEscape(filePath))
	return c.raw(ctx, path, query)
}

// codeownersPaths are the conventional CODEOWNERS locations, tried in order.
var codeownersPaths = []string{"CODEOWNERS", ".gitlab/CODEOWNERS", "docs/CODEOWNERS"}

// Codeowners fetches the CODEOWNERS file, trying each conventional path and
// tolerating individual misses. Returns nil when no file exists.
func (c *Client) Codeowners(ctx context.Context, projectID int, ref string) ([]byte, error) {
	for _, p := range codeownersPaths {
		data, err := c.RawFile(ctx, projectID, p, ref)
		if err == nil {
			return data, nil
		}
		if !IsNotFound(err) {
			return nil, err
		}
	}
	return nil, nil
}
