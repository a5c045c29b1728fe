// Package github looks up commit history through the GitHub REST API. It is
// the one external collaborator of commit reconciliation; every failure mode
// (transport, auth, rate limit, malformed payload) surfaces as upstream
// unavailability so the caller aborts without partial effects.
package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"taskboard-api/board"
	"taskboard-api/domain"
)

const (
	// DefaultBaseURL is the public GitHub API endpoint.
	DefaultBaseURL = "https://api.github.com"

	acceptHeader    = "application/vnd.github.v3+json"
	maxResponseSize = 4 << 20
)

// Client fetches commits for owner/repo references.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient creates a commit lookup client. An empty baseURL selects the
// public API; an empty token sends unauthenticated requests.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

type commitRecord struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
	} `json:"commit"`
}

// FetchCommits returns the repository's recent commits in API order.
func (c *Client) FetchCommits(ctx context.Context, repoRef string) ([]domain.Commit, error) {
	owner, repo, ok := strings.Cut(repoRef, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("%w: repository reference %q is not owner/repo", board.ErrInvalidInput, repoRef)
	}

	url := fmt.Sprintf("%s/repos/%s/%s/commits", c.baseURL, owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build commit request: %v", board.ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Accept", acceptHeader)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch commits for %s: %v", board.ErrUpstreamUnavailable, repoRef, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: github returned %d for %s", board.ErrUpstreamUnavailable, resp.StatusCode, repoRef)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read commit response: %v", board.ErrUpstreamUnavailable, err)
	}
	var records []commitRecord
	if err := sonic.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("%w: decode commit response: %v", board.ErrUpstreamUnavailable, err)
	}

	commits := make([]domain.Commit, 0, len(records))
	for _, r := range records {
		commits = append(commits, domain.Commit{SHA: r.SHA, Message: r.Commit.Message})
	}
	return commits, nil
}
