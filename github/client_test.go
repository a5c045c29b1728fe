package github

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"taskboard-api/board"
)

func TestFetchCommits(t *testing.T) {
	var gotPath, gotAccept, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"sha":"aaa111","commit":{"message":"fix login, closes TASK-a1b2c3d4e"}},
			{"sha":"bbb222","commit":{"message":"chore: tidy"}}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-token")
	commits, err := c.FetchCommits(context.Background(), "alice/launch")
	if err != nil {
		t.Fatalf("FetchCommits: %v", err)
	}
	if gotPath != "/repos/alice/launch/commits" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAccept != "application/vnd.github.v3+json" {
		t.Errorf("accept = %q", gotAccept)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if len(commits) != 2 {
		t.Fatalf("commits = %+v, want two", commits)
	}
	if commits[0].SHA != "aaa111" || commits[0].Message != "fix login, closes TASK-a1b2c3d4e" {
		t.Errorf("first commit = %+v", commits[0])
	}
}

func TestFetchCommitsNoTokenOmitsAuthorization(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if _, err := c.FetchCommits(context.Background(), "alice/launch"); err != nil {
		t.Fatalf("FetchCommits: %v", err)
	}
	if gotAuth != "" {
		t.Errorf("authorization = %q, want none", gotAuth)
	}
}

func TestFetchCommitsBadReference(t *testing.T) {
	c := NewClient("http://localhost:0", "")
	for _, ref := range []string{"", "no-slash", "/repo", "owner/"} {
		if _, err := c.FetchCommits(context.Background(), ref); !errors.Is(err, board.ErrInvalidInput) {
			t.Errorf("ref %q: err = %v, want ErrInvalidInput", ref, err)
		}
	}
}

func TestFetchCommitsUpstreamErrors(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"not found", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
		}},
		{"rate limited", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"message":"API rate limit exceeded"}`, http.StatusForbidden)
		}},
		{"malformed body", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"not":"an array"`))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			c := NewClient(srv.URL, "")
			if _, err := c.FetchCommits(context.Background(), "alice/launch"); !errors.Is(err, board.ErrUpstreamUnavailable) {
				t.Errorf("err = %v, want ErrUpstreamUnavailable", err)
			}
		})
	}
}

func TestFetchCommitsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	srv.Close()

	c := NewClient(srv.URL, "")
	if _, err := c.FetchCommits(context.Background(), "alice/launch"); !errors.Is(err, board.ErrUpstreamUnavailable) {
		t.Errorf("err = %v, want ErrUpstreamUnavailable", err)
	}
}
