package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	localauth "taskboard-api/auth"
	"taskboard-api/board"
	"taskboard-api/domain"
)

type stubAccounts struct {
	byEmail map[string]*domain.User
}

func newStubAccounts() *stubAccounts {
	return &stubAccounts{byEmail: make(map[string]*domain.User)}
}

func (s *stubAccounts) CreateUser(_ context.Context, u *domain.User) error {
	if _, ok := s.byEmail[u.Email]; ok {
		return fmt.Errorf("%w: email taken", board.ErrConflict)
	}
	s.byEmail[u.Email] = u
	return nil
}

func (s *stubAccounts) UserByEmail(_ context.Context, email string) (*domain.User, error) {
	u, ok := s.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("%w: no such user", board.ErrNotFound)
	}
	return u, nil
}

func newAccountServer(t *testing.T) (*echo.Echo, *stubAccounts, *Auth) {
	t.Helper()
	logger := log.New()
	logger.SetOutput(io.Discard)
	accounts := newStubAccounts()
	issuer := localauth.NewTokenIssuer(testSecret, "taskboard", time.Hour)
	auth := NewLocalAuth(testSecret, "taskboard")
	e := echo.New()
	Register(e, &mockEngine{}, auth, accounts, issuer, logger)
	return e, accounts, auth
}

func TestRegisterIssuesUsableToken(t *testing.T) {
	e, accounts, auth := newAccountServer(t)

	rec := doRequest(e, http.MethodPost, "/api/auth/register", "",
		`{"email":"Alice@Example.com","password":"correct horse"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp tokenResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	u, ok := accounts.byEmail["alice@example.com"]
	if !ok {
		t.Fatal("email not normalized to lowercase on registration")
	}
	if u.PasswordHash == "correct horse" {
		t.Fatal("password stored in plaintext")
	}

	sub, err := auth.UserIDFromAuthHeader("Bearer " + resp.Token)
	if err != nil {
		t.Fatalf("minted token rejected: %v", err)
	}
	if sub != u.ID {
		t.Errorf("token sub = %q, want %q", sub, u.ID)
	}
}

func TestRegisterValidation(t *testing.T) {
	e, _, _ := newAccountServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"bad email", `{"email":"not-an-email","password":"correct horse"}`},
		{"short password", `{"email":"alice@example.com","password":"short"}`},
		{"malformed body", `{"email":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(e, http.MethodPost, "/api/auth/register", "", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	e, _, _ := newAccountServer(t)
	body := `{"email":"alice@example.com","password":"correct horse"}`

	if rec := doRequest(e, http.MethodPost, "/api/auth/register", "", body); rec.Code != http.StatusOK {
		t.Fatalf("first register: status = %d", rec.Code)
	}
	rec := doRequest(e, http.MethodPost, "/api/auth/register", "", body)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("duplicate register: status = %d, want 400", rec.Code)
	}
}

func TestLogin(t *testing.T) {
	e, _, auth := newAccountServer(t)
	register := `{"email":"alice@example.com","password":"correct horse"}`
	if rec := doRequest(e, http.MethodPost, "/api/auth/register", "", register); rec.Code != http.StatusOK {
		t.Fatalf("register: status = %d", rec.Code)
	}

	rec := doRequest(e, http.MethodPost, "/api/auth/login", "", register)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp tokenResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, err := auth.UserIDFromAuthHeader("Bearer " + resp.Token); err != nil {
		t.Errorf("login token rejected: %v", err)
	}
}

func TestLoginDoesNotLeakWhichEmailsExist(t *testing.T) {
	e, _, _ := newAccountServer(t)
	if rec := doRequest(e, http.MethodPost, "/api/auth/register", "",
		`{"email":"alice@example.com","password":"correct horse"}`); rec.Code != http.StatusOK {
		t.Fatalf("register: status = %d", rec.Code)
	}

	wrongPassword := doRequest(e, http.MethodPost, "/api/auth/login", "",
		`{"email":"alice@example.com","password":"wrong password"}`)
	unknownEmail := doRequest(e, http.MethodPost, "/api/auth/login", "",
		`{"email":"ghost@example.com","password":"correct horse"}`)

	if wrongPassword.Code != http.StatusBadRequest || unknownEmail.Code != http.StatusBadRequest {
		t.Fatalf("statuses = %d / %d, want 400 for both", wrongPassword.Code, unknownEmail.Code)
	}
	if wrongPassword.Body.String() != unknownEmail.Body.String() {
		t.Errorf("responses differ: %q vs %q", wrongPassword.Body.String(), unknownEmail.Body.String())
	}
}
