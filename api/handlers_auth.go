package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	localauth "taskboard-api/auth"
	"taskboard-api/board"
	"taskboard-api/domain"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func registerUser(accounts Accounts, issuer *localauth.TokenIssuer, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req credentialsRequest
		if err := decodeBody(c, &req); err != nil {
			return badRequest(c, "invalid body")
		}
		email, err := localauth.NormalizeEmail(req.Email)
		if err != nil {
			return badRequest(c, err.Error())
		}
		hash, err := localauth.HashPassword(req.Password)
		if err != nil {
			return badRequest(c, err.Error())
		}
		u := &domain.User{
			ID:           uuid.NewString(),
			Email:        email,
			PasswordHash: hash,
			CreatedAt:    time.Now().UTC(),
		}
		if err := accounts.CreateUser(c.Request().Context(), u); err != nil {
			if errors.Is(err, board.ErrConflict) {
				return c.JSON(http.StatusBadRequest, errorResponse{Msg: "user already exists"})
			}
			return respondError(c, logger, err)
		}
		token, err := issuer.Mint(u.ID)
		if err != nil {
			return respondError(c, logger, err)
		}
		logger.WithField("user", u.ID).Info("user registered")
		return c.JSON(http.StatusOK, tokenResponse{Token: token})
	}
}

func loginUser(accounts Accounts, issuer *localauth.TokenIssuer, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req credentialsRequest
		if err := decodeBody(c, &req); err != nil {
			return badRequest(c, "invalid body")
		}
		email, err := localauth.NormalizeEmail(req.Email)
		if err != nil {
			return badRequest(c, "invalid credentials")
		}
		u, err := accounts.UserByEmail(c.Request().Context(), email)
		if err != nil {
			if errors.Is(err, board.ErrNotFound) {
				// Same response as a bad password; do not leak which emails exist.
				return badRequest(c, "invalid credentials")
			}
			return respondError(c, logger, err)
		}
		if !localauth.VerifyPassword(u.PasswordHash, req.Password) {
			return badRequest(c, "invalid credentials")
		}
		token, err := issuer.Mint(u.ID)
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(http.StatusOK, tokenResponse{Token: token})
	}
}
