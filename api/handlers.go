package api

import (
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	localauth "taskboard-api/auth"
	"taskboard-api/board"
)

const requestBodyMaxSize = 1 << 20

// Register wires up all API routes on the provided Echo instance. The
// account routes are mounted only when a token issuer is configured (local
// auth mode); with an external identity provider they have no meaning here.
func Register(e *echo.Echo, engine Engine, auth Authenticator, accounts Accounts, issuer *localauth.TokenIssuer, logger *log.Logger) {
	if issuer != nil {
		e.POST("/api/auth/register", registerUser(accounts, issuer, logger))
		e.POST("/api/auth/login", loginUser(accounts, issuer, logger))
	}

	e.GET("/api/boards", listBoards(engine, auth, logger))
	e.POST("/api/boards", createBoard(engine, auth, logger))
	e.GET("/api/boards/:boardId", getBoard(engine, auth, logger))
	e.PUT("/api/boards/:boardId", updateBoard(engine, auth, logger))
	e.DELETE("/api/boards/:boardId", deleteBoard(engine, auth, logger))
	e.POST("/api/boards/:boardId/invite", inviteMember(engine, auth, logger))

	e.POST("/api/boards/:boardId/lists", createList(engine, auth, logger))
	e.DELETE("/api/boards/:boardId/lists/:listId", deleteList(engine, auth, logger))
	e.POST("/api/boards/:boardId/lists/:listId/tasks", createTask(engine, auth, logger))
	e.PUT("/api/boards/:boardId/lists/:listId/tasks/:taskId", updateTask(engine, auth, logger))
	e.DELETE("/api/boards/:boardId/lists/:listId/tasks/:taskId", deleteTask(engine, auth, logger))
	e.POST("/api/boards/:boardId/lists/:listId/tasks/:taskId/assign", assignMember(engine, auth, logger))
	e.POST("/api/boards/:boardId/lists/:listId/tasks/:taskId/comment", addComment(engine, auth, logger))
	e.PUT("/api/tasks/:taskId/move", moveTask(engine, auth, logger))

	e.POST("/api/github/check-commits/:boardId", checkCommits(engine, auth, logger))

	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

// principalID authenticates the request, replying 401 itself on failure.
// The boolean reports whether the handler may proceed.
func principalID(c echo.Context, auth Authenticator) (string, bool, error) {
	userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return "", false, c.JSON(http.StatusUnauthorized, errorResponse{Msg: "authorization denied"})
	}
	return userID, true, nil
}

func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	return dec.Decode(v)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Msg: msg})
}

type boardRequest struct {
	Title      *string `json:"title"`
	GitHubRepo *string `json:"githubRepo"`
	Background *string `json:"background"`
}

func createBoard(engine Engine, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok, err := principalID(c, auth)
		if !ok {
			return err
		}
		var req boardRequest
		if err := decodeBody(c, &req); err != nil {
			return badRequest(c, "invalid body")
		}
		in := board.BoardCreate{}
		if req.Title != nil {
			in.Title = *req.Title
		}
		if req.GitHubRepo != nil {
			in.GitHubRepo = *req.GitHubRepo
		}
		if req.Background != nil {
			in.Background = *req.Background
		}
		view, err := engine.CreateBoard(c.Request().Context(), userID, in)
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(http.StatusOK, view)
	}
}

func getBoard(engine Engine, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newRequestMetrics(ctx, logger, "/api/boards/:boardId")
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, ok, authReply := principalID(c, auth)
		metrics.ObserveAuth(time.Since(authStart))
		if !ok {
			metrics.SetErrorStage("auth")
			err = authReply
			return err
		}

		engineStart := time.Now()
		view, engineErr := engine.GetBoard(ctx, userID, c.Param("boardId"))
		metrics.ObserveEngine(time.Since(engineStart))
		if engineErr != nil {
			metrics.SetErrorStage("engine")
			err = respondError(c, logger, engineErr)
			return err
		}

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, view)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func listBoards(engine Engine, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok, err := principalID(c, auth)
		if !ok {
			return err
		}
		views, err := engine.ListBoards(c.Request().Context(), userID)
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(http.StatusOK, views)
	}
}

func updateBoard(engine Engine, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok, err := principalID(c, auth)
		if !ok {
			return err
		}
		var req boardRequest
		if err := decodeBody(c, &req); err != nil {
			return badRequest(c, "invalid body")
		}
		view, err := engine.UpdateBoard(c.Request().Context(), userID, c.Param("boardId"), board.BoardUpdate{
			Title:      req.Title,
			GitHubRepo: req.GitHubRepo,
			Background: req.Background,
		})
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(http.StatusOK, view)
	}
}

func deleteBoard(engine Engine, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok, err := principalID(c, auth)
		if !ok {
			return err
		}
		if err := engine.DeleteBoard(c.Request().Context(), userID, c.Param("boardId")); err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(http.StatusOK, map[string]string{"msg": "board deleted"})
	}
}

func inviteMember(engine Engine, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok, err := principalID(c, auth)
		if !ok {
			return err
		}
		var req struct {
			Email string `json:"email"`
		}
		if err := decodeBody(c, &req); err != nil {
			return badRequest(c, "invalid body")
		}
		view, err := engine.InviteMember(c.Request().Context(), userID, c.Param("boardId"), req.Email)
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(http.StatusOK, view)
	}
}
