package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard-api/board"
	"taskboard-api/domain"
)

func createList(engine Engine, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok, err := principalID(c, auth)
		if !ok {
			return err
		}
		var req struct {
			Title string `json:"title"`
		}
		if err := decodeBody(c, &req); err != nil {
			return badRequest(c, "invalid body")
		}
		list, err := engine.CreateList(c.Request().Context(), userID, c.Param("boardId"), req.Title)
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(http.StatusOK, list)
	}
}

func deleteList(engine Engine, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok, err := principalID(c, auth)
		if !ok {
			return err
		}
		if err := engine.DeleteList(c.Request().Context(), userID, c.Param("boardId"), c.Param("listId")); err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(http.StatusOK, map[string]string{"msg": "list deleted"})
	}
}

// taskRequest covers create and update. Pointer fields distinguish "not
// supplied" from an explicit empty value; dueDate is RFC 3339, and an empty
// string on update clears it.
type taskRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	DueDate     *string   `json:"dueDate"`
	Priority    *string   `json:"priority"`
	Status      *string   `json:"status"`
	Assignees   *[]string `json:"assignees"`
}

func createTask(engine Engine, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok, err := principalID(c, auth)
		if !ok {
			return err
		}
		var req taskRequest
		if err := decodeBody(c, &req); err != nil {
			return badRequest(c, "invalid body")
		}
		in := board.TaskCreate{}
		if req.Title != nil {
			in.Title = *req.Title
		}
		if req.Description != nil {
			in.Description = *req.Description
		}
		if req.Priority != nil {
			in.Priority = domain.Priority(*req.Priority)
		}
		if req.Assignees != nil {
			in.Assignees = *req.Assignees
		}
		if req.DueDate != nil && *req.DueDate != "" {
			due, err := time.Parse(time.RFC3339, *req.DueDate)
			if err != nil {
				return badRequest(c, "invalid due date")
			}
			in.DueDate = &due
		}
		task, err := engine.CreateTask(c.Request().Context(), userID, c.Param("boardId"), c.Param("listId"), in)
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func updateTask(engine Engine, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok, err := principalID(c, auth)
		if !ok {
			return err
		}
		var req taskRequest
		if err := decodeBody(c, &req); err != nil {
			return badRequest(c, "invalid body")
		}
		in := board.TaskUpdate{
			Description: req.Description,
			Assignees:   req.Assignees,
		}
		if req.Title != nil {
			in.Title = *req.Title
		}
		if req.Priority != nil {
			p := domain.Priority(*req.Priority)
			in.Priority = &p
		}
		if req.Status != nil {
			s := domain.Status(*req.Status)
			in.Status = &s
		}
		if req.DueDate != nil {
			if *req.DueDate == "" {
				in.ClearDueDate = true
			} else {
				due, err := time.Parse(time.RFC3339, *req.DueDate)
				if err != nil {
					return badRequest(c, "invalid due date")
				}
				in.DueDate = &due
			}
		}
		task, err := engine.UpdateTask(c.Request().Context(), userID, c.Param("boardId"), c.Param("listId"), c.Param("taskId"), in)
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func deleteTask(engine Engine, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok, err := principalID(c, auth)
		if !ok {
			return err
		}
		if err := engine.DeleteTask(c.Request().Context(), userID, c.Param("boardId"), c.Param("listId"), c.Param("taskId")); err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(http.StatusOK, map[string]string{"msg": "task deleted"})
	}
}

func assignMember(engine Engine, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok, err := principalID(c, auth)
		if !ok {
			return err
		}
		var req struct {
			UserID string `json:"userId"`
		}
		if err := decodeBody(c, &req); err != nil {
			return badRequest(c, "invalid body")
		}
		task, err := engine.AssignMember(c.Request().Context(), userID, c.Param("boardId"), c.Param("listId"), c.Param("taskId"), req.UserID)
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func addComment(engine Engine, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok, err := principalID(c, auth)
		if !ok {
			return err
		}
		var req struct {
			Text string `json:"text"`
		}
		if err := decodeBody(c, &req); err != nil {
			return badRequest(c, "invalid body")
		}
		task, err := engine.AddComment(c.Request().Context(), userID, c.Param("boardId"), c.Param("listId"), c.Param("taskId"), req.Text)
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func moveTask(engine Engine, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newRequestMetrics(ctx, logger, "/api/tasks/:taskId/move")
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

		var req struct {
			NewListID string `json:"newListId"`
		}
		if err = decodeBody(c, &req); err != nil {
			metrics.SetErrorStage("decode_request")
			err = badRequest(c, "invalid body")
			return err
		}

		engineStart := time.Now()
		moveErr := engine.MoveTask(ctx, userID, c.Param("taskId"), req.NewListID)
		metrics.ObserveEngine(time.Since(engineStart))
		if moveErr != nil {
			metrics.SetErrorStage("engine")
			err = respondError(c, logger, moveErr)
			return err
		}
		err = c.JSON(http.StatusOK, map[string]string{"msg": "task moved"})
		return err
	}
}
