package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

type checkCommitsResponse struct {
	MatchedCommits []domain.CommitMatch `json:"matchedCommits"`
}

func checkCommits(engine Engine, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newRequestMetrics(ctx, logger, "/api/github/check-commits/:boardId")
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
		matches, engineErr := engine.CheckCommits(ctx, userID, c.Param("boardId"))
		metrics.ObserveEngine(time.Since(engineStart))
		if engineErr != nil {
			metrics.SetErrorStage("engine")
			err = respondError(c, logger, engineErr)
			return err
		}
		err = c.JSON(http.StatusOK, checkCommitsResponse{MatchedCommits: matches})
		return err
	}
}
