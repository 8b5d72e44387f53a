package routes

import (
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/ripple/internal/server/middleware"
	"github.com/OFFIS-RIT/ripple/pkg/analyzer"
	"github.com/OFFIS-RIT/ripple/pkg/common"
	"github.com/OFFIS-RIT/ripple/pkg/logger"

	"github.com/labstack/echo/v4"
)

func jsonError(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

func badRequest(c echo.Context) error {
	return jsonError(c, http.StatusBadRequest, "Invalid request params")
}

// fail maps err to a status: unknown articles are 404, duplicates 409, a
// graph still being built 503 and everything else 500.
func fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return jsonError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, common.ErrDuplicateArticle):
		return jsonError(c, http.StatusConflict, err.Error())
	case errors.Is(err, common.ErrGraphNotReady):
		return jsonError(c, http.StatusServiceUnavailable, err.Error())
	default:
		logger.Error("[Server] Request failed", "path", c.Path(), "err", err)
		return jsonError(c, http.StatusInternalServerError, "Internal server error")
	}
}

// bind decodes and validates the request into params.
func bind(c echo.Context, params any) bool {
	if err := c.Bind(params); err != nil {
		return false
	}
	return c.Validate(params) == nil
}

func app(c echo.Context) *analyzer.Analyzer {
	return c.(*middleware.AppContext).App.Analyzer
}
