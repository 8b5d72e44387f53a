package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func GetStatsHandler(c echo.Context) error {
	stats, err := app(c).GraphStatistics()
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}
