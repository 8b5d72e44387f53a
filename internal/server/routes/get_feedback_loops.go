package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func GetFeedbackLoopsHandler(c echo.Context) error {
	loops, err := app(c).FeedbackLoops()
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, loops)
}
