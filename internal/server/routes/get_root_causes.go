package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/ripple/pkg/common"

	"github.com/labstack/echo/v4"
)

func GetRootCausesHandler(c echo.Context) error {
	id := c.Param("id")
	roots, err := app(c).RootCauses(c.Request().Context(), common.ArticleID(id))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, roots)
}
