package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/ripple/pkg/common"

	"github.com/labstack/echo/v4"
)

func GetIndustriesHandler(c echo.Context) error {
	a := app(c)
	event, err := a.Store().Get(common.ArticleID(c.Param("id")))
	if err != nil {
		return fail(c, err)
	}
	report, err := a.AffectedIndustries(c.Request().Context(), event)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, report)
}
