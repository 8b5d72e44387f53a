package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/ripple/pkg/common"

	"github.com/labstack/echo/v4"
)

func GetImpactWebHandler(c echo.Context) error {
	type getImpactWebParams struct {
		ID    string `param:"id" validate:"required"`
		Depth int    `query:"depth" validate:"gte=0,lte=5"`
	}
	params := new(getImpactWebParams)
	if !bind(c, params) {
		return badRequest(c)
	}

	web, err := app(c).ImpactWeb(c.Request().Context(), common.ArticleID(params.ID), params.Depth)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, web)
}
