package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/ripple/pkg/common"

	"github.com/labstack/echo/v4"
)

func GetRippleHandler(c echo.Context) error {
	type getRippleParams struct {
		ID      string `param:"id" validate:"required"`
		MaxHops int    `query:"max_hops" validate:"gte=0,lte=10"`
	}
	params := new(getRippleParams)
	if !bind(c, params) {
		return badRequest(c)
	}

	report, err := app(c).TrackRippleEffects(c.Request().Context(), common.ArticleID(params.ID), params.MaxHops)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, report)
}
