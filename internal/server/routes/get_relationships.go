package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/ripple/pkg/common"

	"github.com/labstack/echo/v4"
)

func GetRelationshipsHandler(c echo.Context) error {
	type getRelationshipsParams struct {
		ID  string `param:"id" validate:"required"`
		Max int    `query:"max" validate:"gte=0,lte=100"`
	}
	params := new(getRelationshipsParams)
	if !bind(c, params) {
		return badRequest(c)
	}

	rels, err := app(c).DiscoverRelationships(c.Request().Context(), common.ArticleID(params.ID), params.Max)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, rels)
}
