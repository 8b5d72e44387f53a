package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/ripple/pkg/common"

	"github.com/labstack/echo/v4"
)

func PostRelationshipChainsHandler(c echo.Context) error {
	type postRelationshipChainsParams struct {
		StartID  string `json:"start_id" validate:"required"`
		EndID    string `json:"end_id" validate:"required"`
		MaxDepth int    `json:"max_depth" validate:"gte=0,lte=6"`
	}
	params := new(postRelationshipChainsParams)
	if !bind(c, params) {
		return badRequest(c)
	}

	paths, err := app(c).RelationshipChains(
		c.Request().Context(),
		common.ArticleID(params.StartID),
		common.ArticleID(params.EndID),
		params.MaxDepth,
	)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, paths)
}
