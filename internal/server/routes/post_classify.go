package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/ripple/pkg/common"

	"github.com/labstack/echo/v4"
)

func PostClassifyHandler(c echo.Context) error {
	type postClassifyParams struct {
		SourceID string `json:"source_id" validate:"required"`
		TargetID string `json:"target_id" validate:"required"`
	}
	params := new(postClassifyParams)
	if !bind(c, params) {
		return badRequest(c)
	}

	res, err := app(c).ClassifyPair(c.Request().Context(), common.ArticleID(params.SourceID), common.ArticleID(params.TargetID))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
