package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/ripple/pkg/common"

	"github.com/labstack/echo/v4"
)

func PostTimelineHandler(c echo.Context) error {
	type postTimelineParams struct {
		ArticleID    string `json:"article_id" validate:"required"`
		TargetImpact string `json:"target_impact" validate:"required"`
	}
	params := new(postTimelineParams)
	if !bind(c, params) {
		return badRequest(c)
	}

	est, err := app(c).EstimateTimeline(c.Request().Context(), common.ArticleID(params.ArticleID), params.TargetImpact)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, est)
}
