package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/ripple/pkg/common"

	"github.com/labstack/echo/v4"
)

func GetPredictionsHandler(c echo.Context) error {
	type getPredictionsParams struct {
		ID      string `param:"id" validate:"required"`
		Horizon int    `query:"horizon" validate:"gte=0,lte=3650"`
	}
	params := new(getPredictionsParams)
	if !bind(c, params) {
		return badRequest(c)
	}

	a := app(c)
	event, err := a.Store().Get(common.ArticleID(params.ID))
	if err != nil {
		return fail(c, err)
	}
	preds, err := a.PredictRippleEffects(c.Request().Context(), event, params.Horizon)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, preds)
}

// GetQueryPredictionsHandler predicts from the article best matching a
// free-text event description.
func GetQueryPredictionsHandler(c echo.Context) error {
	type getQueryPredictionsParams struct {
		Query   string `query:"query" validate:"required"`
		Horizon int    `query:"horizon" validate:"gte=0,lte=3650"`
	}
	params := new(getQueryPredictionsParams)
	if !bind(c, params) {
		return badRequest(c)
	}

	preds, err := app(c).PredictFromQuery(c.Request().Context(), params.Query, params.Horizon)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, preds)
}
