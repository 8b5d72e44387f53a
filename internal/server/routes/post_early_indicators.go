package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/ripple/pkg/ripple"

	"github.com/labstack/echo/v4"
)

func PostEarlyIndicatorsHandler(c echo.Context) error {
	type postEarlyIndicatorsParams struct {
		PredictedImpact    string   `json:"predicted_impact" validate:"required"`
		AffectedIndustries []string `json:"affected_industries"`
		Timeframe          [2]int   `json:"estimated_timeframe_days"`
	}
	params := new(postEarlyIndicatorsParams)
	if !bind(c, params) {
		return badRequest(c)
	}

	pred := ripple.Prediction{
		PredictedImpact:        params.PredictedImpact,
		AffectedIndustries:     params.AffectedIndustries,
		EstimatedTimeframeDays: ripple.Timeframe(params.Timeframe),
	}
	if pred.AffectedIndustries == nil {
		pred.AffectedIndustries = []string{}
	}
	return c.JSON(http.StatusOK, app(c).EarlyIndicators(c.Request().Context(), pred))
}
