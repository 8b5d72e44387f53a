package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func PostPathsHandler(c echo.Context) error {
	type postPathsParams struct {
		From      string `json:"from" validate:"required"`
		To        string `json:"to" validate:"required"`
		MaxLength int    `json:"max_length" validate:"gte=0,lte=10"`
	}
	params := new(postPathsParams)
	if !bind(c, params) {
		return badRequest(c)
	}
	return c.JSON(http.StatusOK, app(c).QueryImpactPath(params.From, params.To, params.MaxLength))
}
