package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func PostChainsHandler(c echo.Context) error {
	type postChainsParams struct {
		Query    string `json:"query" validate:"required"`
		MaxDepth int    `json:"max_depth" validate:"gte=0,lte=10"`
	}
	params := new(postChainsParams)
	if !bind(c, params) {
		return badRequest(c)
	}

	chains, err := app(c).BuildCausationChain(c.Request().Context(), params.Query, params.MaxDepth)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, chains)
}
