package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/ripple/pkg/common"

	"github.com/labstack/echo/v4"
)

func GetSimilarPatternsHandler(c echo.Context) error {
	matches, err := app(c).SimilarPatterns(common.ArticleID(c.Param("id")))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, matches)
}
