package routes

import (
	"net/http"
	"strings"

	"github.com/OFFIS-RIT/ripple/pkg/common"
	"github.com/OFFIS-RIT/ripple/pkg/store"

	"github.com/labstack/echo/v4"
)

// IngestArticleHandler adds one article and returns its discovered
// relationships.
func IngestArticleHandler(c echo.Context) error {
	art := new(common.Article)
	if err := c.Bind(art); err != nil {
		return badRequest(c)
	}
	art.ID = common.ArticleID(strings.TrimSpace(string(art.ID)))
	if art.ID == "" || strings.TrimSpace(art.Title) == "" {
		return jsonError(c, http.StatusBadRequest, "Article id and title are required")
	}
	if art.Timestamp.IsZero() {
		return jsonError(c, http.StatusBadRequest, "Article timestamp is required")
	}
	art.Content = store.PlainText(art.Content)

	res, err := app(c).Ingest(c.Request().Context(), *art)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}
