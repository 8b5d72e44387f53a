package server

import (
	"github.com/OFFIS-RIT/ripple/internal/server/middleware"
	"github.com/OFFIS-RIT/ripple/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	api := e.Group("", middleware.AuthMiddleware, middleware.RequirePermission(middleware.PermRead))

	api.GET("/stats", routes.GetStatsHandler)
	api.GET("/feedback-loops", routes.GetFeedbackLoopsHandler)

	// Article routes
	api.GET("/articles/:id/relationships", routes.GetRelationshipsHandler)
	api.GET("/articles/:id/ripple", routes.GetRippleHandler)
	api.GET("/articles/:id/root-causes", routes.GetRootCausesHandler)
	api.GET("/articles/:id/impact-web", routes.GetImpactWebHandler)
	api.GET("/articles/:id/predictions", routes.GetPredictionsHandler)
	api.GET("/articles/:id/industries", routes.GetIndustriesHandler)
	api.GET("/articles/:id/similar-patterns", routes.GetSimilarPatternsHandler)
	api.POST("/articles", routes.IngestArticleHandler, middleware.RequirePermission(middleware.PermIngest))

	// Analysis routes
	api.POST("/chains", routes.PostChainsHandler)
	api.POST("/paths", routes.PostPathsHandler)
	api.POST("/relationship-chains", routes.PostRelationshipChainsHandler)
	api.POST("/classify", routes.PostClassifyHandler)
	api.POST("/timeline", routes.PostTimelineHandler)
	api.GET("/predictions", routes.GetQueryPredictionsHandler)
	api.POST("/early-indicators", routes.PostEarlyIndicatorsHandler)
}
