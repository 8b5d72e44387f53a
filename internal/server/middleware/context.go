package middleware

import (
	"github.com/OFFIS-RIT/ripple/pkg/analyzer"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type AppUser struct {
	Subject     string
	Role        string
	Permissions []string
}

type App struct {
	Analyzer *analyzer.Analyzer
	// Key verifies bearer tokens. With no Key and no MasterAPIKey every
	// request is served as an anonymous admin.
	Key          jwt.Keyfunc
	MasterAPIKey string
}

func (a *App) AuthEnabled() bool {
	return a.Key != nil || a.MasterAPIKey != ""
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&AppContext{c, app, nil})
		}
	}
}
