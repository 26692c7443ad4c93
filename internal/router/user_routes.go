package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/invoice-billing/internal/handler"
	"github.com/iliyamo/invoice-billing/internal/middleware"
	"github.com/iliyamo/invoice-billing/internal/model"
)

// RegisterUsers registers account administration under /users.  All routes
// require a valid JWT and the ADMIN role.
func RegisterUsers(api *echo.Group, u *handler.UserHandler, jwtSecret string) {
	g := api.Group("/users",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.POST("", u.Create)
	g.GET("", u.List)
	g.GET("/stats", u.Stats)
	g.GET("/:id", u.Get)
	g.PATCH("/:id", u.Update)
	g.DELETE("/:id", u.Delete)
	g.PUT("/:id/password", u.SetPassword)
}
