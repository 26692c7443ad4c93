package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/invoice-billing/internal/handler"
	"github.com/iliyamo/invoice-billing/internal/middleware"
	"github.com/iliyamo/invoice-billing/internal/model"
)

// RegisterInvoices registers the invoice endpoints under /invoices.  Every
// route requires a valid JWT.  Reads are open to both roles and scoped in
// the service; writes, bulk import and the template download need ADMIN.
// cache wraps the read-mostly stats and template routes.
func RegisterInvoices(api *echo.Group, h *handler.InvoiceHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	g := api.Group("/invoices", middleware.JWTAuth(jwtSecret))
	admin := middleware.RequireRole(model.RoleAdmin)

	g.GET("", h.List)
	g.GET("/stats", h.Stats, cache)
	g.GET("/overdue", h.Overdue)
	g.GET("/sample-csv", h.SampleCSV, admin, cache)
	g.GET("/:id", h.Get)

	g.POST("", h.Create, admin)
	g.POST("/bulk", h.Bulk, admin)
	g.PATCH("/:id", h.Update, admin)
	g.DELETE("/:id", h.Delete, admin)
}
