package middleware

// identity.go holds the request-scoped caller identity set by JWTAuth and
// read by handlers and the other middleware.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/invoice-billing/internal/model"
)

const viewerKey = "viewer"

// SetViewer stores the authenticated caller on c.
func SetViewer(c echo.Context, v model.Viewer) {
	c.Set(viewerKey, v)
}

// ViewerFrom returns the authenticated caller, if any.
func ViewerFrom(c echo.Context) (model.Viewer, bool) {
	v, ok := c.Get(viewerKey).(model.Viewer)
	return v, ok && v.ID != ""
}

// userID returns the caller id for keying, or "anon" when unauthenticated.
func userID(c echo.Context) string {
	if v, ok := ViewerFrom(c); ok {
		return v.ID
	}
	return "anon"
}
