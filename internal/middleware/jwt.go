package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/invoice-billing/internal/apperr"
	"github.com/iliyamo/invoice-billing/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// stores the caller it describes on the context (see ViewerFrom).  The
// secret must match the one used when issuing access tokens.  Failures are
// returned as apperr.ErrUnauthorized for the central error handler.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				return fmt.Errorf("%w: missing bearer token", apperr.ErrUnauthorized)
			}
			claims, err := utils.ParseAccess(secret, strings.TrimSpace(raw))
			if err != nil {
				return fmt.Errorf("%w: invalid or expired token", apperr.ErrUnauthorized)
			}
			SetViewer(c, claims.Viewer())
			return next(c)
		}
	}
}
