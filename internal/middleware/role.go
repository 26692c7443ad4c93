package middleware // middleware provides shared request processing for handlers

import (
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/invoice-billing/internal/apperr"
	"github.com/iliyamo/invoice-billing/internal/model"
)

// RequireRole returns a middleware that lets the request through only when
// the caller, as stored by JWTAuth, has one of roles.  It must run after
// JWTAuth.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			v, ok := ViewerFrom(c)
			if !ok {
				return fmt.Errorf("%w: authentication required", apperr.ErrUnauthorized)
			}
			if !allowed[v.Role] {
				return apperr.Forbidden("insufficient permissions")
			}
			return next(c)
		}
	}
}
