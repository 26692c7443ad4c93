// Package service implements the application operations behind the HTTP
// handlers: sessions, user administration, invoice access and bulk import.
// Services receive an injected repository.Store and report failures as
// apperr kinds.
package service

import (
	"net/mail"
	"strings"

	"github.com/iliyamo/invoice-billing/internal/apperr"
)

const minPasswordLen = 6

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func checkPassword(p string) error {
	if len(p) < minPasswordLen {
		return apperr.Validation("password must be at least %d characters", minPasswordLen)
	}
	return nil
}

// checkName enforces the two-character minimum on person names.
func checkName(field, v string) error {
	if len([]rune(strings.TrimSpace(v))) < 2 {
		return apperr.Validation("%s must be at least 2 characters", field)
	}
	return nil
}

func normalizeCurrency(s string) (string, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", apperr.Validation("currency is required")
	}
	if len(s) > 8 {
		return "", apperr.Validation("currency %q is too long", s)
	}
	return s, nil
}
