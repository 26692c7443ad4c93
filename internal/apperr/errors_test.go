package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/invoice-billing/internal/apperr"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperr.Validation("amount must be positive"), http.StatusBadRequest},
		{"unauthorized", apperr.ErrUnauthorized, http.StatusUnauthorized},
		{"forbidden", apperr.Forbidden("admins only"), http.StatusForbidden},
		{"not found", apperr.NotFound("invoice"), http.StatusNotFound},
		{"conflict wrapped twice", fmt.Errorf("create user: %w", apperr.Conflict("email taken")), http.StatusConflict},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apperr.Status(tt.err))
		})
	}
}

func TestMessagesKeepContext(t *testing.T) {
	err := apperr.NotFound("invoice")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Equal(t, "not found: invoice not found", err.Error())
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "invoice not found", apperr.Message(apperr.NotFound("invoice")))
	assert.Equal(t, "email taken", apperr.Message(fmt.Errorf("create user: %w", apperr.Conflict("email taken"))))
	assert.Equal(t, "unauthorized", apperr.Message(apperr.ErrUnauthorized))
	assert.Equal(t, "boom", apperr.Message(errors.New("boom")))
}
