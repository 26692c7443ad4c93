package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextSearchClause_Empty(t *testing.T) {
	s := textSearch{Columns: []string{"users.email"}}
	sql, args := s.clause("   ")
	assert.Empty(t, sql)
	assert.Nil(t, args)
}

func TestTextSearchClause_Branches(t *testing.T) {
	s := textSearch{
		Columns:   []string{"users.first_name", "users.last_name"},
		FirstName: "users.first_name",
		LastName:  "users.last_name",
		Amount:    "invoices.amount",
	}

	sql, args := s.clause(" Jane Doe ")
	assert.Equal(t, "(LOWER(users.first_name) LIKE ? ESCAPE '!' OR LOWER(users.last_name) LIKE ? ESCAPE '!'"+
		" OR (LOWER(users.first_name) LIKE ? ESCAPE '!' AND LOWER(users.last_name) LIKE ? ESCAPE '!')"+
		" OR (LOWER(users.first_name) LIKE ? ESCAPE '!' AND LOWER(users.last_name) LIKE ? ESCAPE '!'))", sql)
	assert.Equal(t, []any{"%jane doe%", "%jane doe%", "%jane%", "%doe%", "%doe%", "%jane%"}, args)

	sql, args = s.clause("99.5")
	assert.Contains(t, sql, "invoices.amount = ?")
	assert.Equal(t, 99.5, args[len(args)-1])
}

func TestTextSearchClause_NoAmountForNonNumeric(t *testing.T) {
	s := textSearch{Columns: []string{"invoices.invoice_number"}, Amount: "invoices.amount"}
	sql, _ := s.clause("INV-1")
	assert.NotContains(t, sql, "amount")

	sql, _ = s.clause("Inf")
	assert.NotContains(t, sql, "amount")
}

func TestLikePatternEscapesWildcards(t *testing.T) {
	assert.Equal(t, "%50!%!_off!!%", likePattern("50%_OFF!"))
}
