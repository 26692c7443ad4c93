// Package ingest decodes bulk invoice uploads.  CSV and JSON documents are
// both reduced to a slice of Row values; validating a row against the store
// is left to the caller.
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Row is one invoice line of a bulk upload.  Amount is NaN when the source
// omitted it or held something that is not a number.
type Row struct {
	AccountNumber string  `json:"account_number"`
	FirstName     string  `json:"first_name"`
	LastName      string  `json:"last_name"`
	Email         string  `json:"email"`
	InvoiceNumber string  `json:"invoice_number"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	DueOn         string  `json:"due_on"`
	Description   string  `json:"description"`
	Status        string  `json:"status"`
}

// HasUserData reports whether r carries enough to provision its owner.
func (r Row) HasUserData() bool {
	return r.FirstName != "" && r.LastName != "" && r.Email != ""
}

// UnmarshalJSON accepts numbers or strings for every field so exported
// spreadsheets (numeric account numbers, quoted amounts) decode unchanged.
func (r *Row) UnmarshalJSON(b []byte) error {
	var aux struct {
		AccountNumber flexString `json:"account_number"`
		FirstName     flexString `json:"first_name"`
		LastName      flexString `json:"last_name"`
		Email         flexString `json:"email"`
		InvoiceNumber flexString `json:"invoice_number"`
		Amount        flexString `json:"amount"`
		Currency      flexString `json:"currency"`
		DueOn         flexString `json:"due_on"`
		Description   flexString `json:"description"`
		Status        flexString `json:"status"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*r = Row{
		AccountNumber: string(aux.AccountNumber),
		FirstName:     string(aux.FirstName),
		LastName:      string(aux.LastName),
		Email:         string(aux.Email),
		InvoiceNumber: string(aux.InvoiceNumber),
		Amount:        parseAmount(string(aux.Amount)),
		Currency:      string(aux.Currency),
		DueOn:         string(aux.DueOn),
		Description:   string(aux.Description),
		Status:        string(aux.Status),
	}
	return nil
}

// flexString decodes a JSON string, number or boolean as trimmed text and
// null as "".
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*s = ""
	case len(b) > 0 && b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(strings.TrimSpace(v))
	case len(b) > 0 && (b[0] == '{' || b[0] == '['):
		return fmt.Errorf("expected a scalar, got %s", b)
	default:
		*s = flexString(b)
	}
	return nil
}

func parseAmount(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return n
}
