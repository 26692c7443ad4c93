package ingest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/iliyamo/invoice-billing/internal/apperr"
)

// Format is a supported upload encoding.
type Format int

const (
	FormatCSV Format = iota + 1
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	}
	return "unknown"
}

// DetectFormat picks the decoder for an upload from its declared content
// type, falling back to the file extension.
func DetectFormat(filename, contentType string) (Format, error) {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mt {
		case "text/csv":
			return FormatCSV, nil
		case "application/json":
			return FormatJSON, nil
		}
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	}
	return 0, apperr.Validation("unsupported file format, please upload a CSV or JSON file")
}

// Decode reads every row of an upload in the given format.
func Decode(r io.Reader, f Format) ([]Row, error) {
	switch f {
	case FormatCSV:
		return ParseCSV(r)
	case FormatJSON:
		return ParseJSON(r)
	}
	return nil, apperr.Validation("unsupported file format, please upload a CSV or JSON file")
}

// headerAliases maps normalised header names to Row fields.
var headerAliases = map[string]string{
	"account_number": "account_number",
	"accountnumber":  "account_number",
	"account_no":     "account_number",
	"account":        "account_number",
	"first_name":     "first_name",
	"firstname":      "first_name",
	"last_name":      "last_name",
	"lastname":       "last_name",
	"email":          "email",
	"email_address":  "email",
	"invoice_number": "invoice_number",
	"invoicenumber":  "invoice_number",
	"invoice_no":     "invoice_number",
	"amount":         "amount",
	"currency":       "currency",
	"due_on":         "due_on",
	"dueon":          "due_on",
	"due_date":       "due_on",
	"description":    "description",
	"status":         "status",
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(h)
}

// ParseCSV decodes a CSV document whose first record is a header.  Header
// names are matched case-insensitively; unknown columns are ignored and
// blank records skipped.
func ParseCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []Row{}, nil
	}
	if err != nil {
		return nil, apperr.Validation("invalid CSV header: %v", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		if field, ok := headerAliases[normalizeHeader(h)]; ok {
			if _, dup := cols[field]; !dup {
				cols[field] = i
			}
		}
	}

	rows := []Row{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperr.Validation("invalid CSV: %v", err)
		}
		if blank(rec) {
			continue
		}
		get := func(field string) string {
			i, ok := cols[field]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		rows = append(rows, Row{
			AccountNumber: get("account_number"),
			FirstName:     get("first_name"),
			LastName:      get("last_name"),
			Email:         get("email"),
			InvoiceNumber: get("invoice_number"),
			Amount:        parseAmount(get("amount")),
			Currency:      get("currency"),
			DueOn:         get("due_on"),
			Description:   get("description"),
			Status:        get("status"),
		})
	}
	return rows, nil
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// ParseJSON decodes either a bare array of rows or an object whose
// "invoices" member holds the array.
func ParseJSON(r io.Reader) ([]Row, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	raw = bytes.TrimSpace(bytes.TrimPrefix(raw, []byte("\ufeff")))
	if len(raw) == 0 {
		return nil, apperr.Validation("empty JSON document")
	}

	var rows []Row
	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, apperr.Validation("invalid JSON: %v", err)
		}
	case '{':
		var doc struct {
			Invoices *[]Row `json:"invoices"`
		}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, apperr.Validation("invalid JSON: %v", err)
		}
		if doc.Invoices == nil {
			return nil, apperr.Validation("JSON object must contain an \"invoices\" array")
		}
		rows = *doc.Invoices
	default:
		return nil, apperr.Validation("JSON upload must be an array of invoices")
	}
	if rows == nil {
		rows = []Row{}
	}
	return rows, nil
}
