package model

import (
	"strings"
	"time"
)

// InvoiceStatus is the closed set of invoice states.
type InvoiceStatus string

const (
	StatusPending   InvoiceStatus = "PENDING"
	StatusPaid      InvoiceStatus = "PAID"
	StatusCancelled InvoiceStatus = "CANCELLED"
)

// Statuses lists every status in display order.
var Statuses = []InvoiceStatus{StatusPending, StatusPaid, StatusCancelled}

// ParseStatus matches s case-insensitively against the known statuses.
func ParseStatus(s string) (InvoiceStatus, bool) {
	switch InvoiceStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, true
	case StatusPaid:
		return StatusPaid, true
	case StatusCancelled:
		return StatusCancelled, true
	}
	return "", false
}

// Invoice records an amount owed by a user.  It corresponds to a row in the
// `invoices` table.
//
// Fields:
//  ID            – opaque UUID primary key.
//  UserID        – owning user.
//  InvoiceNumber – unique human-facing number.
//  Amount        – positive amount in Currency.
//  Currency      – ISO-style currency code, upper case.
//  DueOn         – calendar due date.
//  Description   – free text, empty when not supplied.
//  Status        – PENDING, PAID or CANCELLED.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Invoice struct {
	ID            string        `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID        string        `gorm:"type:varchar(36);index;not null" json:"user_id"`
	InvoiceNumber string        `gorm:"type:varchar(64);uniqueIndex;not null" json:"invoice_number"`
	Amount        float64       `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency      string        `gorm:"type:varchar(8);not null" json:"currency"`
	DueOn         time.Time     `gorm:"type:date;not null" json:"due_on"`
	Description   string        `gorm:"type:text;not null" json:"description"`
	Status        InvoiceStatus `gorm:"type:varchar(16);index;not null;default:PENDING" json:"status"`
	CreatedAt     time.Time     `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	User          *User         `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
}

// InvoiceOwner is the subset of the owning user embedded in invoice responses.
type InvoiceOwner struct {
	ID            string `json:"id"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	AccountNumber string `json:"account_number"`
}

// InvoiceView is the API representation of an invoice.
type InvoiceView struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	InvoiceNumber string        `json:"invoice_number"`
	Amount        float64       `json:"amount"`
	Currency      string        `json:"currency"`
	DueOn         string        `json:"due_on"`
	Description   string        `json:"description"`
	Status        InvoiceStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	User          *InvoiceOwner `json:"user,omitempty"`
}

// DateLayout is the wire format of due dates.
const DateLayout = "2006-01-02"

// View renders inv with its owner when the owner was loaded.
func (inv *Invoice) View() InvoiceView {
	v := InvoiceView{
		ID:            inv.ID,
		UserID:        inv.UserID,
		InvoiceNumber: inv.InvoiceNumber,
		Amount:        inv.Amount,
		Currency:      inv.Currency,
		DueOn:         inv.DueOn.Format(DateLayout),
		Description:   inv.Description,
		Status:        inv.Status,
		CreatedAt:     inv.CreatedAt,
	}
	if inv.User != nil {
		v.User = &InvoiceOwner{
			ID:            inv.User.ID,
			FirstName:     inv.User.FirstName,
			LastName:      inv.User.LastName,
			Email:         inv.User.Email,
			AccountNumber: inv.User.AccountNumber,
		}
	}
	return v
}

// Views renders a slice of invoices.
func Views(in []Invoice) []InvoiceView {
	out := make([]InvoiceView, 0, len(in))
	for i := range in {
		out = append(out, in[i].View())
	}
	return out
}

var dateLayouts = []string{DateLayout, time.RFC3339, "1/2/2006", "2006/01/02"}

// ParseDate accepts YYYY-MM-DD, RFC 3339 and M/D/YYYY.  The result is
// truncated to midnight UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}
