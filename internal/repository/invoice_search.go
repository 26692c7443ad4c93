package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/iliyamo/invoice-billing/internal/model"
)

// InvoiceQuery defines filters & pagination for searching invoices.
type InvoiceQuery struct {
	Viewer model.Viewer
	Search string
	Status *model.InvoiceStatus
	UserID string // honoured for admins only
	Offset int
	Limit  int
}

var invoiceSearch = textSearch{
	Columns: []string{
		"invoices.invoice_number",
		"invoices.description",
		"users.first_name",
		"users.last_name",
		"users.email",
		"users.account_number",
	},
	FirstName: "users.first_name",
	LastName:  "users.last_name",
	Amount:    "invoices.amount",
}

// Search returns one page of invoices visible to q.Viewer, newest first,
// together with the number of matches before paging.  Count and page share
// one predicate so the total does not depend on Offset or Limit.
func (r *InvoiceRepo) Search(ctx context.Context, q InvoiceQuery) ([]model.Invoice, int64, error) {
	base := r.visible(ctx, q.Viewer).Joins("JOIN users ON users.id = invoices.user_id")

	if q.Viewer.IsAdmin() && q.UserID != "" {
		base = base.Where("invoices.user_id = ?", q.UserID)
	}
	if q.Status != nil {
		base = base.Where("invoices.status = ?", *q.Status)
	}
	if cond, args := invoiceSearch.clause(q.Search); cond != "" {
		base = base.Where(cond, args...)
	}
	base = base.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}

	out := make([]model.Invoice, 0, q.Limit)
	err := base.Select("invoices.*").Preload("User").
		Order("invoices.created_at DESC").Order("invoices.id DESC").
		Limit(q.Limit).Offset(q.Offset).
		Find(&out).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	return out, total, nil
}

// visible starts an invoice query restricted to what viewer may see.
func (r *InvoiceRepo) visible(ctx context.Context, viewer model.Viewer) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.Invoice{})
	if !viewer.IsAdmin() {
		q = q.Where("invoices.user_id = ?", viewer.ID)
	}
	return q
}
