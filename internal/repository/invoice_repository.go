package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iliyamo/invoice-billing/internal/apperr"
	"github.com/iliyamo/invoice-billing/internal/model"
)

// InvoiceRepo manages persistence for invoices.  Read methods take the
// viewer so out-of-scope rows look exactly like missing ones.
type InvoiceRepo struct{ db *gorm.DB }

// Create inserts inv, assigning an ID and default status when empty.
func (r *InvoiceRepo) Create(ctx context.Context, inv *model.Invoice) error {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.Status == "" {
		inv.Status = model.StatusPending
	}
	if err := r.db.WithContext(ctx).Omit("User").Create(inv).Error; err != nil {
		if isDuplicate(err) {
			return apperr.Conflict("invoice number %s already exists", inv.InvoiceNumber)
		}
		if isForeignKey(err) {
			return apperr.NotFound("user")
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// GetByID returns the invoice with its owner when viewer may see it.
func (r *InvoiceRepo) GetByID(ctx context.Context, viewer model.Viewer, id string) (*model.Invoice, error) {
	var inv model.Invoice
	err := r.visible(ctx, viewer).Preload("User").Where("invoices.id = ?", id).Take(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("invoice")
	}
	if err != nil {
		return nil, fmt.Errorf("query invoice: %w", err)
	}
	return &inv, nil
}

// NumberExists reports whether an invoice other than excludeID carries number.
func (r *InvoiceRepo) NumberExists(ctx context.Context, number, excludeID string) (bool, error) {
	q := r.db.WithContext(ctx).Model(&model.Invoice{}).Where("invoice_number = ?", number)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, fmt.Errorf("count invoices: %w", err)
	}
	return n > 0, nil
}

// Update writes the given columns of invoice id.
func (r *InvoiceRepo) Update(ctx context.Context, id string, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&model.Invoice{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		if isDuplicate(res.Error) {
			return apperr.Conflict("invoice number already exists")
		}
		return fmt.Errorf("update invoice: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("invoice")
	}
	return nil
}

// Delete removes invoice id.
func (r *InvoiceRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Invoice{})
	if res.Error != nil {
		return fmt.Errorf("delete invoice: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("invoice")
	}
	return nil
}

// CountByUser returns how many invoices userID owns.
func (r *InvoiceRepo) CountByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Invoice{}).Where("user_id = ?", userID).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count invoices: %w", err)
	}
	return n, nil
}

// CountByUsers returns invoice counts keyed by user id.  Users without
// invoices are absent from the map.
func (r *InvoiceRepo) CountByUsers(ctx context.Context, userIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		UserID string
		N      int64
	}
	err := r.db.WithContext(ctx).Model(&model.Invoice{}).
		Select("user_id, COUNT(*) AS n").
		Where("user_id IN ?", userIDs).
		Group("user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count invoices per user: %w", err)
	}
	for _, row := range rows {
		out[row.UserID] = row.N
	}
	return out, nil
}

// StatusTotal is the number and summed amount of invoices in one status.
type StatusTotal struct {
	Count  int64   `json:"count"`
	Amount float64 `json:"amount"`
}

// InvoiceStats aggregates the invoices a viewer can see.
type InvoiceStats struct {
	Total       int64
	TotalAmount float64
	ByStatus    map[model.InvoiceStatus]StatusTotal
	Recent      []model.Invoice
}

// Stats counts visible invoices per status and loads the recentN newest.
func (r *InvoiceRepo) Stats(ctx context.Context, viewer model.Viewer, recentN int) (InvoiceStats, error) {
	var rows []struct {
		Status model.InvoiceStatus
		N      int64
		Amount float64
	}
	err := r.visible(ctx, viewer).
		Select("invoices.status AS status, COUNT(*) AS n, COALESCE(SUM(invoices.amount), 0) AS amount").
		Group("invoices.status").
		Scan(&rows).Error
	if err != nil {
		return InvoiceStats{}, fmt.Errorf("aggregate invoices: %w", err)
	}

	s := InvoiceStats{ByStatus: make(map[model.InvoiceStatus]StatusTotal, len(model.Statuses))}
	for _, st := range model.Statuses {
		s.ByStatus[st] = StatusTotal{}
	}
	for _, row := range rows {
		s.ByStatus[row.Status] = StatusTotal{Count: row.N, Amount: row.Amount}
		s.Total += row.N
		s.TotalAmount += row.Amount
	}

	err = r.visible(ctx, viewer).Preload("User").
		Order("invoices.created_at DESC").Order("invoices.id DESC").
		Limit(recentN).
		Find(&s.Recent).Error
	if err != nil {
		return InvoiceStats{}, fmt.Errorf("recent invoices: %w", err)
	}
	return s, nil
}

// Overdue returns visible PENDING invoices due before today, earliest first.
func (r *InvoiceRepo) Overdue(ctx context.Context, viewer model.Viewer, today time.Time) ([]model.Invoice, error) {
	y, m, d := today.UTC().Date()
	cutoff := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	out := []model.Invoice{}
	err := r.visible(ctx, viewer).Preload("User").
		Where("invoices.status = ?", model.StatusPending).
		Where("invoices.due_on < ?", cutoff).
		Order("invoices.due_on ASC").Order("invoices.id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("overdue invoices: %w", err)
	}
	return out, nil
}
