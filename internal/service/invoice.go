package service

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/invoice-billing/internal/apperr"
	"github.com/iliyamo/invoice-billing/internal/model"
	"github.com/iliyamo/invoice-billing/internal/pagination"
	"github.com/iliyamo/invoice-billing/internal/queue"
	"github.com/iliyamo/invoice-billing/internal/repository"
)

// recentInvoices is how many invoices Stats lists.
const recentInvoices = 5

// EventPublisher delivers bulk-import notifications.  *queue.Publisher
// satisfies it.
type EventPublisher interface {
	PublishBulkImported(ctx context.Context, ev queue.BulkImportedEvent) error
}

// InvoiceService implements invoice access, listing and bulk import.
type InvoiceService struct {
	store  *repository.Store
	events EventPublisher // nil disables events
	now    func() time.Time
}

func NewInvoiceService(store *repository.Store, events EventPublisher) *InvoiceService {
	return &InvoiceService{store: store, events: events, now: time.Now}
}

// CreateInvoiceInput is a single invoice to create.  InvoiceNumber and
// Status are optional.
type CreateInvoiceInput struct {
	UserID        string
	InvoiceNumber string
	Amount        float64
	Currency      string
	DueOn         string
	Description   string
	Status        string
}

// Create inserts one invoice for an existing user.
func (s *InvoiceService) Create(ctx context.Context, in CreateInvoiceInput) (model.InvoiceView, error) {
	inv, err := buildInvoice(in.Amount, in.Currency, in.DueOn, in.Description, in.Status)
	if err != nil {
		return model.InvoiceView{}, err
	}
	owner, err := s.store.Users().GetByID(ctx, strings.TrimSpace(in.UserID))
	if err != nil {
		return model.InvoiceView{}, err
	}
	inv.UserID = owner.ID
	inv.InvoiceNumber, err = resolveNumber(ctx, s.store.Invoices(), in.InvoiceNumber)
	if err != nil {
		return model.InvoiceView{}, err
	}
	if err := s.store.Invoices().Create(ctx, inv); err != nil {
		return model.InvoiceView{}, err
	}
	inv.User = owner
	return inv.View(), nil
}

// buildInvoice validates the owner-independent fields of a new invoice.
func buildInvoice(amount float64, currency, dueOn, description, status string) (*model.Invoice, error) {
	amt, err := validAmount(amount)
	if err != nil {
		return nil, err
	}
	cur, err := normalizeCurrency(currency)
	if err != nil {
		return nil, err
	}
	due, ok := model.ParseDate(dueOn)
	if !ok {
		return nil, apperr.Validation("invalid due_on date %q", dueOn)
	}
	st := model.StatusPending
	if strings.TrimSpace(status) != "" {
		if st, ok = model.ParseStatus(status); !ok {
			return nil, apperr.Validation("invalid invoice status %q", status)
		}
	}
	return &model.Invoice{
		Amount:      amt,
		Currency:    cur,
		DueOn:       due,
		Description: strings.TrimSpace(description),
		Status:      st,
	}, nil
}

// resolveNumber returns the requested number when it is free, or a freshly
// generated one when none was requested.
func resolveNumber(ctx context.Context, invoices *repository.InvoiceRepo, requested string) (string, error) {
	if n := strings.TrimSpace(requested); n != "" {
		taken, err := invoices.NumberExists(ctx, n, "")
		if err != nil {
			return "", err
		}
		if taken {
			return "", apperr.Conflict("invoice number %s already exists", n)
		}
		return n, nil
	}
	return generateNumber(ctx, invoices)
}

const numberAttempts = 5

// generateNumber builds INV-<base36 unix millis>-<3 random base36 chars>,
// retrying while the result is already taken.
func generateNumber(ctx context.Context, invoices *repository.InvoiceRepo) (string, error) {
	for i := 0; i < numberAttempts; i++ {
		n := strings.ToUpper("INV-" + strconv.FormatInt(time.Now().UnixMilli(), 36) + "-" + randomBase36(3))
		taken, err := invoices.NumberExists(ctx, n, "")
		if err != nil {
			return "", err
		}
		if !taken {
			return n, nil
		}
	}
	return "", apperr.Conflict("could not generate a unique invoice number")
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

func randomBase36(n int) string {
	b := make([]byte, n)
	radix := big.NewInt(int64(len(base36)))
	for i := range b {
		v, err := rand.Int(rand.Reader, radix)
		if err != nil {
			v = big.NewInt(time.Now().UnixNano() % int64(len(base36)))
		}
		b[i] = base36[v.Int64()]
	}
	return string(b)
}

// InvoiceFilter narrows an invoice listing.  UserID applies to admins only.
type InvoiceFilter struct {
	Search string
	Status *model.InvoiceStatus
	UserID string
}

// List returns one page of the invoices viewer may see and the total match
// count.
func (s *InvoiceService) List(ctx context.Context, viewer model.Viewer, f InvoiceFilter, p pagination.Params) ([]model.InvoiceView, int64, error) {
	invoices, total, err := s.store.Invoices().Search(ctx, repository.InvoiceQuery{
		Viewer: viewer,
		Search: f.Search,
		Status: f.Status,
		UserID: f.UserID,
		Offset: p.Offset(),
		Limit:  p.Limit,
	})
	if err != nil {
		return nil, 0, err
	}
	return model.Views(invoices), total, nil
}

// Get returns one invoice when viewer may see it.
func (s *InvoiceService) Get(ctx context.Context, viewer model.Viewer, id string) (model.InvoiceView, error) {
	inv, err := s.store.Invoices().GetByID(ctx, viewer, id)
	if err != nil {
		return model.InvoiceView{}, err
	}
	return inv.View(), nil
}

// UpdateInvoiceInput holds the fields to change; nil leaves a field as is.
type UpdateInvoiceInput struct {
	InvoiceNumber *string
	Amount        *float64
	Currency      *string
	DueOn         *string
	Description   *string
	Status        *string
}

// Update changes an invoice.  Only admins may update.
func (s *InvoiceService) Update(ctx context.Context, viewer model.Viewer, id string, in UpdateInvoiceInput) (model.InvoiceView, error) {
	if !viewer.IsAdmin() {
		return model.InvoiceView{}, apperr.Forbidden("only admin can update invoices")
	}
	invoices := s.store.Invoices()
	current, err := invoices.GetByID(ctx, viewer, id)
	if err != nil {
		return model.InvoiceView{}, err
	}

	fields := map[string]any{}
	if in.Status != nil {
		st, ok := model.ParseStatus(*in.Status)
		if !ok {
			return model.InvoiceView{}, apperr.Validation("invalid invoice status %q", *in.Status)
		}
		fields["status"] = st
	}
	if in.InvoiceNumber != nil {
		n := strings.TrimSpace(*in.InvoiceNumber)
		if n == "" {
			return model.InvoiceView{}, apperr.Validation("invoice number must not be empty")
		}
		if n != current.InvoiceNumber {
			taken, err := invoices.NumberExists(ctx, n, id)
			if err != nil {
				return model.InvoiceView{}, err
			}
			if taken {
				return model.InvoiceView{}, apperr.Conflict("invoice number %s already exists", n)
			}
			fields["invoice_number"] = n
		}
	}
	if in.Amount != nil {
		a, err := validAmount(*in.Amount)
		if err != nil {
			return model.InvoiceView{}, err
		}
		fields["amount"] = a
	}
	if in.Currency != nil {
		cur, err := normalizeCurrency(*in.Currency)
		if err != nil {
			return model.InvoiceView{}, err
		}
		fields["currency"] = cur
	}
	if in.DueOn != nil && strings.TrimSpace(*in.DueOn) != "" {
		due, ok := model.ParseDate(*in.DueOn)
		if !ok {
			return model.InvoiceView{}, apperr.Validation("invalid due_on date %q", *in.DueOn)
		}
		fields["due_on"] = due
	}
	if in.Description != nil {
		fields["description"] = strings.TrimSpace(*in.Description)
	}

	if len(fields) > 0 {
		if err := invoices.Update(ctx, id, fields); err != nil {
			return model.InvoiceView{}, err
		}
	}
	return s.Get(ctx, viewer, id)
}

// Delete removes an invoice.  A missing or out-of-scope invoice is reported
// before the role check.
func (s *InvoiceService) Delete(ctx context.Context, viewer model.Viewer, id string) error {
	if _, err := s.store.Invoices().GetByID(ctx, viewer, id); err != nil {
		return err
	}
	if !viewer.IsAdmin() {
		return apperr.Forbidden("only admin can delete invoices")
	}
	return s.store.Invoices().Delete(ctx, id)
}

// InvoiceStats summarises the invoices a viewer can see.
type InvoiceStats struct {
	TotalInvoices     int64               `json:"total_invoices"`
	PendingInvoices   int64               `json:"pending_invoices"`
	PaidInvoices      int64               `json:"paid_invoices"`
	CancelledInvoices int64               `json:"cancelled_invoices"`
	TotalAmount       float64             `json:"total_amount"`
	PendingAmount     float64             `json:"pending_amount"`
	PaidAmount        float64             `json:"paid_amount"`
	RecentInvoices    []model.InvoiceView `json:"recent_invoices"`
}

// Stats counts viewer-visible invoices per status and lists the newest.
func (s *InvoiceService) Stats(ctx context.Context, viewer model.Viewer) (InvoiceStats, error) {
	st, err := s.store.Invoices().Stats(ctx, viewer, recentInvoices)
	if err != nil {
		return InvoiceStats{}, err
	}
	out := InvoiceStats{
		TotalInvoices:  st.Total,
		TotalAmount:    round2(st.TotalAmount),
		RecentInvoices: model.Views(st.Recent),
	}
	for _, status := range model.Statuses {
		t := st.ByStatus[status]
		switch status {
		case model.StatusPending:
			out.PendingInvoices, out.PendingAmount = t.Count, round2(t.Amount)
		case model.StatusPaid:
			out.PaidInvoices, out.PaidAmount = t.Count, round2(t.Amount)
		case model.StatusCancelled:
			out.CancelledInvoices = t.Count
		}
	}
	return out, nil
}

// Overdue lists viewer-visible PENDING invoices due before today.
func (s *InvoiceService) Overdue(ctx context.Context, viewer model.Viewer) ([]model.InvoiceView, error) {
	invoices, err := s.store.Invoices().Overdue(ctx, viewer, s.now())
	if err != nil {
		return nil, err
	}
	return model.Views(invoices), nil
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }

// validAmount rounds to cents and requires the stored value to be positive.
func validAmount(f float64) (float64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || round2(f) <= 0 {
		return 0, apperr.Validation("amount must be a positive number")
	}
	return round2(f), nil
}
