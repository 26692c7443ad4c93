package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/iliyamo/invoice-billing/internal/apperr"
	"github.com/iliyamo/invoice-billing/internal/ingest"
	"github.com/iliyamo/invoice-billing/internal/model"
	"github.com/iliyamo/invoice-billing/internal/queue"
	"github.com/iliyamo/invoice-billing/internal/repository"
)

// BulkResult is the outcome of a bulk import.  Errors holds one message per
// skipped row, in row order.
type BulkResult struct {
	Created      int              `json:"created"`
	UsersCreated int              `json:"users_created"`
	Skipped      int              `json:"skipped"`
	NewUsers     []model.UserView `json:"new_users"`
	Errors       []string         `json:"errors"`
}

// rowError is a skip reason reported verbatim.
type rowError string

func (e rowError) Error() string { return string(e) }

// ImportFile decodes the upload spooled at path and imports its rows.  The
// file is removed on every return path.  Only an unsupported or unreadable
// upload is an error; row failures are reported in the result.
func (s *InvoiceService) ImportFile(ctx context.Context, viewer model.Viewer, path, filename, contentType string) (BulkResult, error) {
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("remove upload", "path", path, "err", err)
		}
	}()

	format, err := ingest.DetectFormat(filename, contentType)
	if err != nil {
		return BulkResult{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return BulkResult{}, fmt.Errorf("open upload: %w", err)
	}
	rows, err := ingest.Decode(f, format)
	f.Close()
	if err != nil {
		return BulkResult{}, err
	}
	return s.BulkCreate(ctx, viewer, rows, format.String()), nil
}

// BulkCreate imports rows strictly in order, so a later row sees users
// provisioned by an earlier one.  A provisioned user is kept even when its
// invoice is then skipped.
func (s *InvoiceService) BulkCreate(ctx context.Context, viewer model.Viewer, rows []ingest.Row, source string) BulkResult {
	res := BulkResult{NewUsers: []model.UserView{}, Errors: []string{}}
	for _, row := range rows {
		res = s.foldRow(ctx, res, row)
	}
	s.publish(viewer, source, len(rows), res)
	return res
}

// foldRow applies one row to the accumulated result.
func (s *InvoiceService) foldRow(ctx context.Context, res BulkResult, row ingest.Row) BulkResult {
	newUser, err := s.importRow(ctx, row)
	if newUser != nil {
		res.UsersCreated++
		res.NewUsers = append(res.NewUsers, newUser.View())
	}
	if err != nil {
		res.Skipped++
		res.Errors = append(res.Errors, rowMessage(row, err))
		return res
	}
	res.Created++
	return res
}

func rowMessage(row ingest.Row, err error) string {
	var re rowError
	if errors.As(err, &re) {
		return re.Error()
	}
	msg := apperr.Message(err)
	if apperr.Status(err) == http.StatusInternalServerError {
		slog.Error("bulk row failed", "account_number", row.AccountNumber, "err", err)
		msg = "internal error"
	}
	return fmt.Sprintf("Failed to create invoice for account %s: %s", row.AccountNumber, msg)
}

// importRow creates the invoice for row, provisioning its owner when the
// account number is unknown.  The provisioned user, if any, is returned
// together with any later failure of the row.
func (s *InvoiceService) importRow(ctx context.Context, row ingest.Row) (*model.User, error) {
	account := strings.TrimSpace(row.AccountNumber)
	if account == "" {
		return nil, apperr.Validation("account number is required")
	}
	owner, provisioned, err := s.resolveOwner(ctx, account, row)
	if err != nil {
		return nil, err
	}

	err = s.store.Tx(ctx, func(tx *repository.Store) error {
		number := strings.TrimSpace(row.InvoiceNumber)
		if number == "" {
			generated, err := generateNumber(ctx, tx.Invoices())
			if err != nil {
				return err
			}
			number = generated
		} else {
			taken, err := tx.Invoices().NumberExists(ctx, number, "")
			if err != nil {
				return err
			}
			if taken {
				return rowError(fmt.Sprintf("Invoice number %s already exists", number))
			}
		}

		inv, err := buildInvoice(row.Amount, row.Currency, row.DueOn, row.Description, row.Status)
		if err != nil {
			return err
		}
		inv.UserID = owner.ID
		inv.InvoiceNumber = number
		if err := tx.Invoices().Create(ctx, inv); err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				return rowError(fmt.Sprintf("Invoice number %s already exists", number))
			}
			return err
		}
		return nil
	})
	return provisioned, err
}

// resolveOwner looks up the account and provisions a password-less customer
// when it is unknown and the row carries the user's details.  provisioned is
// set only when a user was created.
func (s *InvoiceService) resolveOwner(ctx context.Context, account string, row ingest.Row) (owner, provisioned *model.User, err error) {
	users := s.store.Users()
	owner, err = users.GetByAccountNumber(ctx, account)
	switch {
	case err == nil:
		return owner, nil, nil
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, nil, err
	case !row.HasUserData():
		return nil, nil, rowError(fmt.Sprintf("User with account number %s not found and insufficient data to create user", account))
	}
	owner, err = createUser(ctx, users, RegisterInput{
		Email:         row.Email,
		FirstName:     row.FirstName,
		LastName:      row.LastName,
		AccountNumber: account,
		Role:          model.RoleCustomer,
	}, 0)
	if err != nil {
		return nil, nil, err
	}
	return owner, owner, nil
}

func (s *InvoiceService) publish(viewer model.Viewer, source string, rows int, res BulkResult) {
	if s.events == nil {
		return
	}
	ev := queue.BulkImportedEvent{
		ImportedBy:   viewer.ID,
		Source:       source,
		Rows:         rows,
		Created:      res.Created,
		UsersCreated: res.UsersCreated,
		Skipped:      res.Skipped,
		Errors:       len(res.Errors),
		ImportedAt:   s.now().UTC().Format(time.RFC3339),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.events.PublishBulkImported(ctx, ev); err != nil {
			slog.Warn("bulk import event not published", "err", err)
		}
	}()
}
