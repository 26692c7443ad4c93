package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iliyamo/invoice-billing/internal/apperr"
	"github.com/iliyamo/invoice-billing/internal/model"
)

// UserRepo persists users.
type UserRepo struct{ db *gorm.DB }

var userSearch = textSearch{
	Columns:   []string{"users.first_name", "users.last_name", "users.email", "users.account_number"},
	FirstName: "users.first_name",
	LastName:  "users.last_name",
}

// Create inserts u, assigning an ID when empty.  Email is normalised to
// lower case.  A unique violation on email or account number yields
// apperr.ErrConflict.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = normalizeEmail(u.Email)
	u.AccountNumber = strings.TrimSpace(u.AccountNumber)
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		if isDuplicate(err) {
			return apperr.Conflict("user with this email or account number already exists")
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.first(ctx, "id = ?", id)
}

// GetByEmail fetches a user by normalised email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.first(ctx, "email = ?", normalizeEmail(email))
}

// GetByAccountNumber fetches a user by account number.
func (r *UserRepo) GetByAccountNumber(ctx context.Context, accountNumber string) (*model.User, error) {
	return r.first(ctx, "account_number = ?", strings.TrimSpace(accountNumber))
}

func (r *UserRepo) first(ctx context.Context, cond string, arg any) (*model.User, error) {
	var u model.User
	err := r.db.WithContext(ctx).Where(cond, arg).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("user")
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

// ExistsWithEmailOrAccount reports whether another user (not excludeID)
// already holds email or accountNumber.  Empty arguments are ignored.
func (r *UserRepo) ExistsWithEmailOrAccount(ctx context.Context, email, accountNumber, excludeID string) (bool, error) {
	q := r.db.WithContext(ctx).Model(&model.User{})
	email, accountNumber = normalizeEmail(email), strings.TrimSpace(accountNumber)
	switch {
	case email != "" && accountNumber != "":
		q = q.Where("email = ? OR account_number = ?", email, accountNumber)
	case email != "":
		q = q.Where("email = ?", email)
	case accountNumber != "":
		q = q.Where("account_number = ?", accountNumber)
	default:
		return false, nil
	}
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return n > 0, nil
}

// Update writes the given columns of user id.
func (r *UserRepo) Update(ctx context.Context, id string, fields map[string]any) error {
	if email, ok := fields["email"].(string); ok {
		fields["email"] = normalizeEmail(email)
	}
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		if isDuplicate(res.Error) {
			return apperr.Conflict("user with this email or account number already exists")
		}
		return fmt.Errorf("update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user")
	}
	return nil
}

// Delete removes user id.  The store refuses when invoices still reference
// the user; that surfaces as apperr.ErrConflict.
func (r *UserRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.User{})
	if res.Error != nil {
		if isForeignKey(res.Error) {
			return apperr.Conflict("cannot delete user with existing invoices")
		}
		return fmt.Errorf("delete user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user")
	}
	return nil
}

// UserQuery defines filters & pagination for listing users.
type UserQuery struct {
	Search string
	Role   *model.Role
	Offset int
	Limit  int
}

// Search returns one page of users matching q, newest first, with the total
// number of matches.
func (r *UserRepo) Search(ctx context.Context, q UserQuery) ([]model.User, int64, error) {
	base := r.db.WithContext(ctx).Model(&model.User{})
	if q.Role != nil {
		base = base.Where("users.role = ?", *q.Role)
	}
	if cond, args := userSearch.clause(q.Search); cond != "" {
		base = base.Where(cond, args...)
	}
	base = base.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	out := make([]model.User, 0, q.Limit)
	err := base.Order("users.created_at DESC").Order("users.id DESC").
		Limit(q.Limit).Offset(q.Offset).Find(&out).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return out, total, nil
}

// UserStats aggregates account counts.
type UserStats struct {
	TotalUsers           int64 `json:"total_users"`
	AdminUsers           int64 `json:"admin_users"`
	CustomerUsers        int64 `json:"customer_users"`
	UsersWithInvoices    int64 `json:"users_with_invoices"`
	UsersWithoutPassword int64 `json:"users_without_password"`
}

// Stats counts users by role, invoice ownership and activation state.
func (r *UserRepo) Stats(ctx context.Context) (UserStats, error) {
	db := r.db.WithContext(ctx)
	var s UserStats
	counts := []struct {
		dst   *int64
		query *gorm.DB
	}{
		{&s.TotalUsers, db.Model(&model.User{})},
		{&s.AdminUsers, db.Model(&model.User{}).Where("role = ?", model.RoleAdmin)},
		{&s.CustomerUsers, db.Model(&model.User{}).Where("role = ?", model.RoleCustomer)},
		{&s.UsersWithInvoices, db.Model(&model.User{}).Where("EXISTS (SELECT 1 FROM invoices WHERE invoices.user_id = users.id)")},
		{&s.UsersWithoutPassword, db.Model(&model.User{}).Where("password_hash IS NULL OR password_hash = ''")},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dst).Error; err != nil {
			return UserStats{}, fmt.Errorf("count users: %w", err)
		}
	}
	return s, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
