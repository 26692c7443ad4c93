package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/iliyamo/invoice-billing/internal/apperr"
	"github.com/iliyamo/invoice-billing/internal/model"
	"github.com/iliyamo/invoice-billing/internal/pagination"
	"github.com/iliyamo/invoice-billing/internal/repository"
	"github.com/iliyamo/invoice-billing/internal/utils"
)

// UserService implements the administrative user operations.
type UserService struct {
	store      *repository.Store
	bcryptCost int
}

func NewUserService(store *repository.Store, bcryptCost int) *UserService {
	return &UserService{store: store, bcryptCost: bcryptCost}
}

// Create adds an account with any role.  Password is optional.
func (s *UserService) Create(ctx context.Context, in RegisterInput) (model.UserView, error) {
	u, err := createUser(ctx, s.store.Users(), in, s.bcryptCost)
	if err != nil {
		return model.UserView{}, err
	}
	v := u.View()
	var zero int64
	v.InvoiceCount = &zero
	return v, nil
}

// UserFilter narrows a user listing.  A nil Role lists every role.
type UserFilter struct {
	Search string
	Role   *model.Role
}

// List returns one page of users, newest first, each with its invoice count.
func (s *UserService) List(ctx context.Context, f UserFilter, p pagination.Params) ([]model.UserView, int64, error) {
	users, total, err := s.store.Users().Search(ctx, repository.UserQuery{
		Search: f.Search,
		Role:   f.Role,
		Offset: p.Offset(),
		Limit:  p.Limit,
	})
	if err != nil {
		return nil, 0, err
	}

	ids := make([]string, len(users))
	for i := range users {
		ids[i] = users[i].ID
	}
	counts, err := s.store.Invoices().CountByUsers(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	out := make([]model.UserView, len(users))
	for i := range users {
		out[i] = users[i].View()
		n := counts[users[i].ID]
		out[i].InvoiceCount = &n
	}
	return out, total, nil
}

// Get returns one user with its invoice count.
func (s *UserService) Get(ctx context.Context, id string) (model.UserView, error) {
	return userWithCount(ctx, s.store, id)
}

func userWithCount(ctx context.Context, store *repository.Store, id string) (model.UserView, error) {
	u, err := store.Users().GetByID(ctx, id)
	if err != nil {
		return model.UserView{}, err
	}
	n, err := store.Invoices().CountByUser(ctx, id)
	if err != nil {
		return model.UserView{}, err
	}
	v := u.View()
	v.InvoiceCount = &n
	return v, nil
}

// UpdateUserInput holds the fields to change; nil leaves a field as is.
type UpdateUserInput struct {
	Email         *string
	FirstName     *string
	LastName      *string
	AccountNumber *string
	Role          *string
	Password      *string
}

// Update applies in to user id.  A new email or account number must not
// belong to another user.
func (s *UserService) Update(ctx context.Context, id string, in UpdateUserInput) (model.UserView, error) {
	users := s.store.Users()
	current, err := users.GetByID(ctx, id)
	if err != nil {
		return model.UserView{}, err
	}

	fields := map[string]any{}
	var email, account string
	if in.Email != nil {
		email = strings.ToLower(strings.TrimSpace(*in.Email))
		if !validEmail(email) {
			return model.UserView{}, apperr.Validation("invalid email format")
		}
		if email != current.Email {
			fields["email"] = email
		} else {
			email = ""
		}
	}
	if in.AccountNumber != nil {
		account = strings.TrimSpace(*in.AccountNumber)
		if account == "" {
			return model.UserView{}, apperr.Validation("account number is required")
		}
		if account != current.AccountNumber {
			fields["account_number"] = account
		} else {
			account = ""
		}
	}
	if in.FirstName != nil {
		if err := checkName("first_name", *in.FirstName); err != nil {
			return model.UserView{}, err
		}
		fields["first_name"] = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		if err := checkName("last_name", *in.LastName); err != nil {
			return model.UserView{}, err
		}
		fields["last_name"] = strings.TrimSpace(*in.LastName)
	}
	if in.Role != nil {
		role, ok := model.ParseRole(*in.Role)
		if !ok {
			return model.UserView{}, apperr.Validation("invalid role %q", *in.Role)
		}
		fields["role"] = role
	}
	if in.Password != nil {
		hash, err := s.hash(*in.Password)
		if err != nil {
			return model.UserView{}, err
		}
		fields["password_hash"] = hash
	}

	if email != "" || account != "" {
		taken, err := users.ExistsWithEmailOrAccount(ctx, email, account, id)
		if err != nil {
			return model.UserView{}, err
		}
		if taken {
			return model.UserView{}, apperr.Conflict("user with this email or account number already exists")
		}
	}
	if len(fields) > 0 {
		if err := users.Update(ctx, id, fields); err != nil {
			return model.UserView{}, err
		}
	}
	return userWithCount(ctx, s.store, id)
}

// SetPassword gives user id a password, activating a provisioned account.
func (s *UserService) SetPassword(ctx context.Context, id, password string) error {
	hash, err := s.hash(password)
	if err != nil {
		return err
	}
	return s.store.Users().Update(ctx, id, map[string]any{"password_hash": hash})
}

func (s *UserService) hash(password string) (string, error) {
	if err := checkPassword(password); err != nil {
		return "", err
	}
	hash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// Delete removes a user that owns no invoices, together with its refresh
// tokens.  The invoice check runs here as well as in the store's foreign
// key.
func (s *UserService) Delete(ctx context.Context, id string) error {
	return s.store.Tx(ctx, func(tx *repository.Store) error {
		if _, err := tx.Users().GetByID(ctx, id); err != nil {
			return err
		}
		n, err := tx.Invoices().CountByUser(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict("cannot delete user with %d existing invoice(s)", n)
		}
		if err := tx.Tokens().DeleteAllForUser(ctx, id); err != nil {
			return err
		}
		return tx.Users().Delete(ctx, id)
	})
}

// Stats returns account totals.
func (s *UserService) Stats(ctx context.Context) (repository.UserStats, error) {
	return s.store.Users().Stats(ctx)
}
