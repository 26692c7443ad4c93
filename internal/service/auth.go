package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/invoice-billing/internal/apperr"
	"github.com/iliyamo/invoice-billing/internal/config"
	"github.com/iliyamo/invoice-billing/internal/model"
	"github.com/iliyamo/invoice-billing/internal/repository"
	"github.com/iliyamo/invoice-billing/internal/utils"
)

// Login and refresh failures share these errors whatever the cause, so a
// client cannot tell a missing account from a wrong password.
var (
	errInvalidCredentials = fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthorized)
	errInvalidRefresh     = fmt.Errorf("%w: invalid refresh token", apperr.ErrUnauthorized)
)

// AuthService manages registration and token-based sessions.
type AuthService struct {
	store *repository.Store
	cfg   config.Config
}

func NewAuthService(store *repository.Store, cfg config.Config) *AuthService {
	return &AuthService{store: store, cfg: cfg}
}

// RegisterInput is a candidate account.  Password may be empty, which
// provisions the account without the ability to log in.
type RegisterInput struct {
	Email         string
	Password      string
	FirstName     string
	LastName      string
	AccountNumber string
	Role          model.Role
}

// Register creates a CUSTOMER account.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (model.UserView, error) {
	in.Role = model.RoleCustomer
	u, err := createUser(ctx, s.store.Users(), in, s.cfg.BcryptCost)
	if err != nil {
		return model.UserView{}, err
	}
	return u.View(), nil
}

// createUser validates in and inserts it.  The existence pre-check gives a
// clean Conflict on the common path; the unique indexes catch the race.
func createUser(ctx context.Context, users *repository.UserRepo, in RegisterInput, cost int) (*model.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.AccountNumber = strings.TrimSpace(in.AccountNumber)
	if !validEmail(in.Email) {
		return nil, apperr.Validation("invalid email format")
	}
	if in.AccountNumber == "" {
		return nil, apperr.Validation("account number is required")
	}
	if err := checkName("first_name", in.FirstName); err != nil {
		return nil, err
	}
	if err := checkName("last_name", in.LastName); err != nil {
		return nil, err
	}
	if in.Role == "" {
		in.Role = model.RoleCustomer
	}

	exists, err := users.ExistsWithEmailOrAccount(ctx, in.Email, in.AccountNumber, "")
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.Conflict("user with this email or account number already exists")
	}

	u := &model.User{
		Email:         in.Email,
		AccountNumber: in.AccountNumber,
		FirstName:     strings.TrimSpace(in.FirstName),
		LastName:      strings.TrimSpace(in.LastName),
		Role:          in.Role,
	}
	if in.Password != "" {
		if err := checkPassword(in.Password); err != nil {
			return nil, err
		}
		hash, err := utils.HashPassword(in.Password, cost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = &hash
	}
	if err := users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// LoginResult carries a fresh token pair.
type LoginResult struct {
	User             model.UserView `json:"user"`
	AccessToken      string         `json:"access_token"`
	AccessExpiresAt  time.Time      `json:"access_expires_at"`
	RefreshToken     string         `json:"refresh_token"`
	RefreshExpiresAt time.Time      `json:"refresh_expires_at"`
}

// Login verifies credentials and issues an access and a persisted refresh
// token.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	u, err := s.store.Users().GetByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return LoginResult{}, errInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return LoginResult{}, errInvalidCredentials
	}

	access, err := utils.NewAccessToken(s.cfg.JWTSecret, u, s.cfg.AccessTTL)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := utils.NewRefreshToken(s.cfg.JWTRefreshSecret, u.ID, s.cfg.RefreshTTL)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue refresh token: %w", err)
	}
	if err := s.store.Tokens().StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return LoginResult{}, err
	}

	return LoginResult{
		User:             u.View(),
		AccessToken:      access.Token,
		AccessExpiresAt:  access.Exp,
		RefreshToken:     refresh.Raw,
		RefreshExpiresAt: refresh.Exp,
	}, nil
}

// RefreshResult carries a new access token.
type RefreshResult struct {
	AccessToken     string    `json:"access_token"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
}

// Refresh exchanges a stored, unexpired refresh token for a new access
// token.  Claims come from the user record as it is now, not from the
// token.  The refresh token itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, raw string) (RefreshResult, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return RefreshResult{}, errInvalidRefresh
	}
	if _, err := utils.ParseRefresh(s.cfg.JWTRefreshSecret, raw); err != nil {
		return RefreshResult{}, errInvalidRefresh
	}
	row, err := s.store.Tokens().FindValid(ctx, utils.HashRefreshRaw(raw))
	if errors.Is(err, apperr.ErrNotFound) {
		return RefreshResult{}, errInvalidRefresh
	}
	if err != nil {
		return RefreshResult{}, err
	}
	u, err := s.store.Users().GetByID(ctx, row.UserID)
	if errors.Is(err, apperr.ErrNotFound) {
		return RefreshResult{}, errInvalidRefresh
	}
	if err != nil {
		return RefreshResult{}, err
	}

	access, err := utils.NewAccessToken(s.cfg.JWTSecret, u, s.cfg.AccessTTL)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("issue access token: %w", err)
	}
	return RefreshResult{AccessToken: access.Token, AccessExpiresAt: access.Exp}, nil
}

// Logout deletes the stored refresh token.  Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return apperr.Validation("refresh_token is required")
	}
	return s.store.Tokens().DeleteByHash(ctx, utils.HashRefreshRaw(raw))
}

// Profile returns the caller's own account with its invoice count.
func (s *AuthService) Profile(ctx context.Context, viewer model.Viewer) (model.UserView, error) {
	return userWithCount(ctx, s.store, viewer.ID)
}

// CleanupExpiredTokens deletes every refresh token past its expiry.
func (s *AuthService) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	return s.store.Tokens().DeleteExpired(ctx, time.Now())
}

// RunTokenSweeper calls CleanupExpiredTokens every interval until ctx is
// done.  The sweep only deletes expired rows, so it may overlap with live
// logins and refreshes.
func (s *AuthService) RunTokenSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.CleanupExpiredTokens(ctx)
			if err != nil {
				if ctx.Err() == nil {
					slog.Error("token sweep failed", "err", err)
				}
				continue
			}
			if n > 0 {
				slog.Info("expired refresh tokens removed", "count", n)
			}
		}
	}
}
