package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/invoice-billing/internal/apperr"
	"github.com/iliyamo/invoice-billing/internal/model"
	"github.com/iliyamo/invoice-billing/internal/pagination"
	"github.com/iliyamo/invoice-billing/internal/service"
)

// UserHandler serves the admin user endpoints.
type UserHandler struct {
	Users   *service.UserService
	BaseURL string // public origin for pagination links
}

func NewUserHandler(users *service.UserService, baseURL string) *UserHandler {
	if users == nil {
		panic("nil user service passed to NewUserHandler")
	}
	return &UserHandler{Users: users, BaseURL: baseURL}
}

type createUserReq struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	AccountNumber string `json:"account_number"`
	Role          string `json:"role"`
}

type updateUserReq struct {
	Email         *string `json:"email"`
	FirstName     *string `json:"first_name"`
	LastName      *string `json:"last_name"`
	AccountNumber *string `json:"account_number"`
	Role          *string `json:"role"`
	Password      *string `json:"password"`
}

type setPasswordReq struct {
	Password string `json:"password"`
}

// Create adds an account with any role.  The password may be omitted to
// provision a user that cannot log in yet.
func (h *UserHandler) Create(c echo.Context) error {
	var req createUserReq
	if err := bind(c, &req); err != nil {
		return err
	}
	in := service.RegisterInput{
		Email:         req.Email,
		Password:      req.Password,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		AccountNumber: req.AccountNumber,
	}
	if strings.TrimSpace(req.Role) != "" {
		role, ok := model.ParseRole(req.Role)
		if !ok {
			return apperr.Validation("invalid role %q", req.Role)
		}
		in.Role = role
	}
	user, err := h.Users.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "User created successfully", echo.Map{"user": user})
}

// List pages through users.  Without a role parameter only customers are
// listed; role=all lists every role.
func (h *UserHandler) List(c echo.Context) error {
	p := pagination.Parse(c.QueryParam("page"), c.QueryParam("limit"))
	search := strings.TrimSpace(c.QueryParam("search"))

	filters := url.Values{}
	role := model.RoleCustomer
	f := service.UserFilter{Search: search, Role: &role}
	if raw := strings.TrimSpace(c.QueryParam("role")); raw != "" {
		if strings.EqualFold(raw, "all") {
			f.Role = nil
			filters.Set("role", "all")
		} else if r, ok := model.ParseRole(raw); ok {
			role = r
			filters.Set("role", string(r))
		}
	}
	if search != "" {
		filters.Set("search", search)
	}

	users, total, err := h.Users.List(c.Request().Context(), f, p)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Users retrieved successfully", echo.Map{
		"users":      users,
		"pagination": pagination.NewMeta(p, total, h.BaseURL+c.Request().URL.Path, filters),
	})
}

// Get returns one user with its invoice count.
func (h *UserHandler) Get(c echo.Context) error {
	user, err := h.Users.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "User retrieved successfully", echo.Map{"user": user})
}

// Update changes the supplied fields of a user.
func (h *UserHandler) Update(c echo.Context) error {
	var req updateUserReq
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.Users.Update(c.Request().Context(), c.Param("id"), service.UpdateUserInput{
		Email:         req.Email,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		AccountNumber: req.AccountNumber,
		Role:          req.Role,
		Password:      req.Password,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "User updated successfully", echo.Map{"user": user})
}

// Delete removes a user that owns no invoices.
func (h *UserHandler) Delete(c echo.Context) error {
	if err := h.Users.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "User deleted successfully", nil)
}

// SetPassword activates a provisioned account.
func (h *UserHandler) SetPassword(c echo.Context) error {
	var req setPasswordReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.Users.SetPassword(c.Request().Context(), c.Param("id"), req.Password); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Password set successfully", nil)
}

// Stats returns account totals.
func (h *UserHandler) Stats(c echo.Context) error {
	stats, err := h.Users.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "User statistics retrieved successfully", echo.Map{"stats": stats})
}
