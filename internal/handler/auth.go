package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/invoice-billing/internal/service"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

// ----- DTOs -----

type registerReq struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	AccountNumber string `json:"account_number"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

// Register creates a customer account.  Tokens are obtained by logging in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.Auth.Register(c.Request().Context(), service.RegisterInput{
		Email:         req.Email,
		Password:      req.Password,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		AccountNumber: req.AccountNumber,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "User registered successfully", echo.Map{"user": user})
}

// Login verifies credentials and returns an access and refresh token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.Auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Login successful", res)
}

// Refresh exchanges a refresh token for a new access token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.Auth.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Token refreshed successfully", res)
}

// Logout revokes the given refresh token.  Unknown tokens are accepted.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.Auth.Logout(c.Request().Context(), req.RefreshToken); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Logout successful", nil)
}

// Profile returns the authenticated user as stored now.
func (h *AuthHandler) Profile(c echo.Context) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	user, err := h.Auth.Profile(c.Request().Context(), v)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Profile retrieved successfully", echo.Map{"user": user})
}
