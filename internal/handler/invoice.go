package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/invoice-billing/internal/ingest"
	"github.com/iliyamo/invoice-billing/internal/model"
	"github.com/iliyamo/invoice-billing/internal/pagination"
	"github.com/iliyamo/invoice-billing/internal/service"
)

// InvoiceHandler serves the invoice endpoints.  Scoping by role happens in
// the service; the router adds the admin gate on mutations.
type InvoiceHandler struct {
	Invoices  *service.InvoiceService
	BaseURL   string // public origin for pagination links
	UploadDir string // bulk uploads are spooled here
	MaxUpload int64  // largest accepted bulk upload in bytes
}

func NewInvoiceHandler(invoices *service.InvoiceService, baseURL, uploadDir string, maxUpload int64) *InvoiceHandler {
	if invoices == nil {
		panic("nil invoice service passed to NewInvoiceHandler")
	}
	return &InvoiceHandler{Invoices: invoices, BaseURL: baseURL, UploadDir: uploadDir, MaxUpload: maxUpload}
}

type createInvoiceReq struct {
	UserID        string  `json:"user_id"`
	InvoiceNumber string  `json:"invoice_number"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	DueOn         string  `json:"due_on"`
	Description   string  `json:"description"`
	Status        string  `json:"status"`
}

type updateInvoiceReq struct {
	InvoiceNumber *string  `json:"invoice_number"`
	Amount        *float64 `json:"amount"`
	Currency      *string  `json:"currency"`
	DueOn         *string  `json:"due_on"`
	Description   *string  `json:"description"`
	Status        *string  `json:"status"`
}

// Create adds one invoice for an existing user.
func (h *InvoiceHandler) Create(c echo.Context) error {
	var req createInvoiceReq
	if err := bind(c, &req); err != nil {
		return err
	}
	inv, err := h.Invoices.Create(c.Request().Context(), service.CreateInvoiceInput{
		UserID:        req.UserID,
		InvoiceNumber: req.InvoiceNumber,
		Amount:        req.Amount,
		Currency:      req.Currency,
		DueOn:         req.DueOn,
		Description:   req.Description,
		Status:        req.Status,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "Invoice created successfully", echo.Map{"invoice": inv})
}

// List pages through the invoices visible to the caller.  An unknown status
// is ignored; user_id is honoured for admins only.
func (h *InvoiceHandler) List(c echo.Context) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	p := pagination.Parse(c.QueryParam("page"), c.QueryParam("limit"))

	filters := url.Values{}
	f := service.InvoiceFilter{Search: strings.TrimSpace(c.QueryParam("search"))}
	if f.Search != "" {
		filters.Set("search", f.Search)
	}
	if st, ok := model.ParseStatus(c.QueryParam("status")); ok {
		f.Status = &st
		filters.Set("status", string(st))
	}
	if v.IsAdmin() {
		if uid := strings.TrimSpace(c.QueryParam("user_id")); uid != "" {
			f.UserID = uid
			filters.Set("user_id", uid)
		}
	}

	invoices, total, err := h.Invoices.List(c.Request().Context(), v, f, p)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Invoices retrieved successfully", echo.Map{
		"invoices":   invoices,
		"pagination": pagination.NewMeta(p, total, h.BaseURL+c.Request().URL.Path, filters),
	})
}

// Get returns one invoice the caller may see.
func (h *InvoiceHandler) Get(c echo.Context) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	inv, err := h.Invoices.Get(c.Request().Context(), v, c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Invoice retrieved successfully", echo.Map{"invoice": inv})
}

// Update changes the supplied fields of an invoice.
func (h *InvoiceHandler) Update(c echo.Context) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	var req updateInvoiceReq
	if err := bind(c, &req); err != nil {
		return err
	}
	inv, err := h.Invoices.Update(c.Request().Context(), v, c.Param("id"), service.UpdateInvoiceInput{
		InvoiceNumber: req.InvoiceNumber,
		Amount:        req.Amount,
		Currency:      req.Currency,
		DueOn:         req.DueOn,
		Description:   req.Description,
		Status:        req.Status,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Invoice updated successfully", echo.Map{"invoice": inv})
}

// Delete removes an invoice.
func (h *InvoiceHandler) Delete(c echo.Context) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	if err := h.Invoices.Delete(c.Request().Context(), v, c.Param("id")); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Invoice deleted successfully", nil)
}

// Stats returns per-status totals and the most recent invoices.
func (h *InvoiceHandler) Stats(c echo.Context) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	stats, err := h.Invoices.Stats(c.Request().Context(), v)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Invoice statistics retrieved successfully", echo.Map{"stats": stats})
}

// Overdue lists pending invoices past their due date.
func (h *InvoiceHandler) Overdue(c echo.Context) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	invoices, err := h.Invoices.Overdue(c.Request().Context(), v)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Overdue invoices retrieved successfully", echo.Map{
		"invoices": invoices,
		"count":    len(invoices),
	})
}

// SampleCSV serves the bulk upload template as a download.
func (h *InvoiceHandler) SampleCSV(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+ingest.SampleFilename+`"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", []byte(ingest.SampleCSV))
}
