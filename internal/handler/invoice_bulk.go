package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/invoice-billing/internal/apperr"
	"github.com/iliyamo/invoice-billing/internal/ingest"
	"github.com/iliyamo/invoice-billing/internal/service"
)

const bulkFileField = "file"

// Bulk imports invoices from a multipart upload in the "file" field (CSV or
// JSON) or, for any other content type, from an inline JSON body holding a
// bare array or {"invoices": [...]}.  Row failures are reported in the
// result, not as an error status.
func (h *InvoiceHandler) Bulk(c echo.Context) error {
	v, err := viewer(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	var res service.BulkResult
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		path, filename, contentType, err := h.spool(c)
		if err != nil {
			return err
		}
		res, err = h.Invoices.ImportFile(ctx, v, path, filename, contentType)
		if err != nil {
			return err
		}
	} else {
		rows, err := ingest.ParseJSON(c.Request().Body)
		if err != nil {
			return err
		}
		res = h.Invoices.BulkCreate(ctx, v, rows, "inline")
	}

	msg := fmt.Sprintf("Bulk import completed: %d created, %d skipped", res.Created, res.Skipped)
	return respond(c, http.StatusOK, msg, res)
}

// spool copies the uploaded file into UploadDir and returns its path.  The
// caller owns the file from then on.
func (h *InvoiceHandler) spool(c echo.Context) (path, filename, contentType string, err error) {
	fh, err := c.FormFile(bulkFileField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", "", "", apperr.Validation("no file uploaded")
		}
		return "", "", "", apperr.Validation("invalid multipart form")
	}
	if h.MaxUpload > 0 && fh.Size > h.MaxUpload {
		return "", "", "", echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
	}

	src, err := fh.Open()
	if err != nil {
		return "", "", "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(h.UploadDir, 0o755); err != nil {
		return "", "", "", fmt.Errorf("create upload dir: %w", err)
	}
	dst, err := os.CreateTemp(h.UploadDir, "bulk-*"+filepath.Ext(fh.Filename))
	if err != nil {
		return "", "", "", fmt.Errorf("create upload file: %w", err)
	}
	_, err = io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		if rerr := os.Remove(dst.Name()); rerr != nil {
			slog.Warn("remove upload", "path", dst.Name(), "err", rerr)
		}
		return "", "", "", fmt.Errorf("write upload: %w", err)
	}
	return dst.Name(), fh.Filename, fh.Header.Get(echo.HeaderContentType), nil
}
