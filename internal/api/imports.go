package api

import (
	"io"

	"github.com/gofiber/fiber/v2"

	"ledger-backend/internal/apperr"
	"ledger-backend/internal/auth"
	"ledger-backend/internal/config"
	"ledger-backend/internal/importer"
)

// ImportHandler serves the CSV upload endpoint.
type ImportHandler struct {
	im  *importer.Importer
	cfg config.ImportConfig
}

// NewImportHandler creates an ImportHandler.
func NewImportHandler(im *importer.Importer, cfg config.ImportConfig) *ImportHandler {
	return &ImportHandler{im: im, cfg: cfg}
}

// Upload handles POST /api/imports. The body is multipart: a "file" part
// plus form values naming the account and the column mapping.
func (h *ImportHandler) Upload(c *fiber.Ctx) error {
	accountID := c.FormValue("account_id")
	if accountID == "" {
		return apperr.Validation([]apperr.Detail{{
			Field: "account_id", Rule: "required", Message: "account_id is required",
		}})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return apperr.Validation([]apperr.Detail{{
			Field: "file", Rule: "required", Message: "A CSV file upload is required",
		}})
	}
	if h.cfg.MaxFileSize > 0 && fileHeader.Size > h.cfg.MaxFileSize {
		return apperr.Validation([]apperr.Detail{{
			Field: "file", Rule: "max", Message: "File exceeds the upload size limit",
		}})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return apperr.Internal(err)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return apperr.Internal(err)
	}

	mapping := importer.Mapping{
		Date:         c.FormValue("date_column", "date"),
		Amount:       c.FormValue("amount_column", "amount"),
		Description:  c.FormValue("description_column", "description"),
		Counterparty: c.FormValue("counterparty_column"),
		DateLayout:   c.FormValue("date_layout"),
	}

	result, err := h.im.Run(c.Context(), data, accountID, fileHeader.Filename, mapping, auth.UserID(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": result})
}
