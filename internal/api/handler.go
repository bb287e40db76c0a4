// Package api exposes the registered features over REST and renders every
// failure through the public error envelope.
package api

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"ledger-backend/internal/apperr"
	"ledger-backend/internal/auth"
	"ledger-backend/internal/feature"
	"ledger-backend/internal/features"
)

// Handler serves the generic /api/:entity routes.
type Handler struct {
	reg *features.Registry
}

// NewHandler creates a Handler over the feature registry.
func NewHandler(reg *features.Registry) *Handler {
	return &Handler{reg: reg}
}

// List handles GET /api/:entity.
func (h *Handler) List(c *fiber.Ctx) error {
	f, err := h.resolveFeature(c)
	if err != nil {
		return err
	}

	req, err := parseListParams(c, f.Config)
	if err != nil {
		return err
	}

	page, err := f.Service.GetMany(c.Context(), req, auth.UserID(c))
	if err != nil {
		return err
	}

	items := page.Items
	for _, row := range items {
		scrub(row)
	}
	return c.JSON(fiber.Map{
		"data": items,
		"meta": fiber.Map{
			"page":     req.Page + 1,
			"per_page": req.PageSize,
			"total":    page.Total,
		},
	})
}

// GetByID handles GET /api/:entity/:id.
func (h *Handler) GetByID(c *fiber.Ctx) error {
	f, err := h.resolveFeature(c)
	if err != nil {
		return err
	}
	ids, err := pathIDs(c, f.Config)
	if err != nil {
		return err
	}

	row, err := f.Service.GetByID(c.Context(), ids, auth.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": scrub(row)})
}

// Create handles POST /api/:entity.
func (h *Handler) Create(c *fiber.Ctx) error {
	f, err := h.resolveFeature(c)
	if err != nil {
		return err
	}

	var body map[string]any
	if err := c.BodyParser(&body); err != nil {
		return invalidBody()
	}
	record, err := parseBody(f, feature.OpCreate, body)
	if err != nil {
		return err
	}

	row, err := f.Service.Create(c.Context(), record, auth.UserID(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": scrub(row)})
}

// CreateMany handles POST /api/:entity/batch with a JSON array body.
func (h *Handler) CreateMany(c *fiber.Ctx) error {
	f, err := h.resolveFeature(c)
	if err != nil {
		return err
	}

	var body []map[string]any
	if err := c.BodyParser(&body); err != nil {
		return invalidBody()
	}

	rows, err := f.Service.CreateMany(c.Context(), body, auth.UserID(c))
	if err != nil {
		return err
	}
	for _, row := range rows {
		scrub(row)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": rows})
}

// Update handles PUT /api/:entity/:id.
func (h *Handler) Update(c *fiber.Ctx) error {
	f, err := h.resolveFeature(c)
	if err != nil {
		return err
	}
	ids, err := pathIDs(c, f.Config)
	if err != nil {
		return err
	}

	var body map[string]any
	if err := c.BodyParser(&body); err != nil {
		return invalidBody()
	}
	record, err := parseBody(f, feature.OpUpdateByID, body)
	if err != nil {
		return err
	}

	row, err := f.Service.UpdateByID(c.Context(), ids, record, auth.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": scrub(row)})
}

// Delete handles DELETE /api/:entity/:id and returns the removed record.
func (h *Handler) Delete(c *fiber.Ctx) error {
	f, err := h.resolveFeature(c)
	if err != nil {
		return err
	}
	ids, err := pathIDs(c, f.Config)
	if err != nil {
		return err
	}

	row, err := f.Service.RemoveByID(c.Context(), ids, auth.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": scrub(row)})
}

// resolveFeature serves tenant-scoped entities only. Unscoped features such
// as users would otherwise let any caller reach every row; they stay behind
// their dedicated routes.
func (h *Handler) resolveFeature(c *fiber.Ctx) (*features.Feature, error) {
	name := c.Params("entity")
	f, ok := h.reg.Get(name)
	if !ok || !f.Config.TenantScoped() {
		return nil, apperr.UnknownFeature(name)
	}
	return f, nil
}

// Me handles GET /api/me: the caller's own user record.
func (h *Handler) Me(c *fiber.Ctx) error {
	users, ok := h.reg.Get("users")
	if !ok {
		return apperr.UnknownFeature("me")
	}
	row, err := users.Service.GetByID(c.Context(), map[string]any{"id": auth.UserID(c)}, auth.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": scrub(row)})
}

// UpdateMe handles PUT /api/me. The identifier comes from the token, so the
// caller can only ever touch their own record.
func (h *Handler) UpdateMe(c *fiber.Ctx) error {
	users, ok := h.reg.Get("users")
	if !ok {
		return apperr.UnknownFeature("me")
	}

	var body map[string]any
	if err := c.BodyParser(&body); err != nil {
		return invalidBody()
	}
	record, err := parseBody(users, feature.OpUpdateByID, body)
	if err != nil {
		return err
	}

	row, err := users.Service.UpdateByID(c.Context(),
		map[string]any{"id": auth.UserID(c)}, record, auth.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": scrub(row)})
}

// pathIDs maps the :id path segment onto the config's identifier fields.
// Composite identifiers use slash-joined segments via the :id2 route.
func pathIDs(c *fiber.Ctx, cfg *feature.Config) (map[string]any, error) {
	segments := []string{c.Params("id")}
	if second := c.Params("id2"); second != "" {
		segments = append(segments, second)
	}
	if len(segments) != len(cfg.IDs) {
		return nil, apperr.Validation([]apperr.Detail{{
			Field: "id", Rule: "format",
			Message: "Identifier segment count does not match the entity",
		}})
	}
	ids := make(map[string]any, len(cfg.IDs))
	for i, field := range cfg.IDs {
		ids[field] = segments[i]
	}
	return ids, nil
}

// parseListParams reads filter[name]=value / filter[name.op] style filters,
// sort=-field, page and per_page.
func parseListParams(c *fiber.Ctx, cfg *feature.Config) (feature.GetManyRequest, error) {
	req := feature.GetManyRequest{Filters: map[string]any{}}

	for key, val := range c.Queries() {
		if !strings.HasPrefix(key, "filter[") || !strings.HasSuffix(key, "]") {
			continue
		}
		name := key[7 : len(key)-1]
		spec, ok := cfg.Filters[name]
		if !ok {
			return req, apperr.Validation([]apperr.Detail{{
				Field: name, Rule: "unknown",
				Message: "Unknown filter field: " + name,
			}})
		}
		if spec.Op == "in" {
			parts := strings.Split(val, ",")
			items := make([]any, 0, len(parts))
			for _, p := range parts {
				items = append(items, strings.TrimSpace(p))
			}
			req.Filters[name] = items
			continue
		}
		req.Filters[name] = val
	}

	if sortParam := c.Query("sort"); sortParam != "" {
		field := sortParam
		if strings.HasPrefix(field, "-") {
			req.OrderDir = "DESC"
			field = field[1:]
		}
		req.OrderBy = field
	}

	// pages are 1-based on the wire
	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			req.Page = v - 1
		}
	}
	if pp := c.Query("per_page"); pp != "" {
		if v, err := strconv.Atoi(pp); err == nil && v > 0 {
			req.PageSize = v
		}
	}
	if req.PageSize == 0 {
		req.PageSize = cfg.PageSize
	}
	return req, nil
}

// parseBody runs the operation's endpoint-layer body schema over the raw
// request body, so malformed input is rejected before the service runs.
func parseBody(f *features.Feature, op string, body map[string]any) (map[string]any, error) {
	bundle, ok := f.Schemas.Operation(op)
	if !ok {
		return body, nil
	}
	record, details := bundle.EndpointBody().Parse(body)
	if len(details) > 0 {
		return nil, apperr.Validation(details)
	}
	return record, nil
}

// scrub removes server-only columns from a response row.
func scrub(row map[string]any) map[string]any {
	delete(row, "password_hash")
	return row
}

func invalidBody() error {
	return apperr.Validation([]apperr.Detail{{
		Field: "body", Rule: "format", Message: "Invalid request body",
	}})
}
