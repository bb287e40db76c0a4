package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"ledger-backend/internal/apperr"
	"ledger-backend/internal/features"
	"ledger-backend/internal/store"
)

// Handler serves the authentication endpoints. User records live in the
// users feature; refresh tokens are auth-internal state in their own table.
type Handler struct {
	st        *store.Store
	reg       *features.Registry
	jwtSecret string
}

// NewHandler creates a Handler.
func NewHandler(st *store.Store, reg *features.Registry, jwtSecret string) *Handler {
	return &Handler{st: st, reg: reg, jwtSecret: jwtSecret}
}

// EnsureTable creates the refresh-token table when missing.
func (h *Handler) EnsureTable(ctx context.Context) error {
	sqlStr := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS refresh_tokens (
  id %s NOT NULL,
  user_id %s NOT NULL,
  token %s NOT NULL,
  expires_at %s NOT NULL,
  PRIMARY KEY (id),
  UNIQUE (token)
)`,
		h.st.Dialect.ColumnType("uuid", 0),
		h.st.Dialect.ColumnType("uuid", 0),
		h.st.Dialect.ColumnType("string", 0),
		h.st.Dialect.ColumnType("timestamp", 0))
	if _, err := h.st.DB.ExecContext(ctx, sqlStr); err != nil {
		return fmt.Errorf("create table refresh_tokens: %w", err)
	}
	return nil
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return apperr.Validation([]apperr.Detail{{Field: "body", Rule: "format", Message: "Invalid request body"}})
	}
	if len(body.Password) < 8 {
		return apperr.Validation([]apperr.Detail{{
			Field: "password", Rule: "min_length", Message: "password must be at least 8 characters",
		}})
	}

	hash, err := HashPassword(body.Password)
	if err != nil {
		return apperr.Internal(err)
	}

	users, _ := h.reg.Get("users")
	user, err := users.Service.Create(c.Context(), map[string]any{
		"email":         body.Email,
		"name":          body.Name,
		"password_hash": hash,
	}, "")
	if err != nil {
		return err
	}

	userID, _ := user["id"].(string)
	pair, err := h.issueTokens(c.Context(), userID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": pair})
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return apperr.Validation([]apperr.Detail{{Field: "body", Rule: "format", Message: "Invalid request body"}})
	}
	if body.Email == "" || body.Password == "" {
		return invalidCredentials()
	}

	users, _ := h.reg.Get("users")
	out, err := users.Service.Custom(c.Context(), "getByEmail", map[string]any{"email": body.Email}, "")
	if err != nil {
		return invalidCredentials()
	}
	user, _ := out.(map[string]any)

	passwordHash, _ := user["password_hash"].(string)
	if !CheckPassword(body.Password, passwordHash) {
		return invalidCredentials()
	}

	userID, _ := user["id"].(string)
	pair, err := h.issueTokens(c.Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": pair})
}

// Refresh handles POST /api/auth/refresh. Tokens rotate: a used refresh
// token is deleted whether or not it was still valid.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&body); err != nil || body.RefreshToken == "" {
		return apperr.Unauthorized("Refresh token is required")
	}

	ctx := c.Context()
	pb := h.st.Dialect.NewParamBuilder()
	row, err := store.QueryRow(ctx, h.st.DB,
		fmt.Sprintf("SELECT id, user_id, expires_at FROM refresh_tokens WHERE token = %s", pb.Add(body.RefreshToken)),
		pb.Params()...)
	if err != nil {
		return apperr.Unauthorized("Invalid refresh token")
	}

	h.deleteToken(ctx, body.RefreshToken)

	if expiresAt, ok := row["expires_at"].(time.Time); !ok || time.Now().After(expiresAt) {
		return apperr.Unauthorized("Refresh token expired")
	}

	userID, _ := row["user_id"].(string)
	pair, err := h.issueTokens(ctx, userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": pair})
}

// Logout handles POST /api/auth/logout.
func (h *Handler) Logout(c *fiber.Ctx) error {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&body); err != nil || body.RefreshToken == "" {
		return apperr.Unauthorized("Refresh token is required")
	}
	h.deleteToken(c.Context(), body.RefreshToken)
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// RegisterRoutes mounts the auth endpoints.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	grp := app.Group("/api/auth")
	grp.Post("/register", h.Register)
	grp.Post("/login", h.Login)
	grp.Post("/refresh", h.Refresh)
	grp.Post("/logout", h.Logout)
}

func (h *Handler) issueTokens(ctx context.Context, userID string) (*TokenPair, error) {
	accessToken, err := GenerateAccessToken(userID, h.jwtSecret)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	refreshToken := GenerateRefreshToken()
	expiresAt := time.Now().Add(RefreshTokenTTL).UTC().Format(time.RFC3339Nano)

	pb := h.st.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("INSERT INTO refresh_tokens (id, user_id, token, expires_at) VALUES (%s, %s, %s, %s)",
		pb.Add(uuid.New().String()), pb.Add(userID), pb.Add(refreshToken), pb.Add(expiresAt))
	if _, err := store.Exec(ctx, h.st.DB, sqlStr, pb.Params()...); err != nil {
		return nil, apperr.Internal(err)
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (h *Handler) deleteToken(ctx context.Context, token string) {
	pb := h.st.Dialect.NewParamBuilder()
	_, _ = store.Exec(ctx, h.st.DB,
		fmt.Sprintf("DELETE FROM refresh_tokens WHERE token = %s", pb.Add(token)), pb.Params()...)
}

func invalidCredentials() error {
	return apperr.New(apperr.LayerEndpoint, apperr.TypeAuth, apperr.CodeInvalidCredentials,
		"Invalid email or password")
}
