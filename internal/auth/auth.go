// Package auth verifies caller identity against the platform auth
// service (Supabase-compatible GoTrue API).
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aqlhr/askaql/internal/log"
)

// ErrUnauthorized indicates the bearer token is missing, expired, or
// rejected by the auth service. Handlers map it to HTTP 401.
var ErrUnauthorized = errors.New("unauthorized")

const verifyTimeout = 10 * time.Second

// User is the authenticated identity behind a token.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Verifier checks a bearer token and returns the user it belongs to.
type Verifier interface {
	VerifyToken(ctx context.Context, token string) (User, error)
}

// Client verifies tokens by calling the auth service's user endpoint.
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
	logger     log.Logger
}

// NewClient creates a verifier for the auth service at baseURL.
// serviceKey is sent as the apikey header alongside the user's token.
func NewClient(baseURL, serviceKey string, logger log.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: verifyTimeout},
		logger:     logger,
	}
}

// VerifyToken resolves token to a user. Any auth service failure — bad
// status, network error, empty user — collapses to ErrUnauthorized; the
// underlying cause is logged, not returned, so callers cannot leak it.
func (c *Client) VerifyToken(ctx context.Context, token string) (User, error) {
	if token == "" {
		return User{}, ErrUnauthorized
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return User{}, fmt.Errorf("building auth request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", c.serviceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("auth service unreachable", "error", err)
		return User{}, ErrUnauthorized
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("auth service rejected token", "status", resp.StatusCode)
		return User{}, ErrUnauthorized
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		c.logger.Warn("decoding auth response", "error", err)
		return User{}, ErrUnauthorized
	}
	if user.ID == "" {
		return User{}, ErrUnauthorized
	}
	return user, nil
}
