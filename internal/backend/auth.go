package backend

import (
	"context"
	"net/http"

	"github.com/luofanlf/hdbPilot-admin/internal/domain"
)

// DefaultLoginPath is the admin login endpoint.
const DefaultLoginPath = "/api/admin/user/login"

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login signs in against loginPath and returns the session cookies the
// backend set. An empty loginPath uses DefaultLoginPath.
func (c *Client) Login(ctx context.Context, loginPath, username, password string) ([]*http.Cookie, error) {
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}
	resp, err := c.send(ctx, request{
		op:     "auth.login",
		method: http.MethodPost,
		path:   loginPath,
		body:   credentials{Username: username, Password: password},
	})
	if err != nil {
		return nil, err
	}
	env, err := DecodeEnvelope(resp.body)
	if err != nil {
		return nil, err
	}
	if !env.OK() {
		return nil, env.Err()
	}
	return resp.cookies, nil
}

// Current returns the signed-in user for the cookies on ctx. A failed
// envelope means the session is gone and yields an Unauthorized error.
func (c *Client) Current(ctx context.Context) (*domain.SessionUser, error) {
	var user domain.SessionUser
	_, err := c.call(ctx, request{
		op:     "auth.current",
		method: http.MethodGet,
		path:   "/api/user/current",
	}, &user)
	if err != nil {
		if domain.IsApplication(err) {
			return nil, domain.NewAppError(domain.CodeUnauthorized, domain.UserMessage(err, domain.ErrUnauthorized.Message), err)
		}
		return nil, err
	}
	if user.ID == 0 && user.Username == "" {
		return nil, domain.ErrUnauthorized
	}
	return &user, nil
}

// Logout ends the backend session. Only data == true counts as success.
func (c *Client) Logout(ctx context.Context) error {
	return c.confirm(ctx, request{
		op:     "auth.logout",
		method: http.MethodPost,
		path:   "/api/user/logout",
	})
}

type registration struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Register creates an account. Password confirmation is checked before any
// request is sent.
func (c *Client) Register(ctx context.Context, username, password, confirmPassword string) error {
	if password != confirmPassword {
		return domain.NewValidationError("Passwords do not match")
	}
	_, err := c.call(ctx, request{
		op:     "auth.register",
		method: http.MethodPost,
		path:   "/api/user/register",
		body:   registration{Username: username, Password: password, ConfirmPassword: confirmPassword},
	}, nil)
	return err
}
