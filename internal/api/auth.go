package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/nhle/mail-client/internal/model"
)

// Login exchanges credentials for a bearer token. When the backend only
// returns the token, the user is fetched with it from /auth/me.
func (c *Client) Login(ctx context.Context, creds model.Credentials) (model.User, string, error) {
	var resp model.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, creds, &resp); err != nil {
		return model.User{}, "", err
	}

	token := resp.BearerToken()
	if token == "" {
		return model.User{}, "", errors.New("login response carried no token")
	}
	if resp.User != nil {
		return *resp.User, token, nil
	}

	var user model.User
	err := c.send(ctx, request{method: http.MethodGet, path: "/auth/me", token: token}, &user)
	if err != nil {
		return model.User{}, "", fmt.Errorf("resolving logged in user: %w", err)
	}
	return user, token, nil
}

// Register creates a backend user. It does not log in.
func (c *Client) Register(ctx context.Context, reg model.Registration) (model.User, error) {
	var user model.User
	err := c.do(ctx, http.MethodPost, "/auth/register", nil, reg, &user)
	return user, err
}

// CurrentUser returns the user the current token belongs to.
func (c *Client) CurrentUser(ctx context.Context) (model.User, error) {
	var user model.User
	err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &user)
	return user, err
}

// Logout tells the backend the client is discarding its token.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
}
