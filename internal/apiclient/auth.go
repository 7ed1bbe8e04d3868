package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"storefront/internal/models"
)

// Login exchanges credentials for an access token
func (c *Client) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var resp models.LoginResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "/auth/login",
		path:   "/auth/login",
		form:   form,
		public: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates a new account
func (c *Client) Register(ctx context.Context, profile models.RegisterRequest) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		route:  "/auth/register",
		path:   "/auth/register",
		body:   profile,
		public: true,
	}, nil)
}
