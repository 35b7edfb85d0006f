package apiclient

import (
	"context"
	"net/url"

	"github.com/marmos91/hostkit/pkg/api/handlers"
	"github.com/marmos91/hostkit/pkg/identity"
)

// Login exchanges an account of a token realm for a Bearer token.
func (c *Client) Login(ctx context.Context, realm, username, password string) (*identity.Token, error) {
	var tok identity.Token
	req := handlers.LoginRequest{Username: username, Password: password}
	if err := c.post(ctx, "/auth/"+url.PathEscape(realm)+"/token", req, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}
