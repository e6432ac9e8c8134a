// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package puter

import (
	"context"

	"github.com/jeranaias/puterchat/internal/provider"
)

// Auth returns the session manager for the client.
func (c *Client) Auth() provider.Authenticator {
	return (*auth)(c)
}

// auth exposes the client's token session as a provider.Authenticator.
type auth Client

func (a *auth) client() *Client {
	return (*Client)(a)
}

// IsSignedIn reports whether a token is present. It does not validate it.
func (a *auth) IsSignedIn(context.Context) bool {
	return a.client().Token() != ""
}

// GetUser asks the server who the token belongs to.
func (a *auth) GetUser(ctx context.Context) (provider.User, error) {
	c := a.client()
	if c.Token() == "" {
		return provider.User{}, ErrUnauthorized
	}
	resp, err := c.do(ctx, c.httpClient, "GET", "/whoami", nil)
	if err != nil {
		return provider.User{}, err
	}
	defer resp.Body.Close()

	data, err := readResponse(resp)
	if err != nil {
		return provider.User{}, err
	}
	var u provider.User
	if err := unmarshal(data, &u); err != nil {
		return provider.User{}, err
	}
	if u.UUID == "" && u.Username == "" {
		return provider.User{}, &ClientError{Type: ErrTypeInvalidResponse, Message: "whoami returned no identity"}
	}
	return u, nil
}

// SignIn validates the configured token. Terminal clients cannot run the
// browser popup flow, so a token must be supplied through configuration.
func (a *auth) SignIn(ctx context.Context) (provider.User, error) {
	return a.GetUser(ctx)
}

// SignOut forgets the token.
func (a *auth) SignOut(context.Context) error {
	a.client().SetToken("")
	return nil
}
