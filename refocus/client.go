// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

package refocus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	hclog "github.com/hashicorp/go-hclog"

	"github.com/salesforce/pyplyn/client"
	"github.com/salesforce/pyplyn/connector"
)

// ServiceName keys Refocus clients in the AppConnectors memoization map.
const ServiceName = "refocus"

// Client is an authenticated handle on one Refocus endpoint. The auth token
// is held in memory; passwords are read fresh from the connector source for
// each auth exchange and zeroed immediately after.
type Client struct {
	*client.BaseClient
	logger hclog.Logger
	base   string

	mu    sync.Mutex
	token []byte
}

// NewClient builds a client for the endpoint described by conn.
func NewClient(conn *connector.Connector, logger hclog.Logger) (*Client, error) {
	base, err := client.NewBaseClient(conn, logger)
	if err != nil {
		return nil, err
	}
	c := &Client{
		BaseClient: base,
		logger:     logger,
		base:       strings.TrimRight(conn.Endpoint, "/"),
	}
	base.SetAuthenticator(c)
	return c, nil
}

// IsAuthenticated implements client.Authenticator.
func (c *Client) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token != nil
}

// Auth implements client.Authenticator: POST /v1/authenticate with the
// connector credentials, keeping the returned token.
func (c *Client) Auth(ctx context.Context) error {
	password, err := c.Connector().PasswordBytes()
	if err != nil {
		return &client.UnauthorizedError{
			Method: http.MethodPost, URL: c.base + "/v1/authenticate",
			Code: http.StatusUnauthorized, Message: err.Error(),
		}
	}
	defer connector.ZeroBytes(password)

	body, err := json.Marshal(map[string]string{
		"username": c.Connector().Username,
		"password": string(password),
	})
	if err != nil {
		return fmt.Errorf("failed to encode auth request: %w", err)
	}
	defer connector.ZeroBytes(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/authenticate", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	if resp == nil {
		return &client.UnauthorizedError{
			Method: http.MethodPost, URL: c.base + "/v1/authenticate",
			Code: http.StatusUnauthorized, Message: "auth exchange failed",
		}
	}
	defer resp.Body.Close()

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Token == "" {
		return &client.UnauthorizedError{
			Method: http.MethodPost, URL: c.base + "/v1/authenticate",
			Code: http.StatusUnauthorized, Message: "no token in auth response",
		}
	}

	c.mu.Lock()
	c.token = []byte(out.Token)
	c.mu.Unlock()
	return nil
}

// ResetAuth implements client.Authenticator.
func (c *Client) ResetAuth() {
	c.mu.Lock()
	connector.ZeroBytes(c.token)
	c.token = nil
	c.mu.Unlock()
}

func (c *Client) authHeader() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.token)
}

// GetSamples returns all samples matching the name pattern, which may
// contain wildcards.
func (c *Client) GetSamples(ctx context.Context, name string) ([]Sample, error) {
	build := func(ctx context.Context) (*http.Request, error) {
		u := fmt.Sprintf("%s/v1/samples?name=%s", c.base, url.QueryEscape(name))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", c.authHeader())
		return req, nil
	}
	return client.ExecuteWithAuthRetry[[]Sample](ctx, c.BaseClient, build, nil)
}

// UpsertSample creates or replaces one sample on the endpoint. Returns false
// when the remote rejects the write for any non-auth reason.
func (c *Client) UpsertSample(ctx context.Context, sample Sample) (bool, error) {
	payload, err := json.Marshal(sample)
	if err != nil {
		return false, fmt.Errorf("failed to encode sample %q: %w", sample.Name, err)
	}

	build := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/samples/upsert", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", c.authHeader())
		return req, nil
	}

	out, err := client.ExecuteWithAuthRetry(ctx, c.BaseClient, build, map[string]any(nil))
	if err != nil {
		return false, err
	}
	return out != nil, nil
}
