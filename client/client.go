// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

// Package client provides the authenticated HTTP base that concrete remote
// clients (Refocus, etc.) are built on: connector-driven timeouts and proxy,
// single-flight authentication, and the retry-once-on-401 execution policy.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"

	cleanhttp "github.com/hashicorp/go-cleanhttp"
	hclog "github.com/hashicorp/go-hclog"

	"github.com/salesforce/pyplyn/connector"
)

// UnauthorizedError reports a 401 from the remote or a failed auth exchange.
type UnauthorizedError struct {
	Method  string
	URL     string
	Code    int
	Message string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("remote call failed %s %s [%d]: %s", e.Method, e.URL, e.Code, e.Message)
}

// IsUnauthorized reports whether err is an UnauthorizedError.
func IsUnauthorized(err error) bool {
	var ue *UnauthorizedError
	return errors.As(err, &ue)
}

// Authenticator is implemented by concrete clients; BaseClient serializes
// calls to it.
type Authenticator interface {
	// IsAuthenticated reports whether a valid credential is held.
	IsAuthenticated() bool
	// Auth performs the underlying auth exchange.
	Auth(ctx context.Context) error
	// ResetAuth clears any held credential, forcing the next Authenticate
	// to re-run the exchange.
	ResetAuth()
}

// BaseClient is the shared remote-service handle. Concrete clients embed it
// and register themselves as the Authenticator.
type BaseClient struct {
	logger hclog.Logger
	conn   *connector.Connector
	http   *http.Client

	authLock sync.Mutex
	auth     Authenticator
}

// NewBaseClient builds the HTTP transport from the connector's timeout and
// proxy settings.
func NewBaseClient(conn *connector.Connector, logger hclog.Logger) (*BaseClient, error) {
	transport := cleanhttp.DefaultPooledTransport()
	transport.DialContext = (&net.Dialer{
		Timeout: conn.ConnectTimeoutDuration(),
	}).DialContext
	transport.ResponseHeaderTimeout = conn.ReadTimeoutDuration()

	if conn.ProxyEnabled() {
		proxyURL, err := url.Parse(fmt.Sprintf("http://%s:%d", conn.ProxyHost, conn.ProxyPort))
		if err != nil {
			return nil, fmt.Errorf("invalid proxy for connector %q: %w", conn.ID, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &BaseClient{
		logger: logger,
		conn:   conn,
		http: &http.Client{
			Transport: transport,
			// overall bound covering connect, response wait and body read
			Timeout: conn.ConnectTimeoutDuration() + conn.ReadTimeoutDuration() + conn.WriteTimeoutDuration(),
		},
	}, nil
}

// SetAuthenticator wires the concrete client's auth implementation. Must be
// called before any request is executed.
func (c *BaseClient) SetAuthenticator(a Authenticator) {
	c.auth = a
}

// Connector returns the connector backing this client.
func (c *BaseClient) Connector() *connector.Connector {
	return c.conn
}

// EndpointID identifies the remote endpoint; connector ids are unique.
func (c *BaseClient) EndpointID() string {
	return c.conn.ID
}

// Authenticate ensures the client holds a valid credential. Concurrent
// callers coalesce: the authenticated check is re-evaluated while holding
// the per-client lock, so at most one auth exchange runs while the client is
// unauthenticated and every caller observes its outcome.
func (c *BaseClient) Authenticate(ctx context.Context) error {
	c.authLock.Lock()
	defer c.authLock.Unlock()

	if c.auth.IsAuthenticated() {
		return nil
	}
	return c.auth.Auth(ctx)
}

// IsAuthenticated reports the current auth state.
func (c *BaseClient) IsAuthenticated() bool {
	return c.auth.IsAuthenticated()
}

// ResetAuth drops any held credential.
func (c *BaseClient) ResetAuth() {
	c.auth.ResetAuth()
}

// Do executes one request and classifies the outcome:
//   - 2xx/3xx: the response is returned; the caller must close the body.
//   - 401: the body is discarded and an UnauthorizedError returned.
//   - other >= 400 and I/O errors: logged, (nil, nil) returned so callers
//     substitute their default value. These are never retried.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("error during remote call",
			"method", req.Method, "url", req.URL.String(), "error", err)
		return nil, nil
	}

	if resp.StatusCode < http.StatusBadRequest {
		c.logger.Debug("successful remote call",
			"method", req.Method, "url", req.URL.String(), "status", resp.StatusCode)
		return resp, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, &UnauthorizedError{
			Method:  req.Method,
			URL:     req.URL.String(),
			Code:    resp.StatusCode,
			Message: string(body),
		}
	}

	c.logger.Warn("unsuccessful remote call",
		"method", req.Method, "url", req.URL.String(),
		"status", resp.StatusCode, "response", string(body))
	return nil, nil
}

// RequestFactory builds a fresh request each time it is called, so a retry
// after re-authentication operates on an equivalent clone rather than a
// consumed request.
type RequestFactory func(ctx context.Context) (*http.Request, error)

// Execute runs the request once and decodes the JSON body into T, returning
// defaultOnFailure for transport errors and non-401 HTTP failures. A 401
// surfaces as UnauthorizedError.
func Execute[T any](ctx context.Context, c *BaseClient, build RequestFactory, defaultOnFailure T) (T, error) {
	req, err := build(ctx)
	if err != nil {
		return defaultOnFailure, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return defaultOnFailure, err
	}
	if resp == nil {
		return defaultOnFailure, nil
	}
	defer resp.Body.Close()

	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.logger.Warn("failed to decode response body",
			"method", req.Method, "url", req.URL.String(), "error", err)
		return defaultOnFailure, nil
	}
	return out, nil
}

// ExecuteWithAuthRetry behaves like Execute but, on a 401, resets auth,
// re-authenticates and retries a freshly built request exactly once. A
// second 401 propagates.
func ExecuteWithAuthRetry[T any](ctx context.Context, c *BaseClient, build RequestFactory, defaultOnFailure T) (T, error) {
	out, err := Execute(ctx, c, build, defaultOnFailure)
	if err == nil || !IsUnauthorized(err) {
		return out, err
	}

	c.ResetAuth()
	if err := c.Authenticate(ctx); err != nil {
		return defaultOnFailure, err
	}
	return Execute(ctx, c, build, defaultOnFailure)
}
