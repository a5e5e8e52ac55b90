// Package remote implements the HTTP client for the remote user-record
// store. The remote store is a best-effort collaborator: the local database
// stays authoritative and every remote failure is isolated from the local
// mutation path.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

const defaultTimeout = 15 * time.Second

// User is the wire representation of a user record as the remote store
// exchanges it.
type User struct {
	ID                string                     `json:"id"`
	Username          string                     `json:"username"`
	Email             string                     `json:"email"`
	Password          string                     `json:"password,omitempty"`
	Role              string                     `json:"role"`
	CustomPermissions bool                       `json:"custom_permissions"`
	Permissions       map[string]map[string]bool `json:"permissions,omitempty"`
	Locations         []string                   `json:"locations,omitempty"`
	Active            bool                       `json:"active"`
	ProfilePicture    string                     `json:"profile_picture,omitempty"`
	Notes             string                     `json:"notes,omitempty"`
	CreatedBy         string                     `json:"created_by,omitempty"`
	UpdatedBy         string                     `json:"updated_by,omitempty"`
	CreatedAt         time.Time                  `json:"created_at"`
	UpdatedAt         time.Time                  `json:"updated_at"`
}

// Validation is the remote store's answer to an access-code check.
type Validation struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// Client talks to the remote store over HTTP with a fixed per-call timeout.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient constructs a client for the given base URL. The API key is sent
// as a bearer token on every request.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// GetUsers fetches the full remote user set.
func (c *Client) GetUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.do(ctx, http.MethodGet, "/users", nil, &users); err != nil {
		return nil, err
	}

	return users, nil
}

// CreateUser creates a user remotely and returns the stored record.
func (c *Client) CreateUser(ctx context.Context, user User) (User, error) {
	var out User
	if err := c.do(ctx, http.MethodPost, "/users", user, &out); err != nil {
		return User{}, err
	}

	return out, nil
}

// UpdateUser updates a user remotely and returns the stored record.
func (c *Client) UpdateUser(ctx context.Context, id string, user User) (User, error) {
	var out User
	if err := c.do(ctx, http.MethodPut, "/users/"+url.PathEscape(id), user, &out); err != nil {
		return User{}, err
	}

	return out, nil
}

// DeleteUser deletes a user remotely. Deleting an already-absent user
// reports ErrNotFound, distinguishable from the store being unreachable.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), nil, nil)
}

// ValidateAccessCode asks the remote store whether an access code is valid,
// optionally scoped to one portal.
func (c *Client) ValidateAccessCode(ctx context.Context, code, scopeID string) (Validation, error) {
	payload := map[string]string{"code": code}
	if scopeID != "" {
		payload["scope_id"] = scopeID
	}

	var out Validation
	if err := c.do(ctx, http.MethodPost, "/access-codes/validate", payload, &out); err != nil {
		return Validation{}, err
	}

	return out, nil
}

// do performs one request against the remote store. Transport errors and
// 5xx responses map to ErrUnavailable, a 404 maps to ErrNotFound; other
// non-2xx statuses surface as plain errors.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader

	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode request body")
		}

		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}

	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(ErrUnavailable, err.Error())
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= http.StatusInternalServerError:
		return errors.Wrap(ErrUnavailable, fmt.Sprintf("remote store returned status %d", resp.StatusCode))
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("remote store rejected request with status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response body")
	}

	return nil
}
