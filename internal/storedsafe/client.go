package storedsafe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const tokenHeader = "X-Http-Token"

// Client talks to one StoredSafe server. The zero value is not usable;
// construct with New or fill in BaseURL for tests.
type Client struct {
	BaseURL    string // e.g. https://safe.example.com/api/1.0
	Token      string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// New returns a client for the given server host using the given token.
// The host may include an explicit http:// or https:// scheme; plain
// hostnames default to https.
func New(host, token string, logger *slog.Logger) *Client {
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return &Client{
		BaseURL:    strings.TrimSuffix(host, "/") + "/api/1.0",
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Logger:     logger,
	}
}

// envelope is the response wrapper every StoredSafe endpoint returns.
type envelope struct {
	CallInfo struct {
		Status string           `json:"status"`
		Token  string           `json:"token"`
		Users  []map[string]any `json:"users"`
	} `json:"CALLINFO"`
	Errors []string `json:"ERRORS"`
}

// Check verifies that the client's token is still valid.
func (c *Client) Check() error {
	_, err := c.call(http.MethodPost, "/auth/check", nil)
	return err
}

// Login authenticates with a one-time TOTP code and stores the returned
// token on the client.
func (c *Client) Login(username, passphrase, otp, apikey string) error {
	body := map[string]string{
		"username":   username,
		"passphrase": passphrase,
		"otp":        otp,
		"apikey":     apikey,
		"logintype":  "totp",
	}
	env, err := c.call(http.MethodPost, "/auth", body)
	if err != nil {
		return err
	}
	if env.CallInfo.Token == "" {
		return fmt.Errorf("login succeeded but no token returned")
	}
	c.Token = env.CallInfo.Token
	return nil
}

// ListUsers returns every user account on the server.
func (c *Client) ListUsers() ([]User, error) {
	env, err := c.call(http.MethodGet, "/user", nil)
	if err != nil {
		return nil, err
	}
	users := make([]User, 0, len(env.CallInfo.Users))
	for _, raw := range env.CallInfo.Users {
		user, err := userFromRaw(raw)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// ListActiveUsers returns only the accounts with the active bit set.
func (c *Client) ListActiveUsers() ([]User, error) {
	users, err := c.ListUsers()
	if err != nil {
		return nil, err
	}
	active := FilterActive(users)
	c.Logger.Info("fetched StoredSafe users", "total", len(users), "active", len(active))
	return active, nil
}

// EditUserStatus sets the status field of the given user.
func (c *Client) EditUserStatus(id string, status int) error {
	body := map[string]any{"status": status}
	_, err := c.call(http.MethodPut, "/user/"+url.PathEscape(id), body)
	return err
}

// call performs one API request and decodes the response envelope. Any
// transport error, non-2xx response or ERRORS payload is returned as an
// error; there is no retrying.
func (c *Client) call(method, path string, body any) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set(tokenHeader, c.Token)
	}

	c.Logger.Debug("storedsafe request", "method", method, "path", path)
	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storedsafe %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("storedsafe %s %s: decode response: %w", method, path, err)
	}
	if len(env.Errors) > 0 {
		return nil, fmt.Errorf("storedsafe %s %s: %v", method, path, env.Errors)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("storedsafe %s %s: HTTP %d", method, path, res.StatusCode)
	}
	return &env, nil
}
