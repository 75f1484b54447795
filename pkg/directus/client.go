// Package directus is a small REST client for the CMS admin API. It covers
// the endpoints the operator tools call and nothing else.
package directus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	defaultTimeout = 30 * time.Second
	// refresh a little before the CMS would reject the token
	refreshSkew = 30 * time.Second
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger

	email       string
	password    string
	staticToken string

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

func WithCredentials(email, password string) Option {
	return func(c *Client) {
		c.email = email
		c.password = password
	}
}

// WithStaticToken uses a user's static API token; no login happens.
func WithStaticToken(token string) Option {
	return func(c *Client) { c.staticToken = token }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l.Named("directus")
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// AuthResult is the data of /auth/login and /auth/refresh.
type AuthResult struct {
	AccessToken  string `json:"access_token"`
	Expires      int64  `json:"expires"` // milliseconds
	RefreshToken string `json:"refresh_token"`
}

// Login exchanges the configured email/password for an access token.
func (c *Client) Login(ctx context.Context) (*AuthResult, error) {
	if c.email == "" || c.password == "" {
		return nil, errors.New("directus: no credentials configured")
	}
	body := map[string]string{"email": c.email, "password": c.password}
	var res AuthResult
	if err := c.send(ctx, http.MethodPost, "/auth/login", nil, body, &res, ""); err != nil {
		return nil, fmt.Errorf("login as %s: %w", c.email, err)
	}
	c.storeSession(&res)
	c.log.Debug("logged in", zap.String("email", c.email), zap.Time("expires_at", c.expiresAt))
	return &res, nil
}

// Refresh rotates the session using the refresh token from the last login.
func (c *Client) Refresh(ctx context.Context) (*AuthResult, error) {
	c.mu.Lock()
	rt := c.refreshToken
	c.mu.Unlock()
	if rt == "" {
		return nil, errors.New("directus: no refresh token")
	}
	body := map[string]string{"refresh_token": rt, "mode": "json"}
	var res AuthResult
	if err := c.send(ctx, http.MethodPost, "/auth/refresh", nil, body, &res, ""); err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	c.storeSession(&res)
	return &res, nil
}

func (c *Client) storeSession(res *AuthResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = res.AccessToken
	c.refreshToken = res.RefreshToken
	switch {
	case res.Expires > 0:
		c.expiresAt = time.Now().Add(time.Duration(res.Expires) * time.Millisecond)
	default:
		if exp, err := TokenExpiry(res.AccessToken); err == nil {
			c.expiresAt = exp
		} else {
			c.expiresAt = time.Time{}
		}
	}
}

// ExpiresAt is the expiry of the current session, zero for static tokens.
func (c *Client) ExpiresAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expiresAt
}

// TokenExpiry reads the exp claim of a CMS access token. The signature is
// not checked; the secret lives on the server.
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("parse token: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, errors.New("token has no exp claim")
	}
	return exp.Time, nil
}

// token returns a usable bearer token, logging in or refreshing as needed.
func (c *Client) token(ctx context.Context) (string, error) {
	if c.staticToken != "" {
		return c.staticToken, nil
	}
	c.mu.Lock()
	tok, exp, rt := c.accessToken, c.expiresAt, c.refreshToken
	c.mu.Unlock()

	if tok != "" && (exp.IsZero() || time.Until(exp) > refreshSkew) {
		return tok, nil
	}
	if tok != "" && rt != "" {
		res, err := c.Refresh(ctx)
		if err == nil {
			return res.AccessToken, nil
		}
		c.log.Debug("refresh failed, logging in again", zap.Error(err))
	}
	res, err := c.Login(ctx)
	if err != nil {
		return "", err
	}
	return res.AccessToken, nil
}

type envelope struct {
	Data json.RawMessage `json:"data"`
	Meta *Meta           `json:"meta,omitempty"`
}

// Meta is the optional meta block of list responses.
type Meta struct {
	TotalCount  *int `json:"total_count,omitempty"`
	FilterCount *int `json:"filter_count,omitempty"`
}

// do performs an authenticated call. out receives the "data" member of the
// response. A 401 on a credential session triggers one fresh login.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	_, err := c.doMeta(ctx, method, path, query, body, out)
	return err
}

func (c *Client) doMeta(ctx context.Context, method, path string, query url.Values, body, out any) (*Meta, error) {
	tok, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	meta, err := c.sendMeta(ctx, method, path, query, body, out, tok)
	if IsUnauthorized(err) && c.staticToken == "" {
		c.log.Debug("token rejected, logging in again", zap.String("path", path))
		res, lerr := c.Login(ctx)
		if lerr != nil {
			return nil, lerr
		}
		return c.sendMeta(ctx, method, path, query, body, out, res.AccessToken)
	}
	return meta, err
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body, out any, tok string) error {
	_, err := c.sendMeta(ctx, method, path, query, body, out, tok)
	return err
}

func (c *Client) sendMeta(ctx context.Context, method, path string, query url.Values, body, out any, tok string) (*Meta, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	resp, err := c.request(ctx, method, path, query, rdr, "application/json", tok)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return decode(resp, method, path, out)
}

func (c *Client) request(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType, tok string) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	c.log.Debug("request", zap.String("method", method), zap.String("path", path),
		zap.Int("status", resp.StatusCode), zap.Duration("took", time.Since(start)))
	return resp, nil
}

func decode(resp *http.Response, method, path string, out any) (*Meta, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, parseError(resp.StatusCode, method, path, raw)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return env.Meta, nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return nil, fmt.Errorf("decode %s %s data: %w", method, path, err)
	}
	return env.Meta, nil
}
