// Package client talks to the LIVIA server and maps every failure onto
// apperr.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/livia-app/livia/internal/apperr"
	"github.com/livia-app/livia/internal/route"
)

// TokenSource supplies the bearer token attached to requests.
type TokenSource interface {
	AccessToken() string
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details any    `json:"details"`
	} `json:"error"`
}

// Client is a JSON client for the server API.
type Client struct {
	baseURL    string
	tokens     TokenSource
	table      *route.Table
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client. Redirect following is always
// disabled so edge redirects reach the caller.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRouteTable overrides the table used to classify redirect targets.
func WithRouteTable(t *route.Table) Option {
	return func(c *Client) { c.table = t }
}

// New creates a Client for baseURL.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		table:      route.Default(),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	hc := *c.httpClient
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	c.httpClient = &hc
	return c
}

// Do sends a request authenticated with the current token and decodes the
// envelope data into out when out is non-nil.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	token := ""
	if c.tokens != nil {
		token = c.tokens.AccessToken()
	}
	return c.DoWithToken(ctx, token, method, path, in, out)
}

// DoWithToken is Do with an explicit token; an empty token sends none.
func (c *Client) DoWithToken(ctx context.Context, token, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return apperr.Normalize(fmt.Errorf("encoding request: %w", err))
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return apperr.Normalize(fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Normalize(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		return c.redirectError(resp)
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Normalize(err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 400 {
			return apperr.FromStatus(resp.StatusCode, "", strings.TrimSpace(string(raw)), nil)
		}
		return apperr.New(apperr.KindUnknown, "INVALID_RESPONSE", "server returned a malformed response")
	}

	if resp.StatusCode >= 400 || env.Error != nil {
		if env.Error == nil {
			return apperr.FromStatus(resp.StatusCode, "", "", nil)
		}
		return apperr.FromStatus(resp.StatusCode, env.Error.Code, env.Error.Message, env.Error.Details)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return apperr.New(apperr.KindUnknown, "INVALID_RESPONSE", "decoding response: "+err.Error())
		}
	}
	return nil
}

// redirectError turns an edge-stage redirect into an access error: a
// redirect to sign-in means no session, any other means wrong area.
func (c *Client) redirectError(resp *http.Response) error {
	loc := resp.Header.Get("Location")
	target := loc
	if u, err := url.Parse(loc); err == nil {
		target = u.Path
	}
	if route.Under(target, c.table.LoginPath()) {
		e := apperr.New(apperr.KindUnauthenticated, "UNAUTHENTICATED", "sign-in required")
		e.Status = resp.StatusCode
		return e
	}
	e := apperr.New(apperr.KindUnauthorized, "FORBIDDEN", "redirected to "+target)
	e.Status = resp.StatusCode
	e.Details = map[string]string{"location": target}
	return e
}
