// Package workflow forwards side-effect calls to the n8n automation engine.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Endpoints accepted by the proxy.
const (
	SendMessage        = "send-message"
	PauseAI            = "pause-ai"
	ResumeAI           = "resume-ai"
	TrainKnowledgeBase = "train-knowledge-base"
)

var allowed = map[string]bool{
	SendMessage:        true,
	PauseAI:            true,
	ResumeAI:           true,
	TrainKnowledgeBase: true,
}

var (
	// ErrNotConfigured is returned when no engine base URL is set.
	ErrNotConfigured = errors.New("workflow engine not configured")
	// ErrUnknownEndpoint is returned for endpoints outside the allowlist.
	ErrUnknownEndpoint = errors.New("unknown workflow endpoint")
)

// Allowed reports whether endpoint may be forwarded.
func Allowed(endpoint string) bool {
	return allowed[endpoint]
}

// UpstreamError is a non-2xx answer from the engine.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("workflow engine returned %d: %s", e.StatusCode, e.Body)
}

// Request is the payload posted to the proxy.
type Request struct {
	Endpoint string         `json:"endpoint"`
	Data     map[string]any `json:"data"`
}

// Caller forwards a call to the engine.
type Caller interface {
	Call(ctx context.Context, endpoint string, data map[string]any, subject uuid.UUID) (json.RawMessage, error)
}

// Client signs and posts requests to BaseURL/<endpoint>.
type Client struct {
	baseURL    string
	secret     []byte
	ttl        time.Duration
	httpClient *http.Client
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithClock overrides the time source used for token issuance.
func WithClock(now func() time.Time) Option {
	return func(cl *Client) { cl.now = now }
}

// NewClient creates a workflow Client. An empty baseURL yields a client
// whose calls fail with ErrNotConfigured.
func NewClient(baseURL string, secret []byte, ttl time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secret:     secret,
		ttl:        ttl,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call posts data to the engine on behalf of subject and returns the raw
// response body. Non-JSON bodies are wrapped as a JSON string.
func (c *Client) Call(ctx context.Context, endpoint string, data map[string]any, subject uuid.UUID) (json.RawMessage, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}
	if !Allowed(endpoint) {
		return nil, ErrUnknownEndpoint
	}

	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding workflow payload: %w", err)
	}

	token, err := c.token(subject)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building workflow request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling workflow %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading workflow response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("workflow call failed", "endpoint", endpoint, "status", resp.StatusCode)
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return json.RawMessage(`null`), nil
	}
	if !json.Valid(raw) {
		quoted, _ := json.Marshal(string(raw))
		return quoted, nil
	}
	return raw, nil
}

func (c *Client) token(subject uuid.UUID) (string, error) {
	now := c.now()
	claims := jwt.RegisteredClaims{
		Issuer:    "livia",
		Subject:   subject.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("signing workflow token: %w", err)
	}
	return signed, nil
}
