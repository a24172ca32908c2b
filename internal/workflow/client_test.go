package workflow

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("workflow-secret")

func TestCall_SignsAndForwards(t *testing.T) {
	subject := uuid.New()
	var gotPath, gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/webhook/", secret, time.Minute)
	out, err := c.Call(context.Background(), SendMessage, map[string]any{"conversationId": "c1", "message": "hi"}, subject)
	require.NoError(t, err)

	assert.JSONEq(t, `{"ok":true}`, string(out))
	assert.Equal(t, "/webhook/send-message", gotPath)
	assert.Equal(t, "hi", gotBody["message"])

	require.True(t, strings.HasPrefix(gotAuth, "Bearer "))
	var claims jwt.RegisteredClaims
	_, err = jwt.ParseWithClaims(strings.TrimPrefix(gotAuth, "Bearer "), &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	require.NoError(t, err)
	assert.Equal(t, subject.String(), claims.Subject)
	assert.WithinDuration(t, time.Now().Add(time.Minute), claims.ExpiresAt.Time, 5*time.Second)
}

func TestCall_PlainTextBodyIsQuoted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("Workflow was started"))
	}))
	defer srv.Close()

	out, err := NewClient(srv.URL, secret, time.Minute).Call(context.Background(), PauseAI, nil, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, `"Workflow was started"`, string(out))
}

func TestCall_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, secret, time.Minute).Call(context.Background(), ResumeAI, nil, uuid.New())

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusInternalServerError, upstream.StatusCode)
	assert.Equal(t, "boom", upstream.Body)
}

func TestCall_NotConfigured(t *testing.T) {
	_, err := NewClient("", secret, time.Minute).Call(context.Background(), SendMessage, nil, uuid.New())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCall_UnknownEndpoint(t *testing.T) {
	_, err := NewClient("http://n8n.invalid", secret, time.Minute).Call(context.Background(), "delete-everything", nil, uuid.New())
	assert.ErrorIs(t, err, ErrUnknownEndpoint)
}

func TestAllowed(t *testing.T) {
	for _, ep := range []string{SendMessage, PauseAI, ResumeAI, TrainKnowledgeBase} {
		assert.True(t, Allowed(ep), ep)
	}
	assert.False(t, Allowed(""))
	assert.False(t, Allowed("../admin"))
}
