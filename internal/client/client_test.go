package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livia-app/livia/internal/apperr"
	"github.com/livia-app/livia/internal/auth"
)

type staticToken string

func (s staticToken) AccessToken() string { return string(s) }

type widget struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type widgetPatch struct {
	Name *string `json:"name,omitempty"`
}

func writeEnvelope(w http.ResponseWriter, status int, data any, errCode, errMsg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	env := map[string]any{"data": data, "error": nil, "meta": map[string]string{"requestId": "r1"}}
	if errCode != "" {
		env["error"] = map[string]any{"code": errCode, "message": errMsg}
	}
	_ = json.NewEncoder(w).Encode(env)
}

func TestDo_DecodesDataAndSendsBearer(t *testing.T) {
	id := uuid.New()
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeEnvelope(w, http.StatusOK, widget{ID: id, Name: "w"}, "", "")
	}))
	defer srv.Close()

	c := New(srv.URL, staticToken("tok"))
	var out widget
	require.NoError(t, c.Do(context.Background(), http.MethodGet, "/dashboard/widgets/"+id.String(), nil, &out))

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, id, out.ID)
}

func TestDo_MapsEnvelopeErrors(t *testing.T) {
	tests := []struct {
		status int
		code   string
		kind   apperr.Kind
	}{
		{http.StatusBadRequest, "VALIDATION_ERROR", apperr.KindValidation},
		{http.StatusUnauthorized, "UNAUTHORIZED", apperr.KindUnauthenticated},
		{http.StatusForbidden, "FORBIDDEN", apperr.KindUnauthorized},
		{http.StatusNotFound, "NOT_FOUND", apperr.KindNotFound},
		{http.StatusBadGateway, "WORKFLOW_ERROR", apperr.KindNetwork},
		{http.StatusInternalServerError, "INTERNAL_ERROR", apperr.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				writeEnvelope(w, tt.status, nil, tt.code, "nope")
			}))
			defer srv.Close()

			err := New(srv.URL, nil).Do(context.Background(), http.MethodGet, "/x", nil, nil)
			var ae *apperr.Error
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, tt.kind, ae.Kind)
			assert.Equal(t, tt.status, ae.Status)
			assert.Equal(t, tt.code, ae.Code)
			assert.Equal(t, "nope", ae.Message)
		})
	}
}

func TestDo_RedirectToLoginIsUnauthenticated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}))
	defer srv.Close()

	err := New(srv.URL, nil).Do(context.Background(), http.MethodGet, "/dashboard/agents", nil, nil)
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
}

func TestDo_RedirectElsewhereIsUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	}))
	defer srv.Close()

	err := New(srv.URL, nil).Do(context.Background(), http.MethodGet, "/admin/tenants", nil, nil)
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.KindUnauthorized, ae.Kind)
	assert.Equal(t, map[string]string{"location": "/dashboard"}, ae.Details)
}

func TestDo_TransportErrorIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := New(url, nil).Do(context.Background(), http.MethodGet, "/x", nil, nil)
	assert.True(t, apperr.Is(err, apperr.KindNetwork))
}

func TestCollection_RoutesUnderAreaRoot(t *testing.T) {
	tenantID := uuid.New()
	id := uuid.New()
	var calls []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.RequestURI())
		switch r.Method {
		case http.MethodGet:
			if r.URL.Path == "/admin/widgets" {
				writeEnvelope(w, http.StatusOK, []widget{{ID: id, Name: "a"}}, "", "")
				return
			}
			writeEnvelope(w, http.StatusOK, widget{ID: id, Name: "a"}, "", "")
		case http.MethodPatch:
			var p widgetPatch
			_ = json.NewDecoder(r.Body).Decode(&p)
			writeEnvelope(w, http.StatusOK, widget{ID: id, Name: *p.Name}, "", "")
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		case http.MethodPost:
			writeEnvelope(w, http.StatusCreated, widget{ID: id, Name: "new"}, "", "")
		}
	}))
	defer srv.Close()

	col := NewCollection[widget, widget, widgetPatch](New(srv.URL, nil), func() string { return "/admin" }, "widgets")
	ctx := context.Background()

	list, err := col.List(ctx, Scope{TenantID: &tenantID})
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = col.Get(ctx, id)
	require.NoError(t, err)

	name := "renamed"
	updated, err := col.Update(ctx, id, widgetPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)

	created, err := col.Create(ctx, widget{Name: "new"})
	require.NoError(t, err)
	assert.Equal(t, "new", created.Name)

	require.NoError(t, col.Delete(ctx, id))

	assert.Equal(t, []string{
		"GET /admin/widgets?tenantId=" + tenantID.String(),
		"GET /admin/widgets/" + id.String(),
		"PATCH /admin/widgets/" + id.String(),
		"POST /admin/widgets",
		"DELETE /admin/widgets/" + id.String(),
	}, calls)
}

func TestFetchProfile(t *testing.T) {
	userID := uuid.New()

	t.Run("found", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeEnvelope(w, http.StatusOK, auth.Principal{ID: userID, Role: auth.RoleSuperAdmin, IsActive: true}, "", "")
		}))
		defer srv.Close()

		p, err := New(srv.URL, staticToken("t")).FetchProfile(context.Background(), userID)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, auth.RoleSuperAdmin, p.Role)
	})

	t.Run("missing", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeEnvelope(w, http.StatusNotFound, nil, "NOT_FOUND", "profile not found")
		}))
		defer srv.Close()

		p, err := New(srv.URL, staticToken("t")).FetchProfile(context.Background(), userID)
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("other user", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeEnvelope(w, http.StatusOK, auth.Principal{ID: uuid.New(), Role: auth.RoleSuperAdmin}, "", "")
		}))
		defer srv.Close()

		p, err := New(srv.URL, staticToken("t")).FetchProfile(context.Background(), userID)
		require.NoError(t, err)
		assert.Nil(t, p)
	})
}
