package webservice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/marmos91/hostkit/pkg/deployment"
	"github.com/marmos91/hostkit/pkg/identity"
)

func echoService(name, path string) Service {
	return NewService(name, path, func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			WriteJSON(w, http.StatusOK, map[string]string{"service": name})
		})
		r.Post("/echo", func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Msg string `json:"msg"`
			}
			if !DecodeJSON(w, r, &body) {
				return
			}
			WriteJSON(w, http.StatusOK, body)
		})
	})
}

func build(t *testing.T, app *App, id identity.Manager) http.Handler {
	t.Helper()
	h, err := app.Build(context.Background(), &deployment.Info{Name: "WEBSERVICE", Identity: id})
	require.NoError(t, err)
	return h
}

func do(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

// ============================================================================
// Routing
// ============================================================================

func TestApp_RoutesServices(t *testing.T) {
	t.Parallel()

	h := build(t, New([]Service{echoService("status", "/status"), echoService("users", "/users")}), nil)

	w := do(h, httptest.NewRequest(http.MethodGet, "/users/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ApplicationJSONUTF8, w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"service":"users"}`, w.Body.String())

	w = do(h, httptest.NewRequest(http.MethodPost, "/status/echo", strings.NewReader(`{"msg":"hi"}`)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"msg":"hi"}`, w.Body.String())
}

func TestApp_Problems(t *testing.T) {
	t.Parallel()

	h := build(t, New([]Service{echoService("status", "/status")}), nil)

	w := do(h, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ApplicationProblemJSON, w.Header().Get("Content-Type"))

	var p Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, http.StatusNotFound, p.Status)
	assert.Equal(t, "/nowhere", p.Instance)

	w = do(h, httptest.NewRequest(http.MethodDelete, "/status/echo", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = do(h, httptest.NewRequest(http.MethodPost, "/status/echo", strings.NewReader(`{"unknown":1}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApp_BuildErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		services []Service
	}{
		{"none", nil},
		{"relative path", []Service{echoService("a", "a")}},
		{"duplicate name", []Service{echoService("a", "/a"), echoService("a", "/b")}},
		{"duplicate path", []Service{echoService("a", "/a"), echoService("b", "/a")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.services).Build(context.Background(), &deployment.Info{Name: "WEBSERVICE"})
			assert.Error(t, err)
		})
	}
}

func TestApp_FiltersAndIdentity(t *testing.T) {
	t.Parallel()

	hash, err := identity.HashPasswordWithCost("s3cret-pass", bcrypt.MinCost)
	require.NoError(t, err)
	m, err := identity.NewStaticManager("api", []identity.User{{Username: "svc", PasswordHash: hash}})
	require.NoError(t, err)

	var order []string
	filter := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, identity.PrincipalFromContext(r.Context()).Name)
			next.ServeHTTP(w, r)
		})
	}

	h := build(t, New([]Service{echoService("status", "/status")}, filter), m)

	w := do(h, httptest.NewRequest(http.MethodGet, "/status/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, order)

	r := httptest.NewRequest(http.MethodGet, "/status/", nil)
	r.SetBasicAuth("svc", "s3cret-pass")
	w = do(h, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"svc"}, order, "filters run after authentication")
}

func TestWriteProblem_NilRequest(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	WriteProblem(w, nil, http.StatusConflict, "busy")

	var p Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, "Conflict", p.Title)
	assert.Empty(t, p.Instance)
}
