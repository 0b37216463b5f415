package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoadmin-control/internal/domain"
)

func newTestRouter(catalog CatalogService, users UserService) http.Handler {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics\n"))
	})
	h := NewHandler(catalog, users, metrics, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return NewRouter(h, RouterOptions{CORSAllowedOrigins: []string{"*"}})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthzAndMetrics(t *testing.T) {
	h := newTestRouter(&mockCatalog{}, &mockUsers{})

	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# metrics")
}

func TestListProviders_Paginates(t *testing.T) {
	var gotPage domain.PageRequest
	catalog := &mockCatalog{
		ListProvidersFn: func(_ context.Context, page domain.PageRequest) ([]domain.Provider, int64, error) {
			gotPage = page
			return []domain.Provider{{ID: "p1", ProviderID: "ch.bafu", Acronym: domain.Translations{De: "BAFU"}}}, 3, nil
		},
	}
	h := newTestRouter(catalog, &mockUsers{})

	rec := do(t, h, http.MethodGet, "/providers?max_results=1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, gotPage.MaxResults)
	var page Page[Provider]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "ch.bafu", page.Items[0].ProviderID)
	assert.Equal(t, "BAFU", page.Items[0].Acronym.De)
	assert.NotEmpty(t, page.NextPageToken)
}

func TestListProviders_InvalidMaxResults(t *testing.T) {
	h := newTestRouter(&mockCatalog{}, &mockUsers{})

	rec := do(t, h, http.MethodGet, "/providers?max_results=abc", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDataset_NotFound(t *testing.T) {
	catalog := &mockCatalog{
		GetDatasetFn: func(_ context.Context, datasetID string) (*domain.Dataset, error) {
			return nil, domain.ErrNotFound("dataset %q not found", datasetID)
		},
	}
	h := newTestRouter(catalog, &mockUsers{})

	rec := do(t, h, http.MethodGet, "/datasets/ch.bafu.wald", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `dataset \"ch.bafu.wald\" not found`)
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", domain.ErrNotFound("x"), http.StatusNotFound},
		{"validation", domain.ErrValidation("x"), http.StatusBadRequest},
		{"conflict", domain.ErrConflict("x"), http.StatusConflict},
		{"unavailable", domain.ErrUnavailable("cognito", errors.New("dial tcp")), http.StatusServiceUnavailable},
		{"wrapped unavailable", errors.Join(errors.New("create user"), domain.ErrUnavailable("cognito", errors.New("timeout"))), http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, httpStatusFromDomainError(tt.err))
		})
	}
}

func TestInternalErrorHidesMessage(t *testing.T) {
	catalog := &mockCatalog{
		ListDistributionsFn: func(context.Context, domain.PageRequest) ([]domain.PackageDistribution, int64, error) {
			return nil, 0, errors.New("sql: database is closed")
		},
	}
	h := newTestRouter(catalog, &mockUsers{})

	rec := do(t, h, http.MethodGet, "/distributions", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "database is closed")
}

func TestCreateUser(t *testing.T) {
	var got domain.CreateUserRequest
	users := &mockUsers{
		CreateFn: func(_ context.Context, req domain.CreateUserRequest) (*domain.User, error) {
			got = req
			return &domain.User{Username: req.Username, Email: req.Email, ProviderID: req.ProviderID}, nil
		},
	}
	h := newTestRouter(&mockCatalog{}, users)

	rec := do(t, h, http.MethodPost, "/users", `{"username":"jdoe","first_name":"Jane","last_name":"Doe","email":"jane@example.com","provider_id":"p1"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Jane", got.FirstName)
	var u User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
	assert.Equal(t, "jdoe", u.Username)
}

func TestCreateUser_RejectsUnknownFields(t *testing.T) {
	h := newTestRouter(&mockCatalog{}, &mockUsers{})

	rec := do(t, h, http.MethodPost, "/users", `{"username":"jdoe","admin":true}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateUser_IdentityProviderUnavailable(t *testing.T) {
	users := &mockUsers{
		CreateFn: func(context.Context, domain.CreateUserRequest) (*domain.User, error) {
			return nil, domain.ErrUnavailable("cognito", errors.New("connection refused"))
		},
	}
	h := newTestRouter(&mockCatalog{}, users)

	rec := do(t, h, http.MethodPost, "/users", `{"username":"jdoe","email":"jane@example.com","provider_id":"p1"}`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUpdateUser_PartialBody(t *testing.T) {
	var got domain.UpdateUserRequest
	users := &mockUsers{
		UpdateFn: func(_ context.Context, username string, req domain.UpdateUserRequest) (*domain.User, error) {
			got = req
			return &domain.User{Username: username, Email: *req.Email}, nil
		},
	}
	h := newTestRouter(&mockCatalog{}, users)

	rec := do(t, h, http.MethodPut, "/users/jdoe", `{"email":"new@example.com"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got.Email)
	assert.Equal(t, "new@example.com", *got.Email)
	assert.Nil(t, got.FirstName)
}

func TestDeleteUser(t *testing.T) {
	var deleted string
	users := &mockUsers{
		DeleteFn: func(_ context.Context, username string) error {
			deleted = username
			return nil
		},
	}
	h := newTestRouter(&mockCatalog{}, users)

	rec := do(t, h, http.MethodDelete, "/users/jdoe", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "jdoe", deleted)
}
