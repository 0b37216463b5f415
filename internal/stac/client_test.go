package stac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoadmin-control/internal/domain"
)

func TestCollections_FollowsNextLinks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/collections", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		if r.URL.Query().Get("cursor") == "2" {
			_, _ = w.Write([]byte(`{"collections":[{"id":"ch.b","providers":[{"name":"B"}]}],"links":[{"rel":"self","href":"x"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"collections":[{"id":"ch.a","title":"A","providers":[{"name":"Prov A","roles":["producer"]}]}],
			"links":[{"rel":"next","href":"collections?cursor=2"}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL + "/api/", RateLimit: 100})
	require.NoError(t, err)

	cols, err := c.Collections(context.Background())
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "ch.a", cols[0].ID)
	assert.Equal(t, []Provider{{Name: "Prov A", Roles: []string{"producer"}}}, cols[0].Providers)
	assert.Equal(t, "ch.b", cols[1].ID)
}

func TestCollections_PaginationLoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"collections":[],"links":[{"rel":"next","href":"/collections"}]}`))
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Collections(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pagination loop")
}

func TestCollections_ServerErrorIsUnavailable(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Collections(context.Background())
	var unavailable *domain.UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "stac", unavailable.Service)
}

func TestCollections_BreakerOpensAfterFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL})
	require.NoError(t, err)

	for i := 0; i < 7; i++ {
		_, err = c.Collections(context.Background())
		require.Error(t, err)
	}
	assert.Equal(t, int32(5), hits.Load(), "open breaker rejects without calling the server")

	var unavailable *domain.UnavailableError
	require.ErrorAs(t, err, &unavailable)
}

func TestCollections_ClientErrorIsNotUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Collections(context.Background())
	require.Error(t, err)
	var unavailable *domain.UnavailableError
	assert.False(t, errors.As(err, &unavailable))
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New(Options{BaseURL: "not a url"})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
}
