package trustregistry

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func clientFor(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, 2*time.Second)
}

func TestIsTrusted(t *testing.T) {
	ctx := context.Background()

	t.Run("registered trusted issuer", func(t *testing.T) {
		c := clientFor(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/issuers/did:example:abc", r.URL.Path)
			fmt.Fprint(w, `{"trusted": true}`)
		})
		assert.True(t, c.IsTrusted(ctx, "did:example:abc"))
	})

	t.Run("registered untrusted issuer", func(t *testing.T) {
		c := clientFor(t, func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"trusted": false}`)
		})
		assert.False(t, c.IsTrusted(ctx, "did:example:abc"))
	})

	t.Run("unknown issuer degrades to false", func(t *testing.T) {
		c := clientFor(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		assert.False(t, c.IsTrusted(ctx, "did:example:abc"))
	})

	t.Run("registry outage degrades to false, never errors", func(t *testing.T) {
		c := clientFor(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		assert.False(t, c.IsTrusted(ctx, "did:example:abc"))
	})

	t.Run("malformed registry body degrades to false", func(t *testing.T) {
		c := clientFor(t, func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"trusted": "yes"}`)
		})
		assert.False(t, c.IsTrusted(ctx, "did:example:abc"))
	})

	t.Run("unconfigured registry is always false", func(t *testing.T) {
		c := New("", time.Second)
		assert.False(t, c.IsTrusted(ctx, "did:example:abc"))
	})
}
