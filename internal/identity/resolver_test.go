package identity

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docanchor/pkg/platform/sentinel"
)

func newKey(t *testing.T) ed25519.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return pub
}

func jwkDoc(pub ed25519.PublicKey) string {
	x := base64.RawURLEncoding.EncodeToString(pub)
	return fmt.Sprintf(`{
		"verificationMethod": [
			{"id": "did:example:abc#key-1", "type": "Ed25519VerificationKey2020",
			 "publicKeyJwk": {"kty": "OKP", "crv": "Ed25519", "x": %q}}
		]
	}`, x)
}

func resolverFor(t *testing.T, handler http.HandlerFunc) (*HTTPResolver, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPResolver(srv.URL, 2*time.Second), srv
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("bare did document with jwk key", func(t *testing.T) {
		pub := newKey(t)
		r, _ := resolverFor(t, func(w http.ResponseWriter, req *http.Request) {
			assert.Equal(t, "/1.0/identifiers/did:example:abc", req.URL.Path)
			fmt.Fprint(w, jwkDoc(pub))
		})

		set, err := r.Resolve(ctx, "did:example:abc")
		require.NoError(t, err)
		method, ok := set.ByAlgorithm(AlgorithmEd25519)
		require.True(t, ok)
		assert.Equal(t, []byte(pub), method.PublicKey)
	})

	t.Run("universal resolver envelope", func(t *testing.T) {
		pub := newKey(t)
		r, _ := resolverFor(t, func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprintf(w, `{"didDocument": %s}`, jwkDoc(pub))
		})

		set, err := r.Resolve(ctx, "did:example:abc")
		require.NoError(t, err)
		_, ok := set.ByAlgorithm(AlgorithmEd25519)
		assert.True(t, ok)
	})

	t.Run("hex-encoded key material", func(t *testing.T) {
		pub := newKey(t)
		r, _ := resolverFor(t, func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprintf(w, `{"verificationMethod": [
				{"id": "did:example:abc#key-1", "type": "Ed25519VerificationKey2018",
				 "publicKeyHex": %q}
			]}`, hex.EncodeToString(pub))
		})

		set, err := r.Resolve(ctx, "did:example:abc")
		require.NoError(t, err)
		method, ok := set.ByAlgorithm(AlgorithmEd25519)
		require.True(t, ok)
		assert.Equal(t, []byte(pub), method.PublicKey)
	})

	t.Run("first declared method per algorithm wins", func(t *testing.T) {
		first := newKey(t)
		second := newKey(t)
		r, _ := resolverFor(t, func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprintf(w, `{"verificationMethod": [
				{"id": "#key-1", "type": "Ed25519VerificationKey2018", "publicKeyHex": %q},
				{"id": "#key-2", "type": "Ed25519VerificationKey2018", "publicKeyHex": %q}
			]}`, hex.EncodeToString(first), hex.EncodeToString(second))
		})

		set, err := r.Resolve(ctx, "did:example:abc")
		require.NoError(t, err)
		method, _ := set.ByAlgorithm(AlgorithmEd25519)
		assert.Equal(t, "#key-1", method.ID)
	})

	t.Run("unknown method types are ignored", func(t *testing.T) {
		r, _ := resolverFor(t, func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"verificationMethod": [
				{"id": "#key-1", "type": "EcdsaSecp256k1VerificationKey2019", "publicKeyHex": "00"}
			]}`)
		})

		set, err := r.Resolve(ctx, "did:example:abc")
		require.NoError(t, err)
		_, ok := set.ByAlgorithm(AlgorithmEd25519)
		assert.False(t, ok)
		assert.Zero(t, set.MalformedCount())
	})

	t.Run("malformed key material is counted, not fatal", func(t *testing.T) {
		r, _ := resolverFor(t, func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"verificationMethod": [
				{"id": "#key-1", "type": "Ed25519VerificationKey2020", "publicKeyHex": "not-hex"}
			]}`)
		})

		set, err := r.Resolve(ctx, "did:example:abc")
		require.NoError(t, err)
		_, ok := set.ByAlgorithm(AlgorithmEd25519)
		assert.False(t, ok)
		assert.Equal(t, 1, set.MalformedCount())
	})

	t.Run("unknown identity maps to not found", func(t *testing.T) {
		r, _ := resolverFor(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		_, err := r.Resolve(ctx, "did:example:missing")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("resolver outage maps to unavailable", func(t *testing.T) {
		r, _ := resolverFor(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := r.Resolve(ctx, "did:example:abc")
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	})
}
