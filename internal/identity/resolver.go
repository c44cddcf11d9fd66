// Package identity integrates with the decentralized identity network: live
// resolution of verification methods and signature verification against them.
package identity

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"docanchor/pkg/platform/sentinel"
)

// KeyAlgorithm identifies a supported signature algorithm. Verification
// methods are selected by exact algorithm lookup, never by scanning.
type KeyAlgorithm string

const (
	// AlgorithmEd25519 is the only algorithm proofs are currently signed with.
	AlgorithmEd25519 KeyAlgorithm = "Ed25519"
)

// VerificationMethod is one resolved public key, already decoded to raw bytes.
type VerificationMethod struct {
	ID        string
	Algorithm KeyAlgorithm
	PublicKey []byte
}

// MethodSet is the result of resolving an identity: verification methods
// keyed by algorithm. Resolution is always live; a MethodSet must never be
// retained across requests, or a rotated key could satisfy a stale copy.
type MethodSet struct {
	methods   map[KeyAlgorithm]VerificationMethod
	malformed int
}

// NewMethodSet builds a MethodSet from already-decoded methods. Intended for
// resolver fakes in tests; production sets come from Resolve.
func NewMethodSet(methods ...VerificationMethod) MethodSet {
	set := MethodSet{methods: make(map[KeyAlgorithm]VerificationMethod, len(methods))}
	for _, m := range methods {
		if _, exists := set.methods[m.Algorithm]; !exists {
			set.methods[m.Algorithm] = m
		}
	}
	return set
}

// ByAlgorithm returns the verification method for the given algorithm.
func (s MethodSet) ByAlgorithm(alg KeyAlgorithm) (VerificationMethod, bool) {
	m, ok := s.methods[alg]
	return m, ok
}

// MalformedCount reports how many declared methods had undecodable key
// material. Used only for diagnostics.
func (s MethodSet) MalformedCount() int {
	return s.malformed
}

// Resolver resolves an identity to its current verification methods.
type Resolver interface {
	Resolve(ctx context.Context, identity string) (MethodSet, error)
}

// HTTPResolver queries a universal-resolver-style endpoint:
// GET {base}/1.0/identifiers/{did}.
type HTTPResolver struct {
	baseURL string
	client  *http.Client
}

// NewHTTPResolver constructs a resolver client. The client is built once at
// process start and injected; there is no lazily-initialized shared global.
func NewHTTPResolver(baseURL string, timeout time.Duration) *HTTPResolver {
	return &HTTPResolver{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// didDocument mirrors the subset of a DID document this service consumes.
type didDocument struct {
	VerificationMethod []struct {
		ID           string          `json:"id"`
		Type         string          `json:"type"`
		PublicKeyJwk json.RawMessage `json:"publicKeyJwk,omitempty"`
		PublicKeyHex string          `json:"publicKeyHex,omitempty"`
	} `json:"verificationMethod"`
}

type resolutionEnvelope struct {
	DIDDocument json.RawMessage `json:"didDocument"`
}

// Resolve fetches the identity's DID document and indexes its verification
// methods by algorithm. Methods with undecodable key material are counted and
// skipped rather than failing the whole resolution.
func (r *HTTPResolver) Resolve(ctx context.Context, identity string) (MethodSet, error) {
	endpoint := fmt.Sprintf("%s/1.0/identifiers/%s", r.baseURL, url.PathEscape(identity))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return MethodSet{}, fmt.Errorf("build resolve request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return MethodSet{}, fmt.Errorf("resolve %s: %w: %v", identity, sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return MethodSet{}, fmt.Errorf("resolve %s: %w", identity, sentinel.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return MethodSet{}, fmt.Errorf("resolve %s: %w: status %d", identity, sentinel.ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return MethodSet{}, fmt.Errorf("read resolution body: %w", err)
	}

	// Universal resolvers wrap the document in an envelope; direct resolvers
	// return it bare. Accept both.
	docRaw := body
	var envelope resolutionEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.DIDDocument) > 0 {
		docRaw = envelope.DIDDocument
	}

	var doc didDocument
	if err := json.Unmarshal(docRaw, &doc); err != nil {
		return MethodSet{}, fmt.Errorf("parse did document: %w", err)
	}

	set := MethodSet{methods: make(map[KeyAlgorithm]VerificationMethod)}
	for _, m := range doc.VerificationMethod {
		alg, ok := algorithmForType(m.Type)
		if !ok {
			continue
		}
		key, err := decodeKeyMaterial(m.PublicKeyJwk, m.PublicKeyHex)
		if err != nil {
			set.malformed++
			continue
		}
		// First declared method per algorithm wins, matching resolver order.
		if _, exists := set.methods[alg]; !exists {
			set.methods[alg] = VerificationMethod{ID: m.ID, Algorithm: alg, PublicKey: key}
		}
	}
	return set, nil
}

// algorithmForType maps declared method types to algorithm identifiers. This
// is the typed keyed lookup: unknown types are ignored, not probed.
func algorithmForType(methodType string) (KeyAlgorithm, bool) {
	switch methodType {
	case "Ed25519VerificationKey2018", "Ed25519VerificationKey2020", "JsonWebKey2020":
		return AlgorithmEd25519, true
	default:
		return "", false
	}
}

type jwk struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
}

func decodeKeyMaterial(jwkRaw json.RawMessage, hexKey string) ([]byte, error) {
	if len(jwkRaw) > 0 {
		var k jwk
		if err := json.Unmarshal(jwkRaw, &k); err != nil {
			return nil, fmt.Errorf("parse jwk: %w", err)
		}
		if k.Kty != "OKP" || k.Crv != "Ed25519" {
			return nil, fmt.Errorf("unsupported jwk %s/%s", k.Kty, k.Crv)
		}
		key, err := base64.RawURLEncoding.DecodeString(k.X)
		if err != nil {
			return nil, fmt.Errorf("decode jwk x: %w", err)
		}
		return key, nil
	}
	if hexKey != "" {
		key, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("decode hex key: %w", err)
		}
		return key, nil
	}
	return nil, fmt.Errorf("no key material")
}
