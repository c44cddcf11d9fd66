package identity

import (
	"context"
	"crypto/ed25519"
	"log/slog"

	"docanchor/internal/platform/metrics"
	"docanchor/pkg/hashing"
)

// Verifier checks that a signature over a content digest was produced by the
// private key behind a resolved identity.
//
// Verify never returns an error: every failure mode resolves to false with a
// diagnostic reason in logs. Callers must treat "could not verify" and
// "verified false" identically; both mean "do not trust".
type Verifier struct {
	resolver Resolver
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// VerifierOption configures the Verifier.
type VerifierOption func(*Verifier)

// WithVerifierLogger sets a logger for diagnostic reasons.
func WithVerifierLogger(logger *slog.Logger) VerifierOption {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// WithVerifierMetrics sets the metrics collector.
func WithVerifierMetrics(m *metrics.Metrics) VerifierOption {
	return func(v *Verifier) {
		v.metrics = m
	}
}

// NewVerifier constructs a Verifier around a live resolver.
func NewVerifier(resolver Resolver, opts ...VerifierOption) *Verifier {
	v := &Verifier{resolver: resolver, logger: slog.Default()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Diagnostic reasons. Surfaced to logs only, never to callers.
const (
	reasonBadDigestLen    = "bad_digest_length"
	reasonBadSignatureLen = "bad_signature_length"
	reasonResolutionFail  = "resolution_failed"
	reasonNoMethod        = "no_verification_method"
	reasonMalformedKey    = "malformed_key_encoding"
	reasonMismatch        = "signature_mismatch"
)

// Verify resolves identity live and checks signature over contentHash.
// contentHash must be exactly 32 bytes and signature exactly 64 bytes.
func (v *Verifier) Verify(ctx context.Context, contentHash, signature []byte, identity string) bool {
	if len(contentHash) != hashing.DigestSize {
		v.reject(ctx, identity, reasonBadDigestLen, nil)
		return false
	}
	if len(signature) != ed25519.SignatureSize {
		v.reject(ctx, identity, reasonBadSignatureLen, nil)
		return false
	}

	// Live resolution on every call so a rotated or revoked key can never be
	// satisfied from a stale copy.
	set, err := v.resolver.Resolve(ctx, identity)
	if err != nil {
		if v.metrics != nil {
			v.metrics.ResolutionFailures.Inc()
		}
		v.reject(ctx, identity, reasonResolutionFail, err)
		return false
	}

	method, ok := set.ByAlgorithm(AlgorithmEd25519)
	if !ok {
		if v.metrics != nil {
			v.metrics.ResolutionFailures.Inc()
		}
		reason := reasonNoMethod
		if set.MalformedCount() > 0 {
			reason = reasonMalformedKey
		}
		v.reject(ctx, identity, reason, nil)
		return false
	}
	if len(method.PublicKey) != ed25519.PublicKeySize {
		v.reject(ctx, identity, reasonMalformedKey, nil)
		return false
	}

	if !ed25519.Verify(ed25519.PublicKey(method.PublicKey), contentHash, signature) {
		v.reject(ctx, identity, reasonMismatch, nil)
		return false
	}
	return true
}

func (v *Verifier) reject(ctx context.Context, identity, reason string, err error) {
	attrs := []any{"identity", identity, "reason", reason}
	if err != nil {
		attrs = append(attrs, "error", err.Error())
	}
	v.logger.WarnContext(ctx, "signature verification rejected", attrs...)
}
