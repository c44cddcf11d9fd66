// Package service implements the anchoring orchestrator: the anchor and
// verify workflows over the identity, ledger, registry, and index adapters.
package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"docanchor/internal/anchor/models"
	"docanchor/internal/ledger"
	"docanchor/internal/orgs"
	"docanchor/internal/platform/metrics"
	"docanchor/internal/proofindex/store"
	dErrors "docanchor/pkg/domain-errors"
	"docanchor/pkg/hashing"
	"docanchor/pkg/platform/sentinel"
	"docanchor/pkg/requestcontext"
)

// SignatureVerifier proves private-key possession for an identity. It never
// errors: false covers both "invalid" and "unverifiable".
type SignatureVerifier interface {
	Verify(ctx context.Context, contentHash, signature []byte, identity string) bool
}

// TrustChecker reports the registry trust flag, best-effort.
type TrustChecker interface {
	IsTrusted(ctx context.Context, identity string) bool
}

// Service orchestrates the anchor and verify workflows. All collaborators are
// constructed once at process start and injected; the service holds no
// network state of its own and no cross-request mutable state besides the
// injected index.
type Service struct {
	index     store.Store
	bindings  orgs.Bindings
	verifier  SignatureVerifier
	submitter ledger.Submitter
	mirror    ledger.Reconciler
	registry  TrustChecker
	topic     string
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs the orchestrator. Every collaborator is required.
func New(
	index store.Store,
	bindings orgs.Bindings,
	verifier SignatureVerifier,
	submitter ledger.Submitter,
	mirror ledger.Reconciler,
	registry TrustChecker,
	topic string,
	opts ...Option,
) (*Service, error) {
	if index == nil {
		return nil, fmt.Errorf("proof index store is required")
	}
	if bindings == nil {
		return nil, fmt.Errorf("organization bindings are required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("signature verifier is required")
	}
	if submitter == nil {
		return nil, fmt.Errorf("consensus submitter is required")
	}
	if mirror == nil {
		return nil, fmt.Errorf("mirror reconciler is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("trust registry client is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("ledger topic is required")
	}

	svc := &Service{
		index:     index,
		bindings:  bindings,
		verifier:  verifier,
		submitter: submitter,
		mirror:    mirror,
		registry:  registry,
		topic:     topic,
		logger:    slog.Default(),
		tracer:    otel.Tracer("docanchor/anchor"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Anchor runs the anchor workflow:
//
//	RECEIVED → SIGNATURE_VERIFIED → OWNERSHIP_VERIFIED → DEDUP_CHECKED →
//	SUBMITTED → INDEXED → DONE
//
// Signature verification comes before every other check or mutation: nothing
// about the claimed identity is trusted until private-key possession is
// proven. On a duplicate hash the workflow terminates as a no-op, returning
// the existing proof together with a CodeConflict error so callers can tell
// the two success shapes apart.
func (s *Service) Anchor(ctx context.Context, req models.AnchorRequest) (*models.DocumentProof, error) {
	ctx, span := s.tracer.Start(ctx, "anchor",
		trace.WithAttributes(attribute.String("hash_prefix", hashing.Prefix(req.ContentHash))))
	defer span.End()

	state := models.StateReceived

	if err := req.Validate(); err != nil {
		s.fail(ctx, state, err)
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid anchor request")
	}

	hashRaw, ok := hashing.Decode(req.ContentHash)
	if !ok {
		// Validate already guarantees shape; kept as a guard for direct calls.
		s.fail(ctx, state, fmt.Errorf("undecodable content hash"))
		return nil, dErrors.New(dErrors.CodeValidation, "invalid content hash")
	}
	sigRaw, err := hex.DecodeString(req.Signature)
	if err != nil {
		s.fail(ctx, state, err)
		return nil, dErrors.New(dErrors.CodeValidation, "invalid signature encoding")
	}

	// Step 1: cryptographic proof of private-key possession, before any
	// ownership lookup, dedup check, or write.
	if !s.verifier.Verify(ctx, hashRaw, sigRaw, req.Identity) {
		s.fail(ctx, state, fmt.Errorf("signature not verifiable"))
		s.countAnchor("rejected")
		return nil, dErrors.New(dErrors.CodeForbidden, "signature verification failed")
	}
	state = s.advance(ctx, req.ContentHash, models.StateSignatureVerified)

	// Step 2: attribution. A valid signature proves key possession but not
	// that the key belongs to the calling organization; this check keeps Org A
	// from anchoring proofs billed and attributed to Org B.
	callerOrg := requestcontext.OrgID(ctx)
	if callerOrg == "" {
		s.fail(ctx, state, fmt.Errorf("unauthenticated caller"))
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller is not authenticated")
	}
	boundOrg, err := s.bindings.OrgForIdentity(ctx, req.Identity)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.fail(ctx, state, err)
			s.countAnchor("rejected")
			return nil, dErrors.New(dErrors.CodeForbidden, "identity is not bound to any organization")
		}
		s.fail(ctx, state, err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve identity binding")
	}
	if boundOrg != callerOrg {
		s.fail(ctx, state, fmt.Errorf("identity bound to another organization"))
		s.countAnchor("rejected")
		return nil, dErrors.New(dErrors.CodeForbidden, "identity is not bound to the calling organization")
	}
	state = s.advance(ctx, req.ContentHash, models.StateOwnershipVerified)

	// Step 3: dedup fast path. Also the re-check that makes caller retries
	// after an ambiguous submission timeout safe.
	if existing, err := s.index.GetByHash(ctx, req.ContentHash); err == nil {
		s.advance(ctx, req.ContentHash, models.StateDone)
		s.countAnchor("conflict")
		return existing, dErrors.New(dErrors.CodeConflict, "document already anchored")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		s.fail(ctx, state, err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "proof index lookup failed")
	}
	state = s.advance(ctx, req.ContentHash, models.StateDedupChecked)

	// Step 4: consensus submission. Once issued this is committed work; no
	// cancellation propagates past this point.
	payload, err := models.ProofMessage{
		Hash:      req.ContentHash,
		DID:       req.Identity,
		Signature: req.Signature,
	}.Encode()
	if err != nil {
		s.fail(ctx, state, err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode proof message")
	}

	receipt, err := s.submitter.Submit(ctx, s.topic, payload)
	if err != nil {
		s.fail(ctx, state, err)
		s.countAnchor("failed")
		if errors.Is(err, sentinel.ErrRejected) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "consensus log rejected the submission")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "consensus log unavailable")
	}
	state = s.advance(ctx, req.ContentHash, models.StateSubmitted)

	// Step 5: persist the index row. Existence of the row is a strict causal
	// consequence of consensus success, never the reverse.
	proof := &models.DocumentProof{
		ID:                 uuid.New(),
		ContentHash:        req.ContentHash,
		TransactionID:      receipt.TransactionID,
		ConsensusTimestamp: receipt.ConsensusTimestamp,
		IssuerIdentity:     req.Identity,
		CreatedAt:          requestcontext.Now(ctx),
	}
	if err := s.index.Insert(ctx, proof); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Lost the check-then-insert race; report the winner's row.
			winner, getErr := s.index.GetByHash(ctx, req.ContentHash)
			if getErr != nil {
				s.fail(ctx, state, getErr)
				return nil, dErrors.Wrap(getErr, dErrors.CodeInternal, "failed to load winning proof after conflict")
			}
			s.advance(ctx, req.ContentHash, models.StateDone)
			s.countAnchor("conflict")
			return winner, dErrors.New(dErrors.CodeConflict, "document already anchored")
		}
		// The proof exists durably on the log but is not indexed. Without a
		// reconciliation sweep this stays inconsistent, so make it loud.
		s.logger.ErrorContext(ctx, "proof committed to consensus log but index write failed",
			"request_id", requestcontext.RequestID(ctx),
			"hash_prefix", hashing.Prefix(req.ContentHash),
			"transaction_id", receipt.TransactionID,
			"error", err.Error(),
		)
		s.countAnchor("failed")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist proof index entry")
	}
	s.advance(ctx, req.ContentHash, models.StateIndexed)
	s.advance(ctx, req.ContentHash, models.StateDone)
	s.countAnchor("anchored")

	s.logger.InfoContext(ctx, "document anchored",
		"request_id", requestcontext.RequestID(ctx),
		"hash_prefix", hashing.Prefix(req.ContentHash),
		"transaction_id", receipt.TransactionID,
		"issuer", req.Identity,
	)
	return proof, nil
}

// Verify runs the verify workflow: index fast path, payload recovery from the
// mirror, fresh signature re-derivation, then the best-effort trust flag.
//
// The index row alone is never sufficient proof. Both "never anchored" and
// "anchored but currently unprovable" return NOT_VERIFIED so the endpoint
// cannot be used as an existence-probing oracle.
func (s *Service) Verify(ctx context.Context, contentHash string) (models.VerificationResult, error) {
	ctx, span := s.tracer.Start(ctx, "verify",
		trace.WithAttributes(attribute.String("hash_prefix", hashing.Prefix(contentHash))))
	defer span.End()

	notVerified := models.VerificationResult{Outcome: models.OutcomeNotVerified}

	if !hashing.ValidHex(contentHash) {
		return notVerified, dErrors.New(dErrors.CodeValidation, "invalid content hash")
	}

	indexed, err := s.index.GetByHash(ctx, contentHash)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.countVerify(models.OutcomeNotVerified)
			return notVerified, nil
		}
		return notVerified, dErrors.Wrap(err, dErrors.CodeInternal, "proof index lookup failed")
	}

	msg, err := s.mirror.FindPayloadByHash(ctx, s.topic, contentHash)
	if err != nil {
		// Soft inconsistency: the index row exists but the payload is not
		// currently recoverable. "We cannot prove it right now" must not be
		// conflated with "it is false", and must not become a 5xx.
		if s.metrics != nil {
			s.metrics.IndexInconsistencies.Inc()
		}
		s.logger.WarnContext(ctx, "indexed proof not recoverable from mirror",
			"request_id", requestcontext.RequestID(ctx),
			"hash_prefix", hashing.Prefix(contentHash),
			"transaction_id", indexed.TransactionID,
			"error", err.Error(),
		)
		s.countVerify(models.OutcomeNotVerified)
		return notVerified, nil
	}

	// Re-derive trust from the recovered payload against the currently
	// resolved key. The recovered fields are used, not the index row, so a
	// tampered index cannot influence the cryptographic check.
	hashRaw, ok := hashing.Decode(msg.Hash)
	if !ok {
		s.countVerify(models.OutcomeNotVerified)
		return notVerified, nil
	}
	sigRaw, err := hex.DecodeString(msg.Signature)
	if err != nil {
		s.countVerify(models.OutcomeNotVerified)
		return notVerified, nil
	}
	if !s.verifier.Verify(ctx, hashRaw, sigRaw, msg.DID) {
		s.logger.WarnContext(ctx, "recovered proof failed re-verification",
			"request_id", requestcontext.RequestID(ctx),
			"hash_prefix", hashing.Prefix(contentHash),
			"issuer", msg.DID,
		)
		s.countVerify(models.OutcomeNotVerified)
		return notVerified, nil
	}

	// Trust flag is additive metadata; failures inside IsTrusted degrade to
	// false without affecting the outcome.
	trusted := s.registry.IsTrusted(ctx, msg.DID)

	s.countVerify(models.OutcomeVerifiedOnChain)
	return models.VerificationResult{
		Outcome:         models.OutcomeVerifiedOnChain,
		IsTrustedIssuer: trusted,
		Proof: &models.RecoveredProof{
			ContentHash:        indexed.ContentHash,
			IssuerIdentity:     msg.DID,
			Signature:          msg.Signature,
			TransactionID:      indexed.TransactionID,
			ConsensusTimestamp: indexed.ConsensusTimestamp,
		},
	}, nil
}

// ListProofs returns the calling organization's own proofs, newest first.
// Read-only over the index; no network calls.
func (s *Service) ListProofs(ctx context.Context, limit int) ([]*models.DocumentProof, error) {
	callerOrg := requestcontext.OrgID(ctx)
	if callerOrg == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller is not authenticated")
	}
	identity, err := s.bindings.IdentityForOrg(ctx, callerOrg)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return []*models.DocumentProof{}, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve organization identity")
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	proofs, err := s.index.ListByIssuer(ctx, identity, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list proofs")
	}
	return proofs, nil
}

func (s *Service) advance(ctx context.Context, contentHash string, next models.AnchorState) models.AnchorState {
	s.logger.DebugContext(ctx, "anchor state transition",
		"hash_prefix", hashing.Prefix(contentHash),
		"state", string(next),
	)
	return next
}

func (s *Service) fail(ctx context.Context, from models.AnchorState, cause error) {
	s.logger.DebugContext(ctx, "anchor state transition",
		"state", string(models.StateFailed),
		"from", string(from),
		"cause", cause.Error(),
	)
}

func (s *Service) countAnchor(result string) {
	if s.metrics != nil {
		s.metrics.AnchorsTotal.WithLabelValues(result).Inc()
	}
}

func (s *Service) countVerify(outcome models.VerificationOutcome) {
	if s.metrics != nil {
		s.metrics.VerificationsTotal.WithLabelValues(string(outcome)).Inc()
	}
}
