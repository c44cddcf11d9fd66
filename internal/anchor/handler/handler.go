// Package handler exposes the anchoring workflows over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"docanchor/internal/anchor/models"
	"docanchor/internal/platform/metrics"
	"docanchor/internal/platform/middleware"
	"docanchor/internal/transport/http/shared"
	dErrors "docanchor/pkg/domain-errors"
	"docanchor/pkg/requestcontext"
)

// Service defines the interface for anchoring operations.
type Service interface {
	Anchor(ctx context.Context, req models.AnchorRequest) (*models.DocumentProof, error)
	Verify(ctx context.Context, contentHash string) (models.VerificationResult, error)
	ListProofs(ctx context.Context, limit int) ([]*models.DocumentProof, error)
}

// Handler handles proof anchoring and verification endpoints.
type Handler struct {
	logger         *slog.Logger
	service        Service
	metrics        *metrics.Metrics
	tokenValidator middleware.TokenValidator
	requestTimeout time.Duration
}

// New creates a new anchor Handler.
func New(
	service Service,
	logger *slog.Logger,
	m *metrics.Metrics,
	tokenValidator middleware.TokenValidator,
	requestTimeout time.Duration,
) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		metrics:        m,
		tokenValidator: tokenValidator,
		requestTimeout: requestTimeout,
	}
}

// Register registers the proof routes with the chi router. Anchoring and
// listing require an authenticated organization; verification is public, since
// anyone holding a document may ask whether it is anchored.
func (h *Handler) Register(r chi.Router) {
	base := chi.NewRouter()
	base.Use(middleware.Recovery(h.logger))
	base.Use(middleware.RequestID)
	base.Use(middleware.Logger(h.logger))
	base.Use(middleware.Timeout(h.requestTimeout))
	base.Use(middleware.ContentTypeJSON)
	base.Use(middleware.ClientMetadata)
	base.Use(middleware.Latency(h.metrics))

	base.Get("/v1/proofs/{contentHash}", h.handleVerify)

	base.Group(func(authed chi.Router) {
		authed.Use(middleware.RequireAuth(h.tokenValidator, h.logger))
		authed.Post("/v1/proofs", h.handleAnchor)
		authed.Get("/v1/proofs", h.handleList)
	})

	r.Mount("/", base)
}

// handleAnchor anchors a document hash for the authenticated organization.
func (h *Handler) handleAnchor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var req anchorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid anchor request body",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	proof, err := h.service.Anchor(ctx, models.AnchorRequest{
		ContentHash: req.ContentHash,
		Identity:    req.Identity,
		Signature:   req.Signature,
	})
	if err != nil {
		if dErrors.Is(err, dErrors.CodeConflict) && proof != nil {
			// Duplicate anchoring is a success-shaped no-op, surfaced with a
			// conflict status so callers can detect resubmission.
			shared.WriteJSON(w, http.StatusConflict, toProofResponse(proof))
			return
		}
		if dErrors.Is(err, dErrors.CodeValidation) || dErrors.Is(err, dErrors.CodeForbidden) || dErrors.Is(err, dErrors.CodeUnauthorized) {
			h.logger.WarnContext(ctx, "anchor request rejected",
				"request_id", requestID,
				"error", err.Error(),
			)
			shared.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "anchor request failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, toProofResponse(proof))
}

// handleVerify re-derives trust for a content hash. Always success-shaped:
// absence of proof is a valid outcome, not an error.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contentHash := chi.URLParam(r, "contentHash")

	result, err := h.service.Verify(ctx, contentHash)
	if err != nil {
		if dErrors.Is(err, dErrors.CodeValidation) {
			shared.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "verify request failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, toVerifyResponse(result))
}

// handleList returns the caller's own proofs, newest first.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	proofs, err := h.service.ListProofs(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "list proofs failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	out := make([]proofResponse, 0, len(proofs))
	for _, p := range proofs {
		out = append(out, toProofResponse(p))
	}
	shared.WriteJSON(w, http.StatusOK, listResponse{Proofs: out})
}
