// Package models defines the anchoring domain records and wire shapes.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"docanchor/pkg/hashing"
)

// IdentityScheme is the required prefix for issuer identities.
const IdentityScheme = "did:"

// SignatureHexLen is the length of a hex-encoded Ed25519 signature.
const SignatureHexLen = 128

// DocumentProof is the durable anchoring record owned by the proof index.
// Created once per unique content hash, immutable thereafter.
type DocumentProof struct {
	ID                 uuid.UUID
	ContentHash        string
	TransactionID      string
	ConsensusTimestamp time.Time
	IssuerIdentity     string
	CreatedAt          time.Time
}

// ProofMessage is the ephemeral payload submitted to the consensus log. It is
// never persisted by this service; verification recovers it byte-for-byte from
// the log's mirror. The JSON shape is load-bearing: historical entries must
// keep parsing, so fields are never renamed or reordered.
type ProofMessage struct {
	Hash      string `json:"hash"`
	DID       string `json:"did"`
	Signature string `json:"signature"`
}

// Encode serializes the message for submission.
func (m ProofMessage) Encode() ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode proof message: %w", err)
	}
	return raw, nil
}

// ParseProofMessage decodes payload bytes recovered from the mirror. Messages
// on a shared topic may have foreign shapes; those return an error and are
// skipped by the reconciler.
func ParseProofMessage(raw []byte) (ProofMessage, error) {
	var m ProofMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return ProofMessage{}, fmt.Errorf("parse proof message: %w", err)
	}
	if m.Hash == "" || m.DID == "" || m.Signature == "" {
		return ProofMessage{}, fmt.Errorf("parse proof message: missing fields")
	}
	return m, nil
}

// VerificationOutcome is the externally visible verdict of the verify
// workflow. Both "never anchored" and "anchored but currently unprovable"
// collapse to NotVerified so verification cannot be used as an existence
// oracle.
type VerificationOutcome string

const (
	OutcomeVerifiedOnChain VerificationOutcome = "VERIFIED_ON_CHAIN"
	OutcomeNotVerified     VerificationOutcome = "NOT_VERIFIED"
)

// VerificationResult is the transient result of a verify workflow run.
type VerificationResult struct {
	Outcome         VerificationOutcome
	Proof           *RecoveredProof
	IsTrustedIssuer bool
}

// RecoveredProof pairs index metadata with the payload recovered from the
// mirror. Only populated on VERIFIED_ON_CHAIN.
type RecoveredProof struct {
	ContentHash        string
	IssuerIdentity     string
	Signature          string
	TransactionID      string
	ConsensusTimestamp time.Time
}

// AnchorState tracks workflow progress for telemetry. Transitions are strictly
// forward; any state may fall to StateFailed.
type AnchorState string

const (
	StateReceived          AnchorState = "RECEIVED"
	StateSignatureVerified AnchorState = "SIGNATURE_VERIFIED"
	StateOwnershipVerified AnchorState = "OWNERSHIP_VERIFIED"
	StateDedupChecked      AnchorState = "DEDUP_CHECKED"
	StateSubmitted         AnchorState = "SUBMITTED"
	StateIndexed           AnchorState = "INDEXED"
	StateDone              AnchorState = "DONE"
	StateFailed            AnchorState = "FAILED"
)

// AnchorRequest is the validated input to the anchor workflow.
type AnchorRequest struct {
	ContentHash string
	Identity    string
	Signature   string
}

// Validate checks shapes only; no network calls and no crypto happen here.
func (r AnchorRequest) Validate() error {
	if !hashing.ValidHex(r.ContentHash) {
		return fmt.Errorf("content_hash must be %d lowercase hex characters", hashing.HexDigestLen)
	}
	if !strings.HasPrefix(r.Identity, IdentityScheme) {
		return fmt.Errorf("identity must use the %q scheme", IdentityScheme)
	}
	if len(r.Signature) != SignatureHexLen {
		return fmt.Errorf("signature must be %d hex characters", SignatureHexLen)
	}
	for _, c := range r.Signature {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return fmt.Errorf("signature must be lowercase hex")
		}
	}
	return nil
}
