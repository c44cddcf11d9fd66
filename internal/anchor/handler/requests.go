package handler

import (
	"time"

	"docanchor/internal/anchor/models"
)

type anchorRequest struct {
	ContentHash string `json:"contentHash"`
	Identity    string `json:"identity"`
	Signature   string `json:"signature"`
}

type proofResponse struct {
	ContentHash        string    `json:"contentHash"`
	LogTransactionID   string    `json:"logTransactionId"`
	ConsensusTimestamp time.Time `json:"consensusTimestamp"`
	IssuerIdentity     string    `json:"issuerIdentity"`
}

type listResponse struct {
	Proofs []proofResponse `json:"proofs"`
}

type verifyResponse struct {
	Outcome         string               `json:"outcome"`
	Proof           *verifyProofResponse `json:"proof,omitempty"`
	IsTrustedIssuer *bool                `json:"isTrustedIssuer,omitempty"`
}

type verifyProofResponse struct {
	ContentHash        string    `json:"contentHash"`
	IssuerIdentity     string    `json:"issuerIdentity"`
	Signature          string    `json:"signature"`
	ConsensusTimestamp time.Time `json:"consensusTimestamp"`
}

func toProofResponse(p *models.DocumentProof) proofResponse {
	return proofResponse{
		ContentHash:        p.ContentHash,
		LogTransactionID:   p.TransactionID,
		ConsensusTimestamp: p.ConsensusTimestamp,
		IssuerIdentity:     p.IssuerIdentity,
	}
}

func toVerifyResponse(r models.VerificationResult) verifyResponse {
	resp := verifyResponse{Outcome: string(r.Outcome)}
	if r.Proof != nil {
		resp.Proof = &verifyProofResponse{
			ContentHash:        r.Proof.ContentHash,
			IssuerIdentity:     r.Proof.IssuerIdentity,
			Signature:          r.Proof.Signature,
			ConsensusTimestamp: r.Proof.ConsensusTimestamp,
		}
		trusted := r.IsTrustedIssuer
		resp.IsTrustedIssuer = &trusted
	}
	return resp
}
