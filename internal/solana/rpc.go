// Package solana provides the blockchain RPC client, transaction
// submission, and confirmation polling for the trade engine.
package solana

import (
	"context"
	"encoding/json"
)

// RPC defines the blockchain RPC operations the engine depends on.
type RPC interface {
	// SendTransaction submits a fully signed transaction and returns its
	// signature. Preflight simulation is enabled.
	SendTransaction(ctx context.Context, signedTx []byte) (string, error)

	// GetSignatureStatus queries confirmation status for a signature.
	// Returns nil when the cluster does not know the signature yet.
	GetSignatureStatus(ctx context.Context, signature string) (*SignatureStatus, error)

	// GetTransactionFee reads the fee (lamports) from a confirmed
	// transaction's meta. Returns ErrTransactionNotFound if the
	// transaction is not available yet.
	GetTransactionFee(ctx context.Context, signature string) (uint64, error)

	// GetBalance returns the lamport balance of an account.
	GetBalance(ctx context.Context, pubkey string) (uint64, error)
}

// Commitment levels used by this engine.
const (
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// SignatureStatus is the cluster's view of a submitted transaction.
type SignatureStatus struct {
	Slot               uint64
	Confirmations      *uint64
	ConfirmationStatus string
	// Err is the raw on-chain error payload, nil when the transaction
	// executed successfully.
	Err interface{}
}

// Final reports whether the transaction outcome is authoritatively known.
func (s *SignatureStatus) Final() bool {
	return s != nil &&
		(s.ConfirmationStatus == CommitmentConfirmed || s.ConfirmationStatus == CommitmentFinalized)
}

// ErrString renders the on-chain error payload, empty when none.
func (s *SignatureStatus) ErrString() string {
	if s == nil || s.Err == nil {
		return ""
	}
	if msg, ok := s.Err.(string); ok {
		return msg
	}
	raw, err := json.Marshal(s.Err)
	if err != nil {
		return "unrenderable transaction error"
	}
	return string(raw)
}
