// Package wallet manages the trading keypair: loading it from a base58
// private key, exposing the public key, and signing serialized Solana
// transactions. Signing uses stdlib ed25519; no algorithm design here.
package wallet

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"solana-trader/internal/domain"
	"solana-trader/internal/solana"
)

// Wallet errors.
var (
	ErrInvalidPrivateKey = errors.New("wallet: invalid private key")
	ErrMalformedTx       = errors.New("wallet: malformed transaction")
)

// Wallet holds the trading keypair.
type Wallet struct {
	priv    ed25519.PrivateKey
	pub     ed25519.PublicKey
	address string
}

// NewFromBase58 loads a wallet from a base58-encoded private key: either
// the 64-byte seed||pubkey form exported by Solana tooling or a bare
// 32-byte seed. The embedded public key must be a valid curve point.
func NewFromBase58(encoded string) (*Wallet, error) {
	raw, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}

	var priv ed25519.PrivateKey
	switch len(raw) {
	case ed25519.PrivateKeySize:
		priv = ed25519.PrivateKey(raw)
		// The second half must match the key derived from the seed,
		// otherwise signatures would verify against the wrong address.
		derived := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
		if !priv.Equal(derived) {
			return nil, fmt.Errorf("%w: public half does not match seed", ErrInvalidPrivateKey)
		}
	case ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(raw)
	default:
		return nil, fmt.Errorf("%w: got %d bytes, want 32 or 64", ErrInvalidPrivateKey, len(raw))
	}

	pub := priv.Public().(ed25519.PublicKey)
	if _, err := new(edwards25519.Point).SetBytes(pub); err != nil {
		return nil, fmt.Errorf("%w: public key not on curve: %v", ErrInvalidPrivateKey, err)
	}

	return &Wallet{
		priv:    priv,
		pub:     pub,
		address: base58.Encode(pub),
	}, nil
}

// PublicKey returns the wallet address as base58.
func (w *Wallet) PublicKey() string {
	return w.address
}

// SignTransaction signs a serialized Solana transaction (legacy or
// versioned) produced by the swap aggregator. The wallet is the fee payer,
// so its signature goes in the first slot; the message bytes are never
// modified.
func (w *Wallet) SignTransaction(rawTx []byte) ([]byte, error) {
	numSigs, headerLen, err := decodeCompactU16(rawTx)
	if err != nil {
		return nil, fmt.Errorf("%w: signature count: %v", ErrMalformedTx, err)
	}
	if numSigs == 0 {
		return nil, fmt.Errorf("%w: zero signature slots", ErrMalformedTx)
	}

	messageStart := headerLen + numSigs*ed25519.SignatureSize
	if len(rawTx) <= messageStart {
		return nil, fmt.Errorf("%w: truncated at %d bytes", ErrMalformedTx, len(rawTx))
	}

	message := rawTx[messageStart:]
	signature := ed25519.Sign(w.priv, message)

	signed := make([]byte, len(rawTx))
	copy(signed, rawTx)
	copy(signed[headerLen:headerLen+ed25519.SignatureSize], signature)
	return signed, nil
}

// Balance fetches the wallet's SOL balance via the RPC client.
func (w *Wallet) Balance(ctx context.Context, rpc solana.RPC) (float64, error) {
	lamports, err := rpc.GetBalance(ctx, w.address)
	if err != nil {
		return 0, fmt.Errorf("fetch wallet balance: %w", err)
	}
	return float64(lamports) / domain.LamportsPerSOL, nil
}

// decodeCompactU16 reads a Solana compact-u16 length prefix: 7 value bits
// per byte, high bit marks continuation, at most 3 bytes.
func decodeCompactU16(data []byte) (value, bytesRead int, err error) {
	for i := 0; i < 3; i++ {
		if i >= len(data) {
			return 0, 0, errors.New("unexpected end of input")
		}
		b := int(data[i])
		value |= (b & 0x7f) << (7 * i)
		if b&0x80 == 0 {
			if value > 0xffff {
				return 0, 0, errors.New("value exceeds u16")
			}
			return value, i + 1, nil
		}
	}
	return 0, 0, errors.New("prefix longer than 3 bytes")
}
