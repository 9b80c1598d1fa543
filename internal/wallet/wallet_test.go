package wallet

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return pub, priv
}

func TestNewFromBase58_64ByteKey(t *testing.T) {
	pub, priv := generateKey(t)

	w, err := NewFromBase58(base58.Encode(priv))
	require.NoError(t, err)
	assert.Equal(t, base58.Encode(pub), w.PublicKey())
}

func TestNewFromBase58_32ByteSeed(t *testing.T) {
	pub, priv := generateKey(t)

	w, err := NewFromBase58(base58.Encode(priv.Seed()))
	require.NoError(t, err)
	assert.Equal(t, base58.Encode(pub), w.PublicKey())
}

func TestNewFromBase58_Rejects(t *testing.T) {
	_, priv := generateKey(t)

	// Corrupt the embedded public half.
	corrupted := make([]byte, len(priv))
	copy(corrupted, priv)
	corrupted[ed25519.SeedSize] ^= 0xff

	tests := []struct {
		name    string
		encoded string
	}{
		{"not base58", "0OIl+"},
		{"wrong length", base58.Encode([]byte{1, 2, 3})},
		{"mismatched public half", base58.Encode(corrupted)},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFromBase58(tt.encoded)
			assert.ErrorIs(t, err, ErrInvalidPrivateKey)
		})
	}
}

// buildTx assembles a serialized transaction with n empty signature slots
// followed by the message bytes.
func buildTx(n int, message []byte) []byte {
	tx := []byte{byte(n)}
	tx = append(tx, make([]byte, n*ed25519.SignatureSize)...)
	return append(tx, message...)
}

func TestSignTransaction(t *testing.T) {
	pub, priv := generateKey(t)
	w, err := NewFromBase58(base58.Encode(priv))
	require.NoError(t, err)

	message := []byte("versioned message bytes")
	tx := buildTx(2, message)

	signed, err := w.SignTransaction(tx)
	require.NoError(t, err)

	// Message must be untouched.
	assert.Equal(t, message, signed[1+2*ed25519.SignatureSize:])

	// Fee payer slot carries a valid signature over the message.
	sig := signed[1 : 1+ed25519.SignatureSize]
	assert.True(t, ed25519.Verify(pub, message, sig))

	// Second slot stays empty for the co-signer.
	assert.Equal(t, make([]byte, ed25519.SignatureSize), signed[1+ed25519.SignatureSize:1+2*ed25519.SignatureSize])

	// Input must not be mutated.
	assert.Equal(t, buildTx(2, message), tx)
}

func TestSignTransaction_Malformed(t *testing.T) {
	_, priv := generateKey(t)
	w, err := NewFromBase58(base58.Encode(priv))
	require.NoError(t, err)

	tests := []struct {
		name string
		tx   []byte
	}{
		{"empty", nil},
		{"zero slots", []byte{0x00, 0x01}},
		{"truncated signatures", buildTx(1, nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.SignTransaction(tt.tx)
			assert.ErrorIs(t, err, ErrMalformedTx)
		})
	}
}

func TestDecodeCompactU16(t *testing.T) {
	tests := []struct {
		name      string
		input     []byte
		value     int
		bytesRead int
		wantErr   bool
	}{
		{"single byte", []byte{0x05}, 5, 1, false},
		{"boundary 127", []byte{0x7f}, 127, 1, false},
		{"two bytes", []byte{0x80, 0x01}, 128, 2, false},
		{"two bytes 300", []byte{0xac, 0x02}, 300, 2, false},
		{"three bytes", []byte{0x80, 0x80, 0x01}, 16384, 3, false},
		{"empty", nil, 0, 0, true},
		{"unterminated", []byte{0x80, 0x80}, 0, 0, true},
		{"overflow", []byte{0xff, 0xff, 0x7f}, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, n, err := decodeCompactU16(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.value, v)
			assert.Equal(t, tt.bytesRead, n)
		})
	}
}
