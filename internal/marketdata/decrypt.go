package marketdata

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"crypto/aes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

const karmaKeyPrefix = "benson66"

// karmaKey derives the daily AES-128 key: the fixed prefix plus the UTC
// date as YYYYMMDD, 16 bytes total. The key rotates at UTC midnight.
func karmaKey(now time.Time) []byte {
	return []byte(karmaKeyPrefix + now.UTC().Format("20060102"))
}

// decryptKarmaPayload reverses the CoinKarma response encoding:
// base64 -> AES-128-ECB -> PKCS7 unpad -> inflate -> JSON bytes.
func decryptKarmaPayload(ciphertext string, now time.Time) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(ciphertext))
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext length %d not a multiple of the block size", len(raw))
	}

	block, err := aes.NewCipher(karmaKey(now))
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	plain := make([]byte, len(raw))
	for i := 0; i < len(raw); i += aes.BlockSize {
		block.Decrypt(plain[i:i+aes.BlockSize], raw[i:i+aes.BlockSize])
	}

	plain, err = pkcs7Unpad(plain)
	if err != nil {
		return nil, err
	}

	out, err := inflateAuto(plain)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("unpad: empty plaintext")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, fmt.Errorf("unpad: invalid padding length %d", n)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("unpad: inconsistent padding bytes")
		}
	}
	return data[:len(data)-n], nil
}

// inflateAuto decompresses data trying zlib, raw deflate, then gzip
// framing. The upstream has switched framing before; probing all three
// keeps decryption working across such changes.
func inflateAuto(data []byte) ([]byte, error) {
	if r, err := zlib.NewReader(bytes.NewReader(data)); err == nil {
		out, err := io.ReadAll(r)
		r.Close()
		if err == nil {
			return out, nil
		}
	}

	if out, err := io.ReadAll(flate.NewReader(bytes.NewReader(data))); err == nil && len(out) > 0 {
		return out, nil
	}

	if r, err := gzip.NewReader(bytes.NewReader(data)); err == nil {
		out, err := io.ReadAll(r)
		r.Close()
		if err == nil {
			return out, nil
		}
	}

	return nil, errors.New("inflate: payload is not zlib, deflate, or gzip compressed")
}
