// Package envelope builds the encrypted request bodies sent to the remote
// service.
//
// The dispatch core treats envelopes as opaque bytes. [Sealer] is the
// default [Builder]: it serialises a small JSON message and encrypts it with
// AES-CBC under a configured key and IV, so the output is deterministic for
// a given input.
package envelope

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Builder produces the opaque bodies for the two request kinds.
type Builder interface {
	ActionEnvelope(subjectID, target string) ([]byte, error)
	StatusEnvelope(subjectID string) ([]byte, error)
}

// ErrInvalidSubject is returned when a subject id is not a positive decimal integer.
var ErrInvalidSubject = errors.New("subject id must be a positive integer")

// ParseSubject parses a subject id.
func ParseSubject(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSubject, s)
	}
	return n, nil
}

type actionMessage struct {
	Subject uint64 `json:"subject"`
	Region  string `json:"region"`
}

type statusMessage struct {
	Subject uint64 `json:"subject"`
	Kind    int    `json:"kind"`
}

// Sealer is an AES-CBC [Builder] with PKCS#7 padding and a fixed IV.
type Sealer struct {
	block cipher.Block
	iv    []byte
}

var _ Builder = (*Sealer)(nil)

// NewSealer creates a [Sealer]. key must be 16, 24 or 32 bytes and iv must
// be one AES block (16 bytes).
func NewSealer(key, iv []byte) (*Sealer, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("envelope key: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("envelope iv must be %d bytes, got %d", aes.BlockSize, len(iv))
	}
	return &Sealer{block: block, iv: append([]byte(nil), iv...)}, nil
}

// NewSealerHex is like [NewSealer] but takes hex-encoded key and iv.
func NewSealerHex(keyHex, ivHex string) (*Sealer, error) {
	key, err := hex.DecodeString(strings.TrimSpace(keyHex))
	if err != nil {
		return nil, fmt.Errorf("envelope key: invalid hex: %w", err)
	}
	iv, err := hex.DecodeString(strings.TrimSpace(ivHex))
	if err != nil {
		return nil, fmt.Errorf("envelope iv: invalid hex: %w", err)
	}
	return NewSealer(key, iv)
}

// ActionEnvelope seals the primary action for subjectID in target's region.
func (s *Sealer) ActionEnvelope(subjectID, target string) ([]byte, error) {
	subject, err := ParseSubject(subjectID)
	if err != nil {
		return nil, err
	}
	return s.seal(actionMessage{Subject: subject, Region: target})
}

// StatusEnvelope seals the counter query for subjectID.
func (s *Sealer) StatusEnvelope(subjectID string) ([]byte, error) {
	subject, err := ParseSubject(subjectID)
	if err != nil {
		return nil, err
	}
	return s.seal(statusMessage{Subject: subject, Kind: 1})
}

// Seal encrypts an arbitrary plaintext.
func (s *Sealer) Seal(plaintext []byte) []byte {
	padded := pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(s.block, s.iv).CryptBlocks(out, padded)
	return out
}

// Open decrypts a sealed envelope. Used to inspect traffic and in tests.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) == 0 || len(sealed)%aes.BlockSize != 0 {
		return nil, errors.New("sealed envelope is not a whole number of blocks")
	}
	out := make([]byte, len(sealed))
	cipher.NewCBCDecrypter(s.block, s.iv).CryptBlocks(out, sealed)
	return unpad(out, aes.BlockSize)
}

func (s *Sealer) seal(msg any) ([]byte, error) {
	plaintext, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return s.Seal(plaintext), nil
}

func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(append([]byte(nil), b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 {
		return nil, errors.New("empty plaintext")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, errors.New("invalid padding")
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return b[:len(b)-n], nil
}
