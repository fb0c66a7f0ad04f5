package snapshot

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Sealing errors.
var (
	ErrKeyTooShort      = errors.New("snapshot: encryption key too short (minimum 16 bytes)")
	ErrDecryptionFailed = errors.New("snapshot: decryption failed - wrong key or corrupted data")
)

// Algorithm names a checkpoint AEAD.
type Algorithm string

const (
	AlgorithmAESGCM   Algorithm = "aes-gcm"
	AlgorithmChaCha20 Algorithm = "chacha20-poly1305"
)

const (
	// MinKeyLength is the minimum master key length.
	MinKeyLength = 16

	// KeyPrefix marks hex-encoded keys in configuration.
	KeyPrefix = "pnk_"

	subkeyInfo = "pathnet checkpoint v1"
	subkeyLen  = 32
)

// Sealer encrypts and authenticates checkpoint payloads.
type Sealer struct {
	algo Algorithm
	aead cipher.AEAD
}

// NewSealer derives a 32-byte subkey from masterKey with HKDF-SHA256 and
// builds the AEAD for algo. An empty algo means AES-GCM.
func NewSealer(masterKey []byte, algo Algorithm) (*Sealer, error) {
	key, err := DeriveSubkey(masterKey, subkeyInfo, subkeyLen)
	if err != nil {
		return nil, err
	}

	if algo == "" {
		algo = AlgorithmAESGCM
	}

	var aead cipher.AEAD
	switch algo {
	case AlgorithmAESGCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("snapshot: aes: %w", err)
		}
		aead, err = cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("snapshot: gcm: %w", err)
		}
	case AlgorithmChaCha20:
		aead, err = chacha20poly1305.New(key)
		if err != nil {
			return nil, fmt.Errorf("snapshot: chacha20: %w", err)
		}
	default:
		return nil, fmt.Errorf("snapshot: unsupported algorithm: %s", algo)
	}

	return &Sealer{algo: algo, aead: aead}, nil
}

// Algorithm returns the AEAD in use.
func (s *Sealer) Algorithm() Algorithm {
	return s.algo
}

// Seal encrypts plaintext. The random nonce is prepended to the result.
func (s *Sealer) Seal(plaintext, additionalData []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("snapshot: nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

// Open reverses Seal.
func (s *Sealer) Open(ciphertext, additionalData []byte) ([]byte, error) {
	if len(ciphertext) < s.aead.NonceSize() {
		return nil, ErrDecryptionFailed
	}
	nonce := ciphertext[:s.aead.NonceSize()]
	plain, err := s.aead.Open(nil, nonce, ciphertext[s.aead.NonceSize():], additionalData)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plain, nil
}

// DeriveSubkey derives a subkey from a master key using HKDF.
func DeriveSubkey(masterKey []byte, info string, length int) ([]byte, error) {
	if len(masterKey) < MinKeyLength {
		return nil, ErrKeyTooShort
	}

	reader := hkdf.New(sha256.New, masterKey, nil, []byte(info))
	key := make([]byte, length)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("snapshot: derive subkey: %w", err)
	}
	return key, nil
}

// ParseKey turns a configured key into master key bytes. "pnk_<hex>" is
// hex-decoded; any other string is used as-is.
func ParseKey(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	if strings.HasPrefix(s, KeyPrefix) {
		key, err := hex.DecodeString(strings.TrimPrefix(s, KeyPrefix))
		if err != nil {
			return nil, fmt.Errorf("snapshot: decode key: %w", err)
		}
		return key, nil
	}
	return []byte(s), nil
}

// GenerateKey returns a new random 32-byte key in "pnk_<hex>" form.
func GenerateKey() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("snapshot: generate key: %w", err)
	}
	return KeyPrefix + hex.EncodeToString(key), nil
}
