// Package credential mints and opens the gateway's long-lived opaque
// credential: a single identity string sealed with XChaCha20-Poly1305 under
// a key derived from the process-wide secret.
//
// The credential carries no expiry. It stays valid until the secret is
// rotated or the identity is removed from the allow list.
package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Version is the format byte prepended to every blob. It is also the AEAD
// additional data, so altering it fails authentication.
const Version byte = 0x01

// MinSecretLength is the shortest secret NewCodec accepts.
const MinSecretLength = 16

const overhead = 1 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

var hkdfInfo = []byte("authgate.opaque-credential.v1")

var (
	// ErrInvalidCredential is returned for any blob that cannot be opened:
	// bad encoding, truncated, unknown version, wrong key or tampered.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrSecretTooShort is returned by NewCodec for weak secrets.
	ErrSecretTooShort = errors.New("credential secret too short")

	// ErrEmptyIdentity is returned by Encrypt for an empty identity.
	ErrEmptyIdentity = errors.New("identity is empty")
)

// Strict so that flipping unused trailing bits is not silently accepted.
var encoding = base64.RawURLEncoding.Strict()

// Codec encrypts identities into opaque credentials and back. It holds no
// mutable state and is safe for concurrent use.
type Codec struct {
	key  [chacha20poly1305.KeySize]byte
	rand io.Reader
}

// NewCodec derives the encryption key from secret.
func NewCodec(secret string) (*Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrSecretTooShort, len(secret), MinSecretLength)
	}

	c := &Codec{rand: rand.Reader}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, hkdfInfo)
	if _, err := io.ReadFull(kdf, c.key[:]); err != nil {
		return nil, fmt.Errorf("deriving credential key: %w", err)
	}
	return c, nil
}

// Encrypt seals identity into a cookie-safe string. Each call uses a fresh
// random nonce, so the same identity never produces the same blob twice.
func (c *Codec) Encrypt(identity string) (string, error) {
	if identity == "" {
		return "", ErrEmptyIdentity
	}

	aead, err := chacha20poly1305.NewX(c.key[:])
	if err != nil {
		return "", fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}

	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(c.rand, nonce[:]); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	out := make([]byte, 1+len(nonce), overhead+len(identity))
	out[0] = Version
	copy(out[1:], nonce[:])

	out = aead.Seal(out, nonce[:], []byte(identity), []byte{Version})
	return encoding.EncodeToString(out), nil
}

// Decrypt opens a blob produced by Encrypt and returns the identity.
// Every failure wraps ErrInvalidCredential.
func (c *Codec) Decrypt(blob string) (string, error) {
	raw, err := encoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("%w: bad encoding", ErrInvalidCredential)
	}
	if len(raw) < overhead {
		return "", fmt.Errorf("%w: %d bytes, minimum is %d", ErrInvalidCredential, len(raw), overhead)
	}
	if raw[0] != Version {
		return "", fmt.Errorf("%w: unsupported version %d", ErrInvalidCredential, raw[0])
	}

	aead, err := chacha20poly1305.NewX(c.key[:])
	if err != nil {
		return "", fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}

	nonce := raw[1 : 1+chacha20poly1305.NonceSizeX]
	plaintext, err := aead.Open(nil, nonce, raw[1+chacha20poly1305.NonceSizeX:], raw[:1])
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrInvalidCredential)
	}
	if len(plaintext) == 0 || !utf8.Valid(plaintext) {
		return "", fmt.Errorf("%w: malformed identity", ErrInvalidCredential)
	}
	return string(plaintext), nil
}
