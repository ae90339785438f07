package session

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	sealedPrefix = "sealed.v1:"

	// KeySize is the length of a [SealedStore] key.
	KeySize = chacha20poly1305.KeySize

	kdfTime    uint32 = 3
	kdfMemory  uint32 = 64 * 1024
	kdfThreads uint8  = 2
	minSaltLen        = 16
)

// SealedStore wraps another [Store] and seals every value with XChaCha20-Poly1305.
// The storage key is bound as additional data, so a value copied under a different key
// fails to open.
//
// Keys are passed to the inner store unchanged. Clear and Delete are forwarded as-is.
type SealedStore struct {
	inner Store
	aead  cipher.AEAD
}

// NewSealedStore returns a sealing wrapper around inner. key must be [KeySize] bytes.
func NewSealedStore(inner Store, key []byte) (*SealedStore, error) {
	if inner == nil {
		return nil, errors.New("sealed store: inner store is nil")
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("sealed store: %w", err)
	}
	return &SealedStore{inner: inner, aead: aead}, nil
}

// KeyFromPassphrase derives a [KeySize] key from a passphrase with argon2id. salt should
// be random, at least 16 bytes, and stored alongside the sealed data.
func KeyFromPassphrase(passphrase string, salt []byte) ([]byte, error) {
	if passphrase == "" {
		return nil, errors.New("sealed store: empty passphrase")
	}
	if len(salt) < minSaltLen {
		return nil, fmt.Errorf("sealed store: salt must be at least %d bytes", minSaltLen)
	}
	return argon2.IDKey([]byte(passphrase), salt, kdfTime, kdfMemory, kdfThreads, KeySize), nil
}

// NewSalt returns a random salt suitable for [KeyFromPassphrase].
func NewSalt() ([]byte, error) {
	salt := make([]byte, minSaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

func (s *SealedStore) Get(ctx context.Context, key string) (string, bool, error) {
	raw, found, err := s.inner.Get(ctx, key)
	if err != nil || !found {
		return "", found, err
	}
	plain, err := s.open(key, raw)
	if err != nil {
		return "", false, err
	}
	return plain, true, nil
}

func (s *SealedStore) Set(ctx context.Context, key, value string) error {
	sealed, err := s.seal(key, value)
	if err != nil {
		return err
	}
	return s.inner.Set(ctx, key, sealed)
}

func (s *SealedStore) Delete(ctx context.Context, keys ...string) error {
	return s.inner.Delete(ctx, keys...)
}

func (s *SealedStore) Clear(ctx context.Context) error {
	return s.inner.Clear(ctx)
}

func (s *SealedStore) seal(key, value string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(value)+s.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	out := s.aead.Seal(nonce, nonce, []byte(value), []byte(key))
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(out), nil
}

func (s *SealedStore) open(key, value string) (string, error) {
	if !strings.HasPrefix(value, sealedPrefix) {
		return "", fmt.Errorf("%w: missing envelope", ErrValueCorrupt)
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrValueCorrupt, err)
	}
	ns := s.aead.NonceSize()
	if len(data) < ns+s.aead.Overhead() {
		return "", fmt.Errorf("%w: short value", ErrValueCorrupt)
	}
	plain, err := s.aead.Open(nil, data[:ns], data[ns:], []byte(key))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrValueCorrupt, err)
	}
	return string(plain), nil
}
