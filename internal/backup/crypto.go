package backup

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
	argonTime = 3
	argonMem  = 64 * 1024
	argonPar  = 4
)

// magic prefixes every sealed snapshot so a wrong file fails fast.
var magic = []byte("CDNC1")

var (
	// ErrNotSealed is returned for data that is not a sealed snapshot.
	ErrNotSealed = errors.New("not a sealed snapshot")
	// ErrBadPassphrase is returned when authentication of the ciphertext fails.
	ErrBadPassphrase = errors.New("wrong passphrase or corrupted snapshot")
)

// DeriveKey derives a 32-byte AES-256 key from a passphrase and salt using Argon2id.
func DeriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMem, argonPar, keySize)
}

// Seal encrypts plaintext under a key derived from passphrase and a fresh
// salt. Output format: [magic][16-byte salt][12-byte nonce][AES-256-GCM ciphertext]
func Seal(plaintext []byte, passphrase string) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(magic)+saltSize+nonceSize+len(plaintext)+gcm.Overhead())
	out = append(out, magic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	// The header is authenticated too.
	return gcm.Seal(out, nonce, plaintext, out), nil
}

// Open reverses Seal.
func Open(sealed []byte, passphrase string) ([]byte, error) {
	header := len(magic) + saltSize + nonceSize
	if len(sealed) < header || !bytes.Equal(sealed[:len(magic)], magic) {
		return nil, ErrNotSealed
	}
	salt := sealed[len(magic) : len(magic)+saltSize]
	nonce := sealed[len(magic)+saltSize : header]

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, sealed[header:], sealed[:header])
	if err != nil {
		return nil, ErrBadPassphrase
	}
	return plaintext, nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(DeriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}
