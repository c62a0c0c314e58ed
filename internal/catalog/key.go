package catalog

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

	"golang.org/x/crypto/hkdf"
)

// KeySize is the catalog key length in bytes.
const KeySize = 32

// Key is the opaque 256-bit symmetric key supplied by the key-custody
// collaborator.
type Key [KeySize]byte

// Purpose separates the subkeys derived from a Key.
type Purpose string

const (
	PurposeKeyCheck  Purpose = "custodian/key-check/v1"
	PurposeSelfCheck Purpose = "custodian/self-check/v1"
	PurposeExport    Purpose = "custodian/export/v1"
)

// GenerateKey returns a fresh random key.
func GenerateKey() (*Key, error) {
	var k Key
	if _, err := io.ReadFull(rand.Reader, k[:]); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &k, nil
}

// ParseKey decodes a 64 character hex key.
func ParseKey(s string) (*Key, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("parse key: %w", err)
	}
	if len(raw) != KeySize {
		return nil, fmt.Errorf("parse key: got %d bytes, want %d", len(raw), KeySize)
	}
	var k Key
	copy(k[:], raw)
	return &k, nil
}

// String returns the hex encoding of the key.
func (k *Key) String() string {
	return hex.EncodeToString(k[:])
}

func (k *Key) derive(p Purpose) ([]byte, error) {
	sub := make([]byte, KeySize)
	r := hkdf.New(sha256.New, k[:], nil, []byte(p))
	if _, err := io.ReadFull(r, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (k *Key) aead(p Purpose) (cipher.AEAD, error) {
	sub, err := k.derive(p)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(sub)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext with AES-256-GCM under the subkey for p. The
// output is nonce || ciphertext || tag.
func (k *Key) Seal(p Purpose, plaintext []byte) ([]byte, error) {
	if k == nil {
		return nil, newError(CodeEncryptionFailed, "seal", errors.New("no key"))
	}
	gcm, err := k.aead(p)
	if err != nil {
		return nil, newError(CodeEncryptionFailed, "seal", err)
	}
	nonce := make([]byte, gcm.NonceSize(), gcm.NonceSize()+len(plaintext)+gcm.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, newError(CodeEncryptionFailed, "seal", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, []byte(p)), nil
}

// Unseal reverses Seal. Tampered input or a different key yields
// DecryptionFailed.
func (k *Key) Unseal(p Purpose, sealed []byte) ([]byte, error) {
	if k == nil {
		return nil, newError(CodeDecryptionFailed, "unseal", errors.New("no key"))
	}
	gcm, err := k.aead(p)
	if err != nil {
		return nil, newError(CodeDecryptionFailed, "unseal", err)
	}
	if len(sealed) < gcm.NonceSize()+gcm.Overhead() {
		return nil, newError(CodeDecryptionFailed, "unseal", errors.New("sealed data too short"))
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, []byte(p))
	if err != nil {
		return nil, newError(CodeDecryptionFailed, "unseal", err)
	}
	return plaintext, nil
}
