// Package cryptox implements the record encryption primitive used by the
// sync layer: AES-256-GCM with a per-record subkey derived from the user's
// master key via HKDF-SHA256.
package cryptox

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/dmitrijs2005/remindsafe/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

const (
	nonceSize     = 12
	subKeySize    = 32
	hkdfInfoLabel = "remindsafe/record/v1"
)

// CipherBox is the narrow encryption capability consumed by the sync layer.
// Both operations may fail; implementations must not retain plaintext.
type CipherBox interface {
	// Encrypt encrypts plaintext under a key derived for (userID, recordID)
	// and returns base64(nonce || ciphertext).
	Encrypt(ctx context.Context, userID, recordID, plaintext string) (string, error)

	// Decrypt reverses Encrypt. It fails if the ciphertext was produced for
	// a different record, was tampered with, or the key is unavailable.
	Decrypt(ctx context.Context, userID, recordID, ciphertext string) (string, error)
}

// KeySource supplies the user's master key. Implementations decide where the
// key lives (memory keyring, local secure store). ErrKeyNotUnlocked is
// returned while the key has not been unlocked yet; ErrInvalidKeyMaterial
// when the stored key is corrupt.
type KeySource interface {
	MasterKey(ctx context.Context, userID string) ([]byte, error)
}

// DeriveMasterKey derives a 32-byte master key from a passphrase and salt
// using argon2id.
func DeriveMasterKey(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, 32)
}

// AESBox is the production CipherBox: AES-256-GCM over HKDF per-record
// subkeys. It is stateless apart from the injected key source.
type AESBox struct {
	keys KeySource
}

func NewAESBox(keys KeySource) *AESBox {
	return &AESBox{keys: keys}
}

// recordKey derives the per-record subkey. The info string binds the subkey
// to both the user and the record so ciphertext cannot be replayed across
// records.
func recordKey(master []byte, userID, recordID string) ([]byte, error) {
	if len(master) != subKeySize {
		return nil, fmt.Errorf("%w: master key length %d", common.ErrInvalidKeyMaterial, len(master))
	}
	info := []byte(hkdfInfoLabel + "|" + userID + "|" + recordID)
	key := make([]byte, subKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, info), key); err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}
	return key, nil
}

func (b *AESBox) Encrypt(ctx context.Context, userID, recordID, plaintext string) (string, error) {
	master, err := b.keys.MasterKey(ctx, userID)
	if err != nil {
		return "", err
	}

	key, err := recordKey(master, userID, recordID)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrInvalidKeyMaterial, err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := common.GenerateRandByteArray(nonceSize)
	sealed := aesgcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (b *AESBox) Decrypt(ctx context.Context, userID, recordID, ciphertext string) (string, error) {
	master, err := b.keys.MasterKey(ctx, userID)
	if err != nil {
		return "", err
	}

	key, err := recordKey(master, userID, recordID)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(key)

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("ciphertext encoding: %w", err)
	}
	if len(raw) < nonceSize {
		return "", fmt.Errorf("ciphertext too short: %d bytes", len(raw))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrInvalidKeyMaterial, err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	plaintext, err := aesgcm.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}
