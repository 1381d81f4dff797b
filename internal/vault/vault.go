// Package vault seals provider credentials at rest with AES-256-GCM.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/hkdf"

	"example.com/healthscore/internal/domain"
)

const (
	// MinKeyLength is the shortest master key accepted.
	MinKeyLength = 32

	formatVersion byte = 1
	nonceSize          = 12
	keyInfo            = "healthscore credential vault v1"
)

// Vault encrypts and decrypts credential blobs. It is safe for concurrent use.
type Vault struct {
	key *memguard.Enclave
}

// New derives the AES key from master and wipes master.
func New(master []byte) (*Vault, error) {
	defer memguard.WipeBytes(master)

	if len(master) < MinKeyLength {
		return nil, fmt.Errorf("%w: encryption key must be at least %d bytes, got %d",
			domain.ErrConfiguration, MinKeyLength, len(master))
	}

	derived := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(keyInfo)), derived); err != nil {
		return nil, fmt.Errorf("%w: derive key: %v", domain.ErrConfiguration, err)
	}
	return &Vault{key: memguard.NewEnclave(derived)}, nil
}

// Encrypt seals plaintext bound to associatedData.
func (v *Vault) Encrypt(plaintext, associatedData []byte) (string, error) {
	aead, release, err := v.aead()
	if err != nil {
		return "", err
	}
	defer release()

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}

	out := make([]byte, 0, 1+nonceSize+len(plaintext)+aead.Overhead())
	out = append(out, formatVersion)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plaintext, associatedData)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens a blob produced by Encrypt. Any tampering, a wrong key or a
// mismatched associatedData yields domain.ErrIntegrity.
func (v *Vault) Decrypt(ciphertext string, associatedData []byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed encoding", domain.ErrIntegrity)
	}
	if len(raw) < 1+nonceSize {
		return nil, fmt.Errorf("%w: ciphertext too short", domain.ErrIntegrity)
	}
	if raw[0] != formatVersion {
		return nil, fmt.Errorf("%w: unknown format version %d", domain.ErrIntegrity, raw[0])
	}

	aead, release, err := v.aead()
	if err != nil {
		return nil, err
	}
	defer release()

	plaintext, err := aead.Open(nil, raw[1:1+nonceSize], raw[1+nonceSize:], associatedData)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication tag mismatch", domain.ErrIntegrity)
	}
	return plaintext, nil
}

// SealCredential encrypts cred for userID.
func (v *Vault) SealCredential(userID string, cred domain.Credential) (string, error) {
	plaintext, err := json.Marshal(cred)
	if err != nil {
		return "", fmt.Errorf("encode credential: %w", err)
	}
	defer memguard.WipeBytes(plaintext)
	return v.Encrypt(plaintext, []byte(userID))
}

// OpenCredential reverses SealCredential.
func (v *Vault) OpenCredential(userID, ciphertext string) (domain.Credential, error) {
	plaintext, err := v.Decrypt(ciphertext, []byte(userID))
	if err != nil {
		return domain.Credential{}, err
	}
	defer memguard.WipeBytes(plaintext)

	var cred domain.Credential
	if err := json.Unmarshal(plaintext, &cred); err != nil {
		return domain.Credential{}, fmt.Errorf("%w: malformed credential payload", domain.ErrIntegrity)
	}
	return cred, nil
}

func (v *Vault) aead() (cipher.AEAD, func(), error) {
	buf, err := v.key.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("open key enclave: %w", err)
	}
	block, err := aes.NewCipher(buf.Bytes())
	if err != nil {
		buf.Destroy()
		return nil, nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		buf.Destroy()
		return nil, nil, fmt.Errorf("init gcm: %w", err)
	}
	return aead, buf.Destroy, nil
}
