package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/dmitrijs2005/filevault/internal/common"
)

// FileKeySize is the raw length of a per-file key.
const FileKeySize = 32

// frameVersion is the first byte of every sealed frame. Bumping it allows
// a future scheme change without breaking stored ciphertexts.
const frameVersion = 0x01

const nonceSize = 12

// GenerateFileKey returns a fresh random per-file key. Every upload gets
// its own key; keys are never reused across files.
func GenerateFileKey() ([]byte, error) {
	key := make([]byte, FileKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("file key generation: %w", err)
	}
	return key, nil
}

// seal produces a frame: version byte || nonce || AES-GCM ciphertext+tag.
func seal(plaintext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	out := make([]byte, 0, 1+nonceSize+len(plaintext)+aesgcm.Overhead())
	out = append(out, frameVersion)
	out = append(out, nonce...)
	return aesgcm.Seal(out, nonce, plaintext, nil), nil
}

// open reverses seal. Any framing defect or tag failure yields an error;
// the error never carries key material or ciphertext.
func open(frame, key []byte) ([]byte, error) {
	if len(frame) < 1+nonceSize {
		return nil, fmt.Errorf("frame too short")
	}
	if frame[0] != frameVersion {
		return nil, fmt.Errorf("unsupported frame version %d", frame[0])
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := frame[1 : 1+nonceSize]
	plaintext, err := aesgcm.Open(nil, nonce, frame[1+nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("authentication failed")
	}
	return plaintext, nil
}

// Encrypt seals the whole payload under the given per-file key.
// The payload is processed in memory; see the storage engine's size limits.
func Encrypt(plaintext, key []byte) ([]byte, error) {
	ciphertext, err := seal(plaintext, key)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	return ciphertext, nil
}

// Decrypt opens a payload sealed by Encrypt. Tampered or malformed input
// fails with common.ErrPayloadDecrypt; partial plaintext is never returned.
func Decrypt(ciphertext, key []byte) ([]byte, error) {
	plaintext, err := open(ciphertext, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrPayloadDecrypt, err)
	}
	return plaintext, nil
}

// WrapKey authenticated-encrypts a per-file key under the master key.
// The result is opaque and safe to persist next to the file metadata.
func WrapKey(fileKey, masterKey []byte) ([]byte, error) {
	if len(fileKey) != FileKeySize {
		return nil, fmt.Errorf("wrap: file key must be %d bytes", FileKeySize)
	}
	wrapped, err := seal(fileKey, masterKey)
	if err != nil {
		return nil, fmt.Errorf("wrap: %w", err)
	}
	return wrapped, nil
}

// UnwrapKey recovers a per-file key wrapped by WrapKey. Truncated input,
// a wrong version byte, or a tag failure all yield common.ErrKeyUnwrap.
func UnwrapKey(wrapped, masterKey []byte) ([]byte, error) {
	fileKey, err := open(wrapped, masterKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrKeyUnwrap, err)
	}
	if len(fileKey) != FileKeySize {
		return nil, fmt.Errorf("%w: unexpected key length", common.ErrKeyUnwrap)
	}
	return fileKey, nil
}
