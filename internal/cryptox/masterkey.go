// Package cryptox implements the envelope-encryption engine: the server
// master key, per-file keys, key wrapping, and authenticated encryption of
// file payloads.
//
// The master key is only ever used to wrap small per-file keys; bulk data is
// always encrypted under a per-file key. Both layers use AES-256-GCM.
package cryptox

import (
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// MasterKeySize is the raw length of the server master key.
const MasterKeySize = 32

// masterKeyEncodedLen is the length of the base64 form of a 32-byte key.
const masterKeyEncodedLen = 44

// ParseMasterKey decodes and validates the base64-encoded server master key.
// The decoded key must be exactly MasterKeySize bytes; anything else is
// rejected so that a malformed key can never silently produce ciphertexts
// that later fail to decrypt. Error messages never include the key itself.
func ParseMasterKey(encoded string) ([]byte, error) {
	if len(encoded) != masterKeyEncodedLen {
		return nil, fmt.Errorf("master key must be %d base64 characters, got %d", masterKeyEncodedLen, len(encoded))
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("master key is not valid base64")
	}
	if len(key) != MasterKeySize {
		return nil, fmt.Errorf("master key must decode to %d bytes, got %d", MasterKeySize, len(key))
	}
	return key, nil
}

// DeriveMasterKey derives a MasterKeySize-byte key from a passphrase and
// salt using argon2id. Used when the deployment configures a passphrase
// instead of raw key material.
func DeriveMasterKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, MasterKeySize)
}
