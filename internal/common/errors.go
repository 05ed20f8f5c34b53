// Package common defines shared sentinel errors used across the storage
// engine. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors. ErrNotFound is returned both for records
	// that do not exist and for records owned by another user, so the
	// caller cannot probe for existence of foreign entries.
	ErrNotFound      = errors.New("not found")
	ErrDuplicateName = errors.New("name already exists in this directory")

	// Crypto-layer errors. Messages never include key material.
	ErrKeyUnwrap      = errors.New("file key unwrap failed")
	ErrPayloadDecrypt = errors.New("payload decryption failed")

	// ErrDecryption is the file-store boundary error wrapping either
	// ErrKeyUnwrap or ErrPayloadDecrypt.
	ErrDecryption = errors.New("decryption failed")

	// Share lifecycle errors.
	ErrLinkExpired = errors.New("share link expired")

	// ErrTreeCorrupted signals a cyclic or over-deep parent chain in the
	// directory tree. This is a data-integrity fault, not a user error.
	ErrTreeCorrupted = errors.New("directory tree corrupted")
)
