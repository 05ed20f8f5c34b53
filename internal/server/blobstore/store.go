// Package blobstore stores the physical ciphertext of uploaded files.
//
// Refs are slash-separated paths of the form <owner>/<directory-id>/<name>
// (or <owner>/<name> at the user's root). The directory identity, never its
// display name, is used as the path segment so renames and sibling name
// collisions cannot corrupt the physical layout.
package blobstore

import (
	"context"
	"path"
)

// Store is the physical ciphertext storage backend. Blobs are written once
// and never mutated in place.
type Store interface {
	// Save persists data under ref. When ref is already taken the store
	// picks a unique variant; the ref actually used is returned and must
	// be the one persisted in metadata.
	Save(ctx context.Context, ref string, data []byte) (string, error)

	// Load returns the stored bytes for ref.
	Load(ctx context.Context, ref string) ([]byte, error)

	// Remove deletes the blob for ref.
	Remove(ctx context.Context, ref string) error

	// RemoveDirIfEmpty reclaims the physical directory at prefix when it
	// holds no blobs. A missing or non-empty directory is not an error.
	RemoveDirIfEmpty(ctx context.Context, prefix string) error
}

// BuildRef composes the canonical blob ref for a file.
func BuildRef(ownerID string, directoryID *string, filename string) string {
	if directoryID != nil {
		return path.Join(ownerID, *directoryID, filename)
	}
	return path.Join(ownerID, filename)
}

// DirPrefix composes the physical directory prefix for a directory entity.
func DirPrefix(ownerID, directoryID string) string {
	return path.Join(ownerID, directoryID)
}
