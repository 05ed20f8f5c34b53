// Package files persists file metadata: the wrapped per-file key, the blob
// reference, and the sharing state.
package files

import (
	"context"

	"github.com/dmitrijs2005/filevault/internal/server/models"
)

type Repository interface {
	// Create inserts a new file record.
	Create(ctx context.Context, file *models.UserFile) error

	// GetByID returns the file owned by ownerID or common.ErrNotFound.
	GetByID(ctx context.Context, ownerID, id string) (*models.UserFile, error)

	// GetByIDForUpdate is GetByID with a row lock, serializing concurrent
	// share toggles on the same record. Must be called inside a transaction.
	GetByIDForUpdate(ctx context.Context, ownerID, id string) (*models.UserFile, error)

	// GetByShareToken returns the file with an active share under the
	// given token, or common.ErrNotFound.
	GetByShareToken(ctx context.Context, token string) (*models.UserFile, error)

	// List returns files directly in directoryID (nil for the root) owned
	// by ownerID, ordered by filename.
	List(ctx context.Context, ownerID string, directoryID *string) ([]*models.UserFile, error)

	// ListInDirectory returns id and blob_ref of every file in the given
	// directory. Used by the cascade walk to collect blobs for cleanup.
	ListInDirectory(ctx context.Context, directoryID string) ([]*models.UserFile, error)

	// DeleteInDirectory removes all file rows in the given directory.
	DeleteInDirectory(ctx context.Context, directoryID string) error

	// Delete removes a single file row by id.
	Delete(ctx context.Context, id string) error

	// UpdateShare persists the sharing state of a file.
	UpdateShare(ctx context.Context, id string, share models.ShareState) error
}
