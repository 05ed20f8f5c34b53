// Package directories persists the per-user directory tree.
package directories

import (
	"context"

	"github.com/dmitrijs2005/filevault/internal/server/models"
)

type Repository interface {
	// Create inserts a directory. A sibling with the same name for the
	// same owner yields common.ErrDuplicateName.
	Create(ctx context.Context, dir *models.Directory) error

	// GetByID returns the directory with the given id owned by ownerID,
	// or common.ErrNotFound. Foreign directories are indistinguishable
	// from absent ones.
	GetByID(ctx context.Context, ownerID, id string) (*models.Directory, error)

	// ListChildren returns directories directly under parentID (nil for
	// the root) owned by ownerID, ordered by name.
	ListChildren(ctx context.Context, ownerID string, parentID *string) ([]*models.Directory, error)

	// ListChildIDs returns the ids of all directories whose parent is
	// parentID, regardless of owner. Used by the cascade walk, which has
	// already verified ownership of the subtree root.
	ListChildIDs(ctx context.Context, parentID string) ([]string, error)

	// Delete removes a single directory row by id.
	Delete(ctx context.Context, id string) error
}
