package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/blobstore"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// DirectoryService manages the per-user directory tree: creation with
// sibling-name uniqueness, cascading deletion, listing, and breadcrumbs.
type DirectoryService struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
	blobs blobstore.Store
	log   logging.Logger
}

func NewDirectoryService(db *sql.DB, repos repomanager.RepositoryManager, blobs blobstore.Store, log logging.Logger) *DirectoryService {
	return &DirectoryService{db: db, repos: repos, blobs: blobs, log: log}
}

// Create makes a new directory under parentID (nil for the root). The
// parent must belong to ownerID; a foreign parent reads as ErrNotFound.
// A sibling name collision yields ErrDuplicateName.
func (s *DirectoryService) Create(ctx context.Context, ownerID, name string, parentID *string) (*models.Directory, error) {
	if name == "" {
		return nil, fmt.Errorf("directory name must not be empty")
	}

	dirs := s.repos.Directories(s.db)

	if parentID != nil {
		if _, err := dirs.GetByID(ctx, ownerID, *parentID); err != nil {
			return nil, err
		}
	}

	dir := &models.Directory{
		ID:        uuid.NewString(),
		UserID:    ownerID,
		Name:      name,
		ParentID:  parentID,
		CreatedAt: time.Now().UTC(),
	}
	if err := dirs.Create(ctx, dir); err != nil {
		return nil, err
	}
	return dir, nil
}

// Delete removes the directory and every descendant directory and file in
// one transaction. The subtree is collected with a bounded breadth-first
// walk before anything is deleted, so a corrupted parent graph aborts the
// operation instead of recursing without limit. Physical cleanup runs only
// after the transaction commits and is best-effort.
func (s *DirectoryService) Delete(ctx context.Context, ownerID, dirID string) error {
	if _, err := s.repos.Directories(s.db).GetByID(ctx, ownerID, dirID); err != nil {
		return err
	}

	var subtree []string
	var blobRefs []string

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		dirs := s.repos.Directories(tx)
		files := s.repos.Files(tx)

		var err error
		subtree, err = collectSubtree(ctx, dirs, dirID)
		if err != nil {
			return err
		}

		for _, id := range subtree {
			inDir, err := files.ListInDirectory(ctx, id)
			if err != nil {
				return err
			}
			for _, f := range inDir {
				blobRefs = append(blobRefs, f.BlobRef)
			}
			if err := files.DeleteInDirectory(ctx, id); err != nil {
				return err
			}
		}

		// Children before parents; subtree is in BFS order.
		for i := len(subtree) - 1; i >= 0; i-- {
			if err := dirs.Delete(ctx, subtree[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, ref := range blobRefs {
		removeBlobWithRetry(ctx, s.log, s.blobs, ref)
	}
	for i := len(subtree) - 1; i >= 0; i-- {
		reclaimDir(ctx, s.log, s.blobs, blobstore.DirPrefix(ownerID, subtree[i]))
	}
	reclaimDir(ctx, s.log, s.blobs, ownerID)

	return nil
}

// collectSubtree gathers dirID and all its descendants, level by level,
// capped at maxTreeDepth.
func collectSubtree(ctx context.Context, dirs interface {
	ListChildIDs(ctx context.Context, parentID string) ([]string, error)
}, dirID string) ([]string, error) {
	subtree := []string{dirID}
	frontier := []string{dirID}

	for depth := 0; len(frontier) > 0; depth++ {
		if depth >= maxTreeDepth {
			return nil, fmt.Errorf("%w: subtree deeper than %d levels", common.ErrTreeCorrupted, maxTreeDepth)
		}
		var next []string
		for _, id := range frontier {
			children, err := dirs.ListChildIDs(ctx, id)
			if err != nil {
				return nil, err
			}
			next = append(next, children...)
		}
		subtree = append(subtree, next...)
		frontier = next
	}
	return subtree, nil
}

// ListChildren returns the directories directly under parentID (nil for
// the root), ordered by name.
func (s *DirectoryService) ListChildren(ctx context.Context, ownerID string, parentID *string) ([]*models.Directory, error) {
	return s.repos.Directories(s.db).ListChildren(ctx, ownerID, parentID)
}

// BuildBreadcrumb walks parent references from dirID up to the root and
// returns the chain in root-to-leaf order. A cycle or an over-deep chain
// is a data-integrity fault reported as ErrTreeCorrupted.
func (s *DirectoryService) BuildBreadcrumb(ctx context.Context, ownerID, dirID string) ([]*models.Directory, error) {
	dirs := s.repos.Directories(s.db)

	dir, err := dirs.GetByID(ctx, ownerID, dirID)
	if err != nil {
		return nil, err
	}

	chain := []*models.Directory{dir}
	seen := map[string]struct{}{dir.ID: {}}

	for dir.ParentID != nil {
		if len(chain) >= maxTreeDepth {
			return nil, fmt.Errorf("%w: parent chain deeper than %d levels", common.ErrTreeCorrupted, maxTreeDepth)
		}
		parent, err := dirs.GetByID(ctx, ownerID, *dir.ParentID)
		if err != nil {
			// A dangling parent pointer is corruption, not a user error.
			return nil, fmt.Errorf("%w: missing parent %s", common.ErrTreeCorrupted, *dir.ParentID)
		}
		if _, ok := seen[parent.ID]; ok {
			return nil, fmt.Errorf("%w: cycle through %s", common.ErrTreeCorrupted, parent.ID)
		}
		seen[parent.ID] = struct{}{}
		chain = append(chain, parent)
		dir = parent
	}

	// Reverse into root-to-leaf order.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}
