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

// ShareService manages time-bound public download tokens on files.
type ShareService struct {
	db        *sql.DB
	repos     repomanager.RepositoryManager
	blobs     blobstore.Store
	masterKey []byte
	ttl       time.Duration
	log       logging.Logger
}

func NewShareService(db *sql.DB, repos repomanager.RepositoryManager, blobs blobstore.Store, masterKey []byte, ttl time.Duration, log logging.Logger) *ShareService {
	return &ShareService{db: db, repos: repos, blobs: blobs, masterKey: masterKey, ttl: ttl, log: log}
}

// EnableShare turns public sharing on and returns the token. A live share
// keeps its token and expiry untouched: revoking and re-enabling is the
// only way to rotate a live token. A share that has expired but was not
// yet lazily revoked counts as unshared and gets a fresh token. The row
// lock serializes concurrent toggles so two racing enables cannot mint
// different tokens.
func (s *ShareService) EnableShare(ctx context.Context, ownerID, fileID string) (string, error) {
	var token string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		files := s.repos.Files(tx)

		file, err := files.GetByIDForUpdate(ctx, ownerID, fileID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if existing, ok := file.Share.Token(); ok && !file.Share.Expired(now) {
			token = existing
			return nil
		}

		token = uuid.NewString()
		return files.UpdateShare(ctx, file.ID, models.ShareActive(token, now.Add(s.ttl)))
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// DisableShare revokes the public link, clearing token and expiry.
// Idempotent: disabling an unshared file is a no-op.
func (s *ShareService) DisableShare(ctx context.Context, ownerID, fileID string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		files := s.repos.Files(tx)

		file, err := files.GetByIDForUpdate(ctx, ownerID, fileID)
		if err != nil {
			return err
		}
		if !file.Share.Active() {
			return nil
		}
		return files.UpdateShare(ctx, file.ID, models.ShareDisabled())
	})
}

// ResolvePublicDownload serves an unauthenticated download for an active
// token. An expired link is revoked on the spot (lazy, no background
// sweep) and reported as ErrLinkExpired; the next resolve for the same
// token then reads as ErrNotFound. Legacy records with no wrapped key are
// served verbatim; this shim exists only here and must not spread.
func (s *ShareService) ResolvePublicDownload(ctx context.Context, token string) (*models.UserFile, []byte, error) {
	// share_token is a uuid column; a malformed token can never match and
	// must not reach the codec as a cast error.
	if _, err := uuid.Parse(token); err != nil {
		return nil, nil, common.ErrNotFound
	}

	file, err := s.repos.Files(s.db).GetByShareToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	if file.Share.Expired(time.Now().UTC()) {
		s.revokeExpired(ctx, file.UserID, file.ID, token)
		return nil, nil, common.ErrLinkExpired
	}

	stored, err := s.blobs.Load(ctx, file.BlobRef)
	if err != nil {
		return nil, nil, fmt.Errorf("blob read: %w", err)
	}

	if len(file.WrappedKey) == 0 {
		return file, stored, nil
	}

	plaintext, err := decryptPayload(stored, file.WrappedKey, s.masterKey)
	if err != nil {
		return nil, nil, err
	}
	return file, plaintext, nil
}

// revokeExpired flips an expired share off. The row is re-read under a
// lock and the revoke only applies while the same token is still there and
// still expired: a link the owner rotated between the lookup and the
// revoke must stay live. Failure is logged; the caller reports expiry
// either way.
func (s *ShareService) revokeExpired(ctx context.Context, ownerID, fileID, token string) {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		files := s.repos.Files(tx)

		file, err := files.GetByIDForUpdate(ctx, ownerID, fileID)
		if err != nil {
			return err
		}
		current, ok := file.Share.Token()
		if !ok || current != token || !file.Share.Expired(time.Now().UTC()) {
			return nil
		}
		return files.UpdateShare(ctx, file.ID, models.ShareDisabled())
	})
	if err != nil {
		s.log.Error(ctx, "lazy share revocation failed", "file_id", fileID, "error", err)
	}
}
