package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/cryptox"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/blobstore"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// FileService implements encrypt-on-write / decrypt-on-read file storage.
// Every upload gets a fresh file key; the key is wrapped under the server
// master key before it touches the database.
type FileService struct {
	db        *sql.DB
	repos     repomanager.RepositoryManager
	blobs     blobstore.Store
	masterKey []byte
	log       logging.Logger
}

func NewFileService(db *sql.DB, repos repomanager.RepositoryManager, blobs blobstore.Store, masterKey []byte, log logging.Logger) *FileService {
	return &FileService{db: db, repos: repos, blobs: blobs, masterKey: masterKey, log: log}
}

// Upload encrypts data under a fresh per-file key, wraps the key under the
// master key, writes the ciphertext blob, and persists the metadata. When
// the metadata insert fails the already-written blob is removed so no
// partial record survives.
func (s *FileService) Upload(ctx context.Context, ownerID string, directoryID *string, data []byte, filename string) (*models.UserFile, error) {
	if filename == "" {
		return nil, fmt.Errorf("filename must not be empty")
	}

	if directoryID != nil {
		if _, err := s.repos.Directories(s.db).GetByID(ctx, ownerID, *directoryID); err != nil {
			return nil, err
		}
	}

	fileKey, err := cryptox.GenerateFileKey()
	if err != nil {
		return nil, err
	}
	ciphertext, err := cryptox.Encrypt(data, fileKey)
	if err != nil {
		return nil, err
	}
	wrapped, err := cryptox.WrapKey(fileKey, s.masterKey)
	if err != nil {
		return nil, err
	}

	ref, err := s.blobs.Save(ctx, blobstore.BuildRef(ownerID, directoryID, filename), ciphertext)
	if err != nil {
		return nil, fmt.Errorf("blob write: %w", err)
	}

	file := &models.UserFile{
		ID:          uuid.NewString(),
		UserID:      ownerID,
		DirectoryID: directoryID,
		WrappedKey:  wrapped,
		Filename:    filename,
		UploadedAt:  time.Now().UTC(),
		BlobRef:     ref,
		Share:       models.ShareDisabled(),
	}
	if err := s.repos.Files(s.db).Create(ctx, file); err != nil {
		if rmErr := s.blobs.Remove(ctx, ref); rmErr != nil {
			s.log.Warn(ctx, "orphaned blob after failed upload", "ref", ref, "error", rmErr)
		}
		return nil, err
	}
	return file, nil
}

// Download returns the decrypted contents of a file owned by ownerID.
// Unwrap and decrypt faults surface as ErrDecryption; raw ciphertext is
// never handed to the caller on failure.
func (s *FileService) Download(ctx context.Context, ownerID, fileID string) ([]byte, error) {
	file, err := s.repos.Files(s.db).GetByID(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}

	ciphertext, err := s.blobs.Load(ctx, file.BlobRef)
	if err != nil {
		return nil, fmt.Errorf("blob read: %w", err)
	}

	return decryptPayload(ciphertext, file.WrappedKey, s.masterKey)
}

// Delete removes the metadata record and the physical ciphertext. The
// metadata deletion is authoritative; a blob-removal failure is logged but
// does not undo it.
func (s *FileService) Delete(ctx context.Context, ownerID, fileID string) error {
	file, err := s.repos.Files(s.db).GetByID(ctx, ownerID, fileID)
	if err != nil {
		return err
	}

	if err := s.repos.Files(s.db).Delete(ctx, file.ID); err != nil {
		return err
	}

	removeBlobWithRetry(ctx, s.log, s.blobs, file.BlobRef)
	if file.DirectoryID != nil {
		reclaimDir(ctx, s.log, s.blobs, blobstore.DirPrefix(ownerID, *file.DirectoryID))
	}
	reclaimDir(ctx, s.log, s.blobs, ownerID)

	return nil
}

// List returns the files directly in directoryID (nil for the root) owned
// by ownerID, ordered by filename.
func (s *FileService) List(ctx context.Context, ownerID string, directoryID *string) ([]*models.UserFile, error) {
	return s.repos.Files(s.db).List(ctx, ownerID, directoryID)
}

// decryptPayload runs the envelope decrypt path: unwrap the file key under
// the master key, then open the payload. Either fault rolls up into
// ErrDecryption while preserving the cause for errors.Is.
func decryptPayload(ciphertext, wrappedKey, masterKey []byte) ([]byte, error) {
	fileKey, err := cryptox.UnwrapKey(wrappedKey, masterKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrDecryption, err)
	}
	plaintext, err := cryptox.Decrypt(ciphertext, fileKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrDecryption, err)
	}
	return plaintext, nil
}
