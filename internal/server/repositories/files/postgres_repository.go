package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/server/models"
)

// PostgresRepository implements file metadata storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// shareColumns flattens a ShareState into the three persisted columns.
func shareColumns(s models.ShareState) (isShared bool, token, expiresAt any) {
	if !s.Active() {
		return false, nil, nil
	}
	tok, _ := s.Token()
	exp, _ := s.ExpiresAt()
	return true, tok, exp
}

// scanShare rebuilds a ShareState from the persisted columns.
func scanShare(isShared bool, token sql.NullString, expiresAt sql.NullTime) models.ShareState {
	if !isShared {
		return models.ShareDisabled()
	}
	return models.ShareActive(token.String, expiresAt.Time)
}

func (r *PostgresRepository) Create(ctx context.Context, file *models.UserFile) error {
	isShared, token, expiresAt := shareColumns(file.Share)
	query := `
		INSERT INTO files (id, user_id, directory_id, wrapped_key, filename, uploaded_at, blob_ref, is_shared, share_token, share_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		file.ID, file.UserID, file.DirectoryID, file.WrappedKey, file.Filename,
		file.UploadedAt, file.BlobRef, isShared, token, expiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const selectColumns = `id, user_id, directory_id, wrapped_key, filename, uploaded_at, blob_ref, is_shared, share_token, share_expires_at`

func scanFile(row interface{ Scan(...any) error }) (*models.UserFile, error) {
	file := &models.UserFile{}
	var isShared bool
	var token sql.NullString
	var expiresAt sql.NullTime
	err := row.Scan(&file.ID, &file.UserID, &file.DirectoryID, &file.WrappedKey,
		&file.Filename, &file.UploadedAt, &file.BlobRef, &isShared, &token, &expiresAt)
	if err != nil {
		return nil, err
	}
	file.Share = scanShare(isShared, token, expiresAt)
	return file, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, ownerID, id string) (*models.UserFile, error) {
	query := `SELECT ` + selectColumns + ` FROM files WHERE id=$1 AND user_id=$2`
	file, err := scanFile(r.db.QueryRowContext(ctx, query, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	return file, nil
}

func (r *PostgresRepository) GetByIDForUpdate(ctx context.Context, ownerID, id string) (*models.UserFile, error) {
	query := `SELECT ` + selectColumns + ` FROM files WHERE id=$1 AND user_id=$2 FOR UPDATE`
	file, err := scanFile(r.db.QueryRowContext(ctx, query, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	return file, nil
}

func (r *PostgresRepository) GetByShareToken(ctx context.Context, token string) (*models.UserFile, error) {
	query := `SELECT ` + selectColumns + ` FROM files WHERE share_token=$1 AND is_shared=true`
	file, err := scanFile(r.db.QueryRowContext(ctx, query, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	return file, nil
}

func (r *PostgresRepository) List(ctx context.Context, ownerID string, directoryID *string) ([]*models.UserFile, error) {
	query := `
		SELECT ` + selectColumns + ` FROM files
		WHERE user_id=$1 AND directory_id IS NOT DISTINCT FROM $2
		ORDER BY filename
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID, directoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.UserFile
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, file)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) ListInDirectory(ctx context.Context, directoryID string) ([]*models.UserFile, error) {
	query := `SELECT id, blob_ref FROM files WHERE directory_id=$1`
	rows, err := r.db.QueryContext(ctx, query, directoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.UserFile
	for rows.Next() {
		var item models.UserFile
		if err := rows.Scan(&item.ID, &item.BlobRef); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) DeleteInDirectory(ctx context.Context, directoryID string) error {
	query := `DELETE FROM files WHERE directory_id=$1`
	if _, err := r.db.ExecContext(ctx, query, directoryID); err != nil {
		return fmt.Errorf("failed to delete files: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM files WHERE id=$1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("wrong rows affected count: %d", ra)
	}
	return nil
}

func (r *PostgresRepository) UpdateShare(ctx context.Context, id string, share models.ShareState) error {
	isShared, token, expiresAt := shareColumns(share)
	query := `UPDATE files SET is_shared=$2, share_token=$3, share_expires_at=$4 WHERE id=$1`
	result, err := r.db.ExecContext(ctx, query, id, isShared, token, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to update share state: %w", err)
	}
	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("wrong rows affected count: %d", ra)
	}
	return nil
}
