// Package repomanager builds repositories over a shared DB handle so that
// services can compose them inside one transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/directories"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/files"
)

type RepositoryManager interface {
	Directories(db dbx.DBTX) directories.Repository
	Files(db dbx.DBTX) files.Repository
	RunMigrations(ctx context.Context, db *sql.DB) error
}
