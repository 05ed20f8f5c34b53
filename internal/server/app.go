// Package server wires the storage engine together: master key, database,
// blob store, and the directory/file/share services. The transport layer
// (web or otherwise) is mounted by the embedding application and calls the
// services exposed on App.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/filevault/internal/cryptox"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/blobstore"
	"github.com/dmitrijs2005/filevault/internal/server/config"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filevault/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB

	Directories *services.DirectoryService
	Files       *services.FileService
	Shares      *services.ShareService
}

// masterKeyFromConfig resolves the master key material: a configured
// passphrase wins over raw key material. Validation failures abort startup;
// a malformed key must never reach the encryption path.
func masterKeyFromConfig(cfg *config.Config) ([]byte, error) {
	if cfg.MasterKeyPassphrase != "" {
		if cfg.MasterKeySalt == "" {
			return nil, fmt.Errorf("master key passphrase requires a salt")
		}
		return cryptox.DeriveMasterKey([]byte(cfg.MasterKeyPassphrase), []byte(cfg.MasterKeySalt)), nil
	}
	return cryptox.ParseMasterKey(cfg.MasterKey)
}

func newBlobStore(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	switch cfg.BlobBackend {
	case "disk":
		return blobstore.NewDisk(cfg.BlobRoot)
	case "s3":
		return blobstore.NewS3(ctx, blobstore.S3Options{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
			RootUser:     cfg.S3RootUser,
			RootPassword: cfg.S3RootPassword,
		})
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	masterKey, err := masterKeyFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}

	return &App{
		config:      cfg,
		logger:      logger,
		db:          db,
		Directories: services.NewDirectoryService(db, rm, blobs, logger),
		Files:       services.NewFileService(db, rm, blobs, masterKey, logger),
		Shares:      services.NewShareService(db, rm, blobs, masterKey, cfg.ShareLinkTTL, logger),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run blocks until the context is cancelled or a termination signal
// arrives, then closes the database handle.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "storage engine ready",
		"blob_backend", app.config.BlobBackend,
		"share_link_ttl", app.config.ShareLinkTTL.String())

	app.initSignalHandler(cancelFunc)

	<-ctx.Done()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "storage engine stopped")
}
