// Package services implements the storage engine's boundary operations:
// the directory tree store, the file store, and the share link manager.
package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/blobstore"
	"github.com/sethvargo/go-retry"
)

// maxTreeDepth bounds every walk over the directory tree. A chain deeper
// than this indicates a corrupted parent graph, not a legitimate layout.
const maxTreeDepth = 64

// removeBlobWithRetry deletes a blob with bounded backoff. Physical cleanup
// is best-effort: the metadata transaction has already committed, so a final
// failure is logged and swallowed, leaving an orphaned blob at worst.
func removeBlobWithRetry(ctx context.Context, log logging.Logger, blobs blobstore.Store, ref string) {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(100*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := blobs.Remove(ctx, ref); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		log.Warn(ctx, "blob cleanup failed, orphan left behind", "ref", ref, "error", err)
	}
}

// reclaimDir attempts to remove a now-empty physical directory. Failure is
// logged and swallowed.
func reclaimDir(ctx context.Context, log logging.Logger, blobs blobstore.Store, prefix string) {
	if err := blobs.RemoveDirIfEmpty(ctx, prefix); err != nil {
		log.Warn(ctx, "physical directory reclaim failed", "prefix", prefix, "error", err)
	}
}
