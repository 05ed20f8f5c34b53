package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/directories"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/files"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// -------- in-memory repositories --------

type memDirectories struct {
	mu   sync.Mutex
	byID map[string]*models.Directory
}

func newMemDirectories() *memDirectories {
	return &memDirectories{byID: map[string]*models.Directory{}}
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (m *memDirectories) Create(ctx context.Context, dir *models.Directory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.byID {
		if d.UserID == dir.UserID && d.Name == dir.Name && sameParent(d.ParentID, dir.ParentID) {
			return common.ErrDuplicateName
		}
	}
	cp := *dir
	m.byID[dir.ID] = &cp
	return nil
}

func (m *memDirectories) GetByID(ctx context.Context, ownerID, id string) (*models.Directory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.byID[id]
	if !ok || d.UserID != ownerID {
		return nil, common.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memDirectories) ListChildren(ctx context.Context, ownerID string, parentID *string) ([]*models.Directory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*models.Directory
	for _, d := range m.byID {
		if d.UserID == ownerID && sameParent(d.ParentID, parentID) {
			cp := *d
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *memDirectories) ListChildIDs(ctx context.Context, parentID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, d := range m.byID {
		if d.ParentID != nil && *d.ParentID == parentID {
			ids = append(ids, d.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memDirectories) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return fmt.Errorf("wrong rows affected count: 0")
	}
	delete(m.byID, id)
	return nil
}

type memFiles struct {
	mu        sync.Mutex
	byID      map[string]*models.UserFile
	createErr error
}

func newMemFiles() *memFiles {
	return &memFiles{byID: map[string]*models.UserFile{}}
}

func (m *memFiles) Create(ctx context.Context, file *models.UserFile) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *file
	m.byID[file.ID] = &cp
	return nil
}

func (m *memFiles) GetByID(ctx context.Context, ownerID, id string) (*models.UserFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.byID[id]
	if !ok || f.UserID != ownerID {
		return nil, common.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *memFiles) GetByIDForUpdate(ctx context.Context, ownerID, id string) (*models.UserFile, error) {
	return m.GetByID(ctx, ownerID, id)
}

func (m *memFiles) GetByShareToken(ctx context.Context, token string) (*models.UserFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.byID {
		if t, ok := f.Share.Token(); ok && t == token {
			cp := *f
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (m *memFiles) List(ctx context.Context, ownerID string, directoryID *string) ([]*models.UserFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*models.UserFile
	for _, f := range m.byID {
		if f.UserID == ownerID && sameParent(f.DirectoryID, directoryID) {
			cp := *f
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Filename < result[j].Filename })
	return result, nil
}

func (m *memFiles) ListInDirectory(ctx context.Context, directoryID string) ([]*models.UserFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*models.UserFile
	for _, f := range m.byID {
		if f.DirectoryID != nil && *f.DirectoryID == directoryID {
			result = append(result, &models.UserFile{ID: f.ID, BlobRef: f.BlobRef})
		}
	}
	return result, nil
}

func (m *memFiles) DeleteInDirectory(ctx context.Context, directoryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, f := range m.byID {
		if f.DirectoryID != nil && *f.DirectoryID == directoryID {
			delete(m.byID, id)
		}
	}
	return nil
}

func (m *memFiles) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return fmt.Errorf("wrong rows affected count: 0")
	}
	delete(m.byID, id)
	return nil
}

func (m *memFiles) UpdateShare(ctx context.Context, id string, share models.ShareState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("wrong rows affected count: 0")
	}
	f.Share = share
	return nil
}

// -------- in-memory blob store --------

type memBlobs struct {
	mu         sync.Mutex
	byRef      map[string][]byte
	removed    []string
	failRemove bool
}

func newMemBlobs() *memBlobs {
	return &memBlobs{byRef: map[string][]byte{}}
}

func (m *memBlobs) Save(ctx context.Context, ref string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		if _, ok := m.byRef[ref]; !ok {
			break
		}
		ref += "~"
	}
	m.byRef[ref] = append([]byte(nil), data...)
	return ref, nil
}

func (m *memBlobs) Load(ctx context.Context, ref string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.byRef[ref]
	if !ok {
		return nil, errors.New("blob missing")
	}
	return append([]byte(nil), data...), nil
}

func (m *memBlobs) Remove(ctx context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRemove {
		return errors.New("remove refused")
	}
	if _, ok := m.byRef[ref]; !ok {
		return errors.New("blob missing")
	}
	delete(m.byRef, ref)
	m.removed = append(m.removed, ref)
	return nil
}

func (m *memBlobs) RemoveDirIfEmpty(ctx context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ref := range m.byRef {
		if strings.HasPrefix(ref, prefix+"/") {
			return nil
		}
	}
	return nil
}

// tamper corrupts one byte of a stored blob in place.
func (m *memBlobs) tamper(t *testing.T, ref string) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.byRef[ref]
	require.True(t, ok, "blob %s must exist", ref)
	data[len(data)/2] ^= 0x01
}

// -------- repository manager over the fakes --------

type fakeRepoManager struct {
	dirs  *memDirectories
	files *memFiles
}

func (m *fakeRepoManager) Directories(db dbx.DBTX) directories.Repository { return m.dirs }
func (m *fakeRepoManager) Files(db dbx.DBTX) files.Repository { return m.files }
func (m *fakeRepoManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return nil
}

// -------- shared test environment --------

type testEnv struct {
	db    *sql.DB
	dirs  *memDirectories
	files *memFiles
	blobs *memBlobs
	repos *fakeRepoManager
	log   logging.Logger
}

// newTestEnv wires the services over in-memory fakes. The sqlite handle
// only carries transaction begin/commit; all data lives in the fakes.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	dirs := newMemDirectories()
	fls := newMemFiles()
	return &testEnv{
		db:    db,
		dirs:  dirs,
		files: fls,
		blobs: newMemBlobs(),
		repos: &fakeRepoManager{dirs: dirs, files: fls},
		log:   logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
}

func zeroMasterKey() []byte {
	return make([]byte, 32)
}
