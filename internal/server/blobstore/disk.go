package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Disk stores blobs as regular files under a root directory.
type Disk struct {
	root string
}

// NewDisk creates the root directory if needed and returns a disk store.
func NewDisk(root string) (*Disk, error) {
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", root, err)
	}
	return &Disk{root: root}, nil
}

// resolve maps a ref to an absolute path, rejecting segments that could
// escape the root.
func (d *Disk) resolve(ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("empty blob ref")
	}
	for _, seg := range strings.Split(ref, "/") {
		if seg == "" || seg == "." || seg == ".." || strings.ContainsRune(seg, os.PathSeparator) {
			return "", fmt.Errorf("invalid blob ref segment")
		}
	}
	return filepath.Join(d.root, filepath.FromSlash(ref)), nil
}

func (d *Disk) Save(ctx context.Context, ref string, data []byte) (string, error) {
	p, err := d.resolve(ref)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return "", fmt.Errorf("mkdir for blob: %w", err)
	}

	// Blobs are write-once. On a name collision pick a unique variant
	// instead of overwriting an existing ciphertext.
	for {
		f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if errors.Is(err, fs.ErrExist) {
			ref = uniquify(ref)
			if p, err = d.resolve(ref); err != nil {
				return "", err
			}
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create blob: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			_ = os.Remove(p)
			return "", fmt.Errorf("write blob: %w", err)
		}
		if err := f.Close(); err != nil {
			_ = os.Remove(p)
			return "", fmt.Errorf("close blob: %w", err)
		}
		return ref, nil
	}
}

func (d *Disk) Load(ctx context.Context, ref string) ([]byte, error) {
	p, err := d.resolve(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

func (d *Disk) Remove(ctx context.Context, ref string) error {
	p, err := d.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}

func (d *Disk) RemoveDirIfEmpty(ctx context.Context, prefix string) error {
	p, err := d.resolve(prefix)
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read dir: %w", err)
	}
	if len(entries) > 0 {
		// Untracked files may legitimately remain; leave the directory.
		return nil
	}
	if err := os.Remove(p); err != nil {
		return fmt.Errorf("remove dir: %w", err)
	}
	return nil
}

// uniquify inserts a random suffix before the extension: a.txt -> a_1f2e3d4c.txt.
func uniquify(ref string) string {
	ext := filepath.Ext(ref)
	base := strings.TrimSuffix(ref, ext)
	return base + "_" + uuid.NewString()[:8] + ext
}
