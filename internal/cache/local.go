package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// DefaultStorageDir is the default local storage directory name
	DefaultStorageDir = ".fwb-cache"

	// bucketName is the BoltDB bucket name for storage entries
	bucketName = "bundles"
)

// LocalStorage is a Storage backend on the local filesystem. Bundle blobs
// live as gzipped tarballs under <root>/artifacts/ and entry metadata is
// kept in BoltDB.
type LocalStorage struct {
	db   *bbolt.DB
	root string
}

// StorageEntry is the metadata kept per stored bundle.
type StorageEntry struct {
	Fingerprint string    `json:"fingerprint"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewLocalStorage opens (or creates) local storage rooted at dir.
// If dir is empty, DefaultStorageDir in the current working directory is used.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}

		dir = filepath.Join(cwd, DefaultStorageDir)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	dbPath := filepath.Join(dir, "storage.db")
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create storage bucket: %w", err)
	}

	return &LocalStorage{db: db, root: dir}, nil
}

// Close closes the storage database.
func (s *LocalStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}

	return nil
}

// Store packs bundleDir and records it under the given fingerprint. The blob
// is written to a temp file and renamed into place so concurrent readers
// never see a partial archive.
func (s *LocalStorage) Store(ctx context.Context, fingerprint, bundleDir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Join(s.root, "artifacts"), 0o755); err != nil {
		return fmt.Errorf("failed to create artifacts directory: %w", err)
	}

	blobPath := s.blobPath(fingerprint)

	tmp, err := os.CreateTemp(filepath.Dir(blobPath), "blob-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary blob: %w", err)
	}

	if err := packBundle(bundleDir, tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	if err := os.Rename(tmp.Name(), blobPath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to place blob: %w", err)
	}

	info, err := os.Stat(blobPath)
	if err != nil {
		return err
	}

	entry := StorageEntry{
		Fingerprint: fingerprint,
		Size:        info.Size(),
		CreatedAt:   time.Now(),
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}

		return b.Put([]byte(fingerprint), data)
	})
	if err != nil {
		return fmt.Errorf("failed to store entry metadata: %w", err)
	}

	return nil
}

// Fetch unpacks the bundle stored under fingerprint at destDir. Returns
// false when no blob exists for the fingerprint.
func (s *LocalStorage) Fetch(ctx context.Context, fingerprint, destDir string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	blobPath := s.blobPath(fingerprint)

	f, err := os.Open(blobPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, err
	}
	defer f.Close()

	if err := restoreBundle(f, destDir); err != nil {
		return false, err
	}

	return true, nil
}

// Clear removes all stored entries and blobs.
func (s *LocalStorage) Clear() error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketName)); err != nil {
			return err
		}

		_, err := tx.CreateBucket([]byte(bucketName))

		return err
	})
	if err != nil {
		return err
	}

	artifactsDir := filepath.Join(s.root, "artifacts")
	if err := os.RemoveAll(artifactsDir); err != nil {
		return fmt.Errorf("failed to remove artifacts: %w", err)
	}

	return nil
}

// Stats returns the number of stored bundles and their total size.
func (s *LocalStorage) Stats() (int, int64, error) {
	var count int
	var totalSize int64

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		return b.ForEach(func(k, v []byte) error {
			var entry StorageEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}

			count++
			totalSize += entry.Size

			return nil
		})
	})
	if err != nil {
		return 0, 0, err
	}

	return count, totalSize, nil
}

func (s *LocalStorage) blobPath(fingerprint string) string {
	return filepath.Join(s.root, "artifacts", fingerprint+".tar.gz")
}
