// includenav/helpers_alias_store.go
// Contains the bbolt-backed persistent alias table store.
package includenav

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var aliasBucketName = []byte("AliasTables")

// AliasStore persists alias tables across sessions, keyed by project root and
// validated against the config file hashes recorded at save time.
type AliasStore struct {
	db     *bbolt.DB
	logger *slog.Logger
}

// DefaultAliasStorePath returns the versioned store location under the user cache dir.
func DefaultAliasStorePath() (string, error) {
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("%w: resolving user cache dir: %w", ErrCache, err)
	}
	dbDir := filepath.Join(userCacheDir, configDirName, "bboltdb", fmt.Sprintf("v%d", cacheSchemaVersion))
	if err := os.MkdirAll(dbDir, 0750); err != nil {
		return "", fmt.Errorf("%w: creating %s: %w", ErrCache, dbDir, err)
	}
	return filepath.Join(dbDir, "alias_cache.db"), nil
}

// OpenAliasStore opens (or creates) the bbolt file at dbPath.
func OpenAliasStore(dbPath string, logger *slog.Logger) (*AliasStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	storeLogger := logger.With("component", "AliasStore", "path", dbPath)

	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: opening bbolt file: %w", ErrCache, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(aliasBucketName); err != nil {
			return fmt.Errorf("failed to create cache bucket %s: %w", string(aliasBucketName), err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", ErrCache, err)
	}
	storeLogger.Info("Using bbolt alias store", "schema_version", cacheSchemaVersion)
	return &AliasStore{db: db, logger: storeLogger}, nil
}

// Lookup returns the persisted table for root if its config hashes still match.
func (s *AliasStore) Lookup(root string, hashes map[string]string) ([]AliasEntry, bool) {
	logger := s.logger.With("root", root)
	var raw []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(aliasBucketName)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(root)); v != nil {
			raw = bytes.Clone(v)
		}
		return nil
	})
	if err != nil {
		logger.Warn("Alias store read failed", "error", fmt.Errorf("%w: %w", ErrCacheRead, err))
		return nil, false
	}
	if raw == nil {
		return nil, false
	}

	var record CachedAliasTable
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&record); err != nil {
		logger.Warn("Alias store record undecodable, ignoring", "error", fmt.Errorf("%w: %w", ErrCacheDecode, err))
		return nil, false
	}
	if record.SchemaVersion != cacheSchemaVersion {
		logger.Debug("Alias store record has stale schema", "cached", record.SchemaVersion, "current", cacheSchemaVersion)
		return nil, false
	}
	if !compareConfigHashes(hashes, record.ConfigHashes, logger) {
		return nil, false
	}
	var entries []AliasEntry
	if err := gob.NewDecoder(bytes.NewReader(record.EntriesGob)).Decode(&entries); err != nil {
		logger.Warn("Alias store entries undecodable, ignoring", "error", fmt.Errorf("%w: %w", ErrCacheDecode, err))
		return nil, false
	}
	return entries, true
}

// Save writes the table for root together with the config hashes it was built from.
func (s *AliasStore) Save(root string, hashes map[string]string, entries []AliasEntry) error {
	var entriesBuf bytes.Buffer
	if err := gob.NewEncoder(&entriesBuf).Encode(entries); err != nil {
		return fmt.Errorf("%w: entries: %w", ErrCacheEncode, err)
	}
	record := CachedAliasTable{
		SchemaVersion: cacheSchemaVersion,
		ConfigHashes:  hashes,
		EntriesGob:    entriesBuf.Bytes(),
	}
	var recordBuf bytes.Buffer
	if err := gob.NewEncoder(&recordBuf).Encode(record); err != nil {
		return fmt.Errorf("%w: record: %w", ErrCacheEncode, err)
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(aliasBucketName)
		if b == nil {
			return errors.New("alias bucket missing")
		}
		return b.Put([]byte(root), recordBuf.Bytes())
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCacheWrite, err)
	}
	s.logger.Debug("Alias table persisted", "root", root, "entries", len(entries))
	return nil
}

// Delete removes the record for root.
func (s *AliasStore) Delete(root string) error {
	logger := s.logger.With("root", root)
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(aliasBucketName)
		if b == nil {
			logger.Warn("Alias bucket not found during delete attempt.")
			return nil
		}
		if b.Get([]byte(root)) == nil {
			return nil
		}
		logger.Debug("Deleting alias store entry")
		return b.Delete([]byte(root))
	})
	if err != nil {
		return fmt.Errorf("%w: failed to delete entry %s: %w", ErrCacheWrite, root, err)
	}
	return nil
}

// Clear removes every record.
func (s *AliasStore) Clear() error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(aliasBucketName) != nil {
			if err := tx.DeleteBucket(aliasBucketName); err != nil {
				return err
			}
		}
		_, err := tx.CreateBucket(aliasBucketName)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: clearing alias bucket: %w", ErrCacheWrite, err)
	}
	return nil
}

// Close releases the bbolt file.
func (s *AliasStore) Close() error {
	s.logger.Info("Closing bbolt alias store.")
	return s.db.Close()
}

// compareConfigHashes reports whether current and cached fingerprints agree.
func compareConfigHashes(current, cached map[string]string, logger *slog.Logger) bool {
	if len(current) != len(cached) {
		logger.Debug("Cache invalid: config file count mismatch", "current_count", len(current), "cached_count", len(cached))
		return false
	}
	for name, currentHash := range current {
		if cached[name] != currentHash {
			logger.Debug("Cache invalid: config hash mismatch", "file", name)
			return false
		}
	}
	return true
}
