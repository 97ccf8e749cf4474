// Package store implements the content-addressable snapshot blob store
// (C2): put/get/exists/remove/list over a directory sharded by the first
// two hex characters of each SHA-256 checksum.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog/log"

	"github.com/ftm-project/ftm/internal/errors"
)

const checksumLen = 64

// Store is a lock-free, directory-level content store: concurrent puts
// race on rename (harmless, same content), removes are unlinks, gets are
// plain opens.
type Store struct {
	root string // .ftm/snapshots
	tmp  string // .ftm/snapshots/.tmp
}

func New(root string) (*Store, error) {
	s := &Store{root: root, tmp: filepath.Join(root, ".tmp")}
	if err := os.MkdirAll(s.tmp, 0o755); err != nil {
		return nil, errors.IO("failed to create snapshot tmp dir", err)
	}
	return s, nil
}

func (s *Store) shardedPath(checksum string) (string, error) {
	if len(checksum) != checksumLen {
		return "", errors.Corrupt(fmt.Sprintf("invalid checksum %q", checksum), nil)
	}
	return filepath.Join(s.root, checksum[0:2], checksum[2:4], checksum), nil
}

// Put writes data to the store under checksum, the caller-computed
// SHA-256 of data. A successful Put is durable (fsynced) before returning. If
// the blob already exists, the write is skipped entirely — Put is
// idempotent.
func (s *Store) Put(checksum string, data []byte) error {
	dest, err := s.shardedPath(checksum)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dest); err == nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.IO("failed to create shard directory", err)
	}

	tmp, err := os.CreateTemp(s.tmp, checksum+".*")
	if err != nil {
		return errors.IO("failed to create temp snapshot file", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.IO("failed to write temp snapshot file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.IO("failed to fsync temp snapshot file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.IO("failed to close temp snapshot file", err)
	}

	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		// Another writer may have raced us to the same destination with
		// identical content; that's success, not failure.
		if _, statErr := os.Stat(dest); statErr == nil {
			return nil
		}
		return errors.IO("failed to rename temp snapshot into place", err)
	}

	fsyncDir(filepath.Dir(dest))
	return nil
}

// fsyncDir makes a rename durable against a crash. Not supported (or
// needed) on Windows, whose filesystem journal already covers renames.
func fsyncDir(dir string) {
	if runtime.GOOS == "windows" {
		return
	}
	d, err := os.Open(dir)
	if err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("failed to open directory for fsync")
		return
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("failed to fsync directory")
	}
}

func (s *Store) Get(checksum string) ([]byte, error) {
	p, err := s.shardedPath(checksum)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("snapshot " + checksum)
		}
		return nil, errors.IO("failed to read snapshot", err)
	}
	return data, nil
}

func (s *Store) Exists(checksum string) bool {
	p, err := s.shardedPath(checksum)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Remove unlinks a blob. A missing file is not an error — callers may
// race with a concurrent remove of the same orphaned checksum.
func (s *Store) Remove(checksum string) error {
	p, err := s.shardedPath(checksum)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return errors.IO("failed to remove snapshot", err)
	}
	return nil
}

// List scans the two-level shard tree and returns every checksum found.
func (s *Store) List() (map[string]struct{}, error) {
	out := make(map[string]struct{})

	l1, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, errors.IO("failed to list snapshot store", err)
	}

	for _, e1 := range l1 {
		if !e1.IsDir() || e1.Name() == ".tmp" {
			continue
		}
		l2, err := os.ReadDir(filepath.Join(s.root, e1.Name()))
		if err != nil {
			continue
		}
		for _, e2 := range l2 {
			if !e2.IsDir() {
				continue
			}
			l3, err := os.ReadDir(filepath.Join(s.root, e1.Name(), e2.Name()))
			if err != nil {
				continue
			}
			for _, blob := range l3 {
				if !blob.IsDir() && len(blob.Name()) == checksumLen {
					out[blob.Name()] = struct{}{}
				}
			}
		}
	}
	return out, nil
}

// CleanOrphanedTemp removes leftover temp files from a crashed Put, as
// driven by the engine's clean_interval housekeeping pass.
func (s *Store) CleanOrphanedTemp(olderThan func(os.FileInfo) bool) {
	entries, err := os.ReadDir(s.tmp)
	if err != nil {
		return
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if olderThan(info) {
			os.Remove(filepath.Join(s.tmp, e.Name()))
		}
	}
}
