package cache

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/texloader/texloader/pkg/logging"
)

// ErrNotFound is returned by Read when no cached file exists for the
// identifier. Callers treat it as an expected condition, not a failure.
var ErrNotFound = errors.New("cache entry not found")

const (
	dirMode  os.FileMode = 0o755
	fileMode os.FileMode = 0o644
)

// Store maps resource identifiers to files under a fixed root directory.
//
// The key is the identifier's base filename only, so two identifiers with the
// same basename share one cache slot. That collision is intentional and must
// not be "fixed" by namespacing: changing the key scheme observably changes
// cache-hit behavior.
//
// Reads and writes for the same identifier are not locked against each other.
// Writes go to a temporary path and are renamed into place, so a racing read
// sees either the old bytes or the new bytes, never a torn file.
type Store struct {
	fs     afero.Fs
	root   string
	logger logging.Interface
}

// NewStore creates a cache store from the given configuration.
func NewStore(config *Config) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cache config: %w", err)
	}

	fs := config.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &Store{
		fs:     fs,
		root:   config.Root,
		logger: logger,
	}, nil
}

// Key derives the cache filename for an identifier: the base filename of the
// URL path for remote identifiers, or of the identifier itself otherwise.
func Key(identifier string) string {
	if i := strings.Index(identifier, "://"); i >= 0 {
		identifier = identifier[i+3:]
	}
	return path.Base(identifier)
}

// Path resolves the local file path an identifier maps to.
func (s *Store) Path(identifier string) string {
	return filepath.Join(s.root, Key(identifier))
}

// Exists reports whether a cached file is present for the identifier.
func (s *Store) Exists(identifier string) bool {
	info, err := s.fs.Stat(s.Path(identifier))
	return err == nil && !info.IsDir()
}

// Read returns the cached bytes for the identifier, or ErrNotFound when no
// entry exists.
func (s *Store) Read(identifier string) ([]byte, error) {
	p := s.Path(identifier)

	data, err := afero.ReadFile(s.fs, p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "reading cache entry %s", p)
	}

	return data, nil
}

// Write persists the bytes for the identifier. The parent directory is
// created if absent. The payload lands in a temporary file first and is
// renamed into place, so an interrupted write never leaves a partial file at
// the final path.
func (s *Store) Write(identifier string, data []byte) error {
	p := s.Path(identifier)

	if err := s.fs.MkdirAll(s.root, dirMode); err != nil {
		return errors.Wrapf(err, "creating cache root %s", s.root)
	}

	tmp := filepath.Join(s.root, ".tmp-"+uuid.NewString())
	if err := afero.WriteFile(s.fs, tmp, data, fileMode); err != nil {
		return errors.Wrapf(err, "writing cache entry %s", p)
	}

	if err := s.fs.Rename(tmp, p); err != nil {
		_ = s.fs.Remove(tmp)
		return errors.Wrapf(err, "renaming cache entry into place at %s", p)
	}

	s.logger.WithField("path", p).WithField("bytes", len(data)).Debug("cached texture payload")
	return nil
}

// Remove deletes the cached file for the identifier, if any.
func (s *Store) Remove(identifier string) error {
	err := s.fs.Remove(s.Path(identifier))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing cache entry %s", s.Path(identifier))
	}
	return nil
}
