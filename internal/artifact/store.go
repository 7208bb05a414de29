// Package artifact stores the files produced by a pipeline run (the map
// document and the water-body GeoJSON) in per-request directories keyed by a
// generated token.
package artifact

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/robert-malhotra/waterwatch/internal/metrics"
)

// Kind identifies an artifact within a request directory.
type Kind string

const (
	// KindMap is the interactive map document.
	KindMap Kind = "map.html"

	// KindGeoJSON is the water-body feature collection.
	KindGeoJSON Kind = "water_bodies.geojson"
)

// Sentinel errors for artifact store operations
var (
	ErrInvalidToken = errors.New("invalid artifact token")
	ErrNotFound     = errors.New("artifact not found")
	ErrExpired      = errors.New("artifact expired")
)

// Store defines the interface for writing and locating request artifacts.
type Store interface {
	// NewToken returns a fresh request token.
	NewToken() string

	// Write atomically stores data as the kind artifact of token and returns
	// its path.
	Write(token string, kind Kind, data []byte) (string, error)

	// Path returns the file of an existing artifact.
	Path(token string, kind Kind) (string, error)

	// Latest returns the token and path of the most recently written
	// artifact of a kind.
	Latest(kind Kind) (token, path string, err error)
}

// entry tracks one request directory.
type entry struct {
	createdAt time.Time
	kinds     map[Kind]bool
}

// FileStore implements Store on the local filesystem with TTL-based cleanup.
// It is suitable for single-instance deployments.
type FileStore struct {
	dir      string
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
	mu       sync.RWMutex
	entries  map[string]*entry
	latest   map[Kind]string
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewFileStore creates dir if needed and starts the cleanup routine.
// ttl specifies how long request directories are kept.
// cleanupInterval specifies how often to run the cleanup routine.
// Request directories left by a previous process are adopted and expire
// relative to their modification time.
func NewFileStore(dir string, ttl, cleanupInterval time.Duration) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %q: %w", dir, err)
	}

	store := &FileStore{
		dir:      dir,
		ttl:      ttl,
		now:      time.Now,
		logger:   slog.Default(),
		entries:  make(map[string]*entry),
		latest:   make(map[Kind]string),
		stopChan: make(chan struct{}),
	}

	if err := store.adopt(); err != nil {
		return nil, err
	}

	go store.cleanupLoop(cleanupInterval)

	return store, nil
}

// WithLogger sets a custom logger for the store.
func (s *FileStore) WithLogger(logger *slog.Logger) *FileStore {
	s.logger = logger
	return s
}

// Dir returns the root output directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// NewToken returns a random UUID token.
func (s *FileStore) NewToken() string {
	return uuid.NewString()
}

// Write stores data through a temporary file and rename so readers never see
// a partial artifact.
func (s *FileStore) Write(token string, kind Kind, data []byte) (string, error) {
	if err := validateToken(token); err != nil {
		return "", err
	}

	reqDir := filepath.Join(s.dir, token)
	if err := os.MkdirAll(reqDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create request directory: %w", err)
	}

	tmp, err := os.CreateTemp(reqDir, "."+string(kind)+".*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write %s: %w", kind, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write %s: %w", kind, err)
	}

	path := filepath.Join(reqDir, string(kind))
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write %s: %w", kind, err)
	}

	s.mu.Lock()
	e, ok := s.entries[token]
	if !ok {
		e = &entry{createdAt: s.now(), kinds: make(map[Kind]bool)}
		s.entries[token] = e
	}
	e.kinds[kind] = true
	s.latest[kind] = token
	metrics.ArtifactsStored.Set(float64(len(s.entries)))
	s.mu.Unlock()

	return path, nil
}

// Path returns the file of an existing, unexpired artifact.
func (s *FileStore) Path(token string, kind Kind) (string, error) {
	if err := validateToken(token); err != nil {
		return "", err
	}

	s.mu.RLock()
	e, ok := s.entries[token]
	var expired, has bool
	if ok {
		expired = s.now().After(e.createdAt.Add(s.ttl))
		has = e.kinds[kind]
	}
	s.mu.RUnlock()

	if !ok || !has {
		return "", ErrNotFound
	}
	if expired {
		return "", ErrExpired
	}

	path := filepath.Join(s.dir, token, string(kind))
	if _, err := os.Stat(path); err != nil {
		return "", ErrNotFound
	}
	return path, nil
}

// Latest returns the most recently written artifact of a kind.
func (s *FileStore) Latest(kind Kind) (string, string, error) {
	s.mu.RLock()
	token, ok := s.latest[kind]
	s.mu.RUnlock()

	if !ok {
		return "", "", ErrNotFound
	}

	path, err := s.Path(token, kind)
	if err != nil {
		return "", "", err
	}
	return token, path, nil
}

// Stop stops the background cleanup goroutine.
func (s *FileStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// cleanupLoop periodically removes expired request directories.
func (s *FileStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopChan:
			return
		}
	}
}

// cleanup removes all expired request directories.
func (s *FileStore) cleanup() int {
	s.mu.Lock()
	now := s.now()
	var expired []string
	for token, e := range s.entries {
		if now.After(e.createdAt.Add(s.ttl)) {
			expired = append(expired, token)
			delete(s.entries, token)
		}
	}
	for kind, token := range s.latest {
		if _, ok := s.entries[token]; !ok {
			delete(s.latest, kind)
		}
	}
	metrics.ArtifactsStored.Set(float64(len(s.entries)))
	s.mu.Unlock()

	for _, token := range expired {
		if err := os.RemoveAll(filepath.Join(s.dir, token)); err != nil {
			s.logger.Warn("failed to remove expired artifacts",
				slog.String("token", token),
				slog.String("error", err.Error()),
			)
		}
	}

	if len(expired) > 0 {
		s.logger.Debug("removed expired artifacts", slog.Int("count", len(expired)))
	}
	return len(expired)
}

// adopt registers request directories already present under dir.
func (s *FileStore) adopt() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read output directory %q: %w", s.dir, err)
	}

	for _, de := range entries {
		if !de.IsDir() || validateToken(de.Name()) != nil {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}

		e := &entry{createdAt: info.ModTime(), kinds: make(map[Kind]bool)}
		for _, kind := range []Kind{KindMap, KindGeoJSON} {
			if _, err := os.Stat(filepath.Join(s.dir, de.Name(), string(kind))); err == nil {
				e.kinds[kind] = true
			}
		}
		s.entries[de.Name()] = e
	}

	metrics.ArtifactsStored.Set(float64(len(s.entries)))
	return nil
}

// Stats returns statistics about the artifact store.
func (s *FileStore) Stats() (count int, oldestAge time.Duration) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count = len(s.entries)
	if count == 0 {
		return 0, 0
	}

	var oldest time.Time
	for _, e := range s.entries {
		if oldest.IsZero() || e.createdAt.Before(oldest) {
			oldest = e.createdAt
		}
	}

	return count, s.now().Sub(oldest)
}

// validateToken accepts only UUIDs, which also keeps tokens from escaping
// the output directory.
func validateToken(token string) error {
	if _, err := uuid.Parse(token); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidToken, token)
	}
	return nil
}
