package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ErrInsecurePermissions is returned for key files readable by group or others.
var ErrInsecurePermissions = errors.New("insecure key file permissions")

// FileSource reads the API key from a single file.
//
// The file must be a regular file with 0600 or 0400 permissions. Its content
// is trimmed of surrounding whitespace and cached. With watching enabled the
// containing directory is monitored and the cache is dropped whenever the
// file is written, created or renamed into place, which covers editors that
// replace files and Kubernetes secret volumes that swap symlinks.
type FileSource struct {
	path   string
	logger *slog.Logger

	mu     sync.RWMutex
	cached string
	loaded bool

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewFileSource creates a key source for path. The file is read once up
// front so a missing or unreadable key fails at startup.
func NewFileSource(path string, watch bool, logger *slog.Logger) (*FileSource, error) {
	if logger == nil {
		logger = slog.Default()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve key file path: %w", err)
	}

	s := &FileSource{
		path:   absPath,
		logger: logger.With("component", "secrets.file"),
	}

	if _, err := s.APIKey(context.Background()); err != nil {
		return nil, err
	}

	if watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("failed to create file watcher: %w", err)
		}

		if err := watcher.Add(filepath.Dir(absPath)); err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("failed to watch key directory: %w", err)
		}

		s.watcher = watcher
		s.stopCh = make(chan struct{})
		s.doneCh = make(chan struct{})
		go s.watchLoop()
	}

	s.logger.Info("collector key file loaded",
		"path", absPath,
		"watch", watch,
	)

	return s, nil
}

// APIKey returns the cached key, reading the file if the cache is empty.
func (s *FileSource) APIKey(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.loaded {
		key := s.cached
		s.mu.RUnlock()
		return key, nil
	}
	s.mu.RUnlock()

	key, err := readKeyFile(s.path)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.cached = key
	s.loaded = true
	s.mu.Unlock()

	return key, nil
}

// Source returns the source name.
func (s *FileSource) Source() string {
	return "file"
}

// Refresh drops the cached key so the next APIKey call re-reads the file.
func (s *FileSource) Refresh() {
	s.mu.Lock()
	s.cached = ""
	s.loaded = false
	s.mu.Unlock()
}

// Close stops the watcher, if any.
func (s *FileSource) Close() error {
	if s.watcher == nil {
		return nil
	}
	close(s.stopCh)
	err := s.watcher.Close()
	<-s.doneCh
	return err
}

func (s *FileSource) watchLoop() {
	defer close(s.doneCh)

	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !s.relevant(event) {
				continue
			}

			s.logger.Debug("key file change detected",
				"file", filepath.Base(event.Name),
				"op", event.Op.String(),
			)
			s.Refresh()

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("key file watcher error", "error", err)

		case <-s.stopCh:
			return
		}
	}
}

// relevant reports whether event may have changed the key file. Events for
// the "..data" symlink are included for Kubernetes secret volumes.
func (s *FileSource) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Clean(event.Name)
	return name == s.path || filepath.Base(name) == "..data"
}

func readKeyFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("key file not found: %s: %w", path, err)
		}
		return "", fmt.Errorf("failed to stat key file: %w", err)
	}

	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("key path is not a regular file: %s", path)
	}

	mode := info.Mode().Perm()
	if mode != 0600 && mode != 0400 {
		return "", fmt.Errorf("%w on %s: %o (expected 0600 or 0400)", ErrInsecurePermissions, path, mode)
	}

	// #nosec G304 - path comes from operator configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read key file: %w", err)
	}

	return strings.TrimSpace(string(data)), nil
}
