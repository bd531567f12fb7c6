package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/osok/agent-patterns/core"
)

var _ core.ArtifactStore = (*FileStore)(nil)

// FileStore writes artifacts to <dir>/<session>/<artifact>. IDs are
// sanitized so callers cannot escape the base directory.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore creates the base directory if needed and returns the store.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("artifact dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func sanitize(id string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(id)
}

func (s *FileStore) sessionDir(sessionID string) string {
	return filepath.Join(s.dir, sanitize(sessionID))
}

func (s *FileStore) path(sessionID, artifactID string) string {
	return filepath.Join(s.sessionDir(sessionID), sanitize(artifactID))
}

// Save writes the artifact through a temp file and rename.
func (s *FileStore) Save(sessionID, artifactID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.sessionDir(sessionID), 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	path := s.path(sessionID, artifactID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write artifact %s: %w", artifactID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename artifact %s: %w", artifactID, err)
	}
	return nil
}

// Get reads the artifact or returns ErrNotFound.
func (s *FileStore) Get(sessionID, artifactID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(sessionID, artifactID))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", artifactID, err)
	}
	return data, nil
}

// List returns the artifact IDs of a session in sorted order.
func (s *FileStore) List(sessionID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.sessionDir(sessionID))
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}
		ids = append(ids, e.Name())
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes an artifact. Returns ErrNotFound if it does not exist.
func (s *FileStore) Delete(sessionID, artifactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(sessionID, artifactID))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete artifact %s: %w", artifactID, err)
	}
	return nil
}
