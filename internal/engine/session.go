package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"statcube/internal/domain"
)

// Session tracks tables and temp files created during one binding or
// assembly attempt so they can be released even when validation fails
// part-way through. Close is safe to defer unconditionally; tracking is
// safe for concurrent builders.
type Session struct {
	e      *Engine
	mu     sync.Mutex
	tables []string
	files  []string
	kept   bool
}

// NewSession starts a scoped session against the engine.
func (e *Engine) NewSession() *Session {
	return &Session{e: e}
}

// CreateTableFromFile loads a file into a tracked table.
func (s *Session) CreateTableFromFile(ctx context.Context, name, localPath string, fileType domain.FileType) error {
	if err := s.e.CreateTableFromFile(ctx, name, localPath, fileType); err != nil {
		return err
	}
	s.track(name)
	return nil
}

// CreateTable creates a tracked empty table.
func (s *Session) CreateTable(ctx context.Context, name string, cols []ColumnDef) error {
	if err := s.e.CreateTable(ctx, name, cols); err != nil {
		return err
	}
	s.track(name)
	return nil
}

// StageBuffer writes bytes to a temp file the engine can read, tracked for
// removal on Close.
func (s *Session) StageBuffer(data []byte, suffix string) (string, error) {
	path := filepath.Join(os.TempDir(), "statcube_"+uuid.New().String()+suffix)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.files = append(s.files, path)
	s.mu.Unlock()
	return path, nil
}

func (s *Session) track(table string) {
	s.mu.Lock()
	s.tables = append(s.tables, table)
	s.mu.Unlock()
}

// Keep marks the session's tables as permanent: Close will still remove
// staged temp files but leave the tables in place. Called only after a
// binding or assembly attempt fully succeeds.
func (s *Session) Keep() {
	s.mu.Lock()
	s.kept = true
	s.mu.Unlock()
}

// Close drops every tracked table (unless kept) and removes staged files.
// Runs on a background-safe context so cancellation of the originating
// request cannot leak engine tables.
func (s *Session) Close() {
	ctx := context.Background()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.kept {
		for i := len(s.tables) - 1; i >= 0; i-- {
			if err := s.e.DropTable(ctx, s.tables[i]); err != nil {
				s.e.logger.Warn("drop session table", "table", s.tables[i], "error", err)
			}
		}
	}
	for _, f := range s.files {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			s.e.logger.Warn("remove staged file", "path", f, "error", err)
		}
	}
	s.tables = nil
	s.files = nil
}
