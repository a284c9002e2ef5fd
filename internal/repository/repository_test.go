package repository

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/library-catalog/internal/logging"
	"github.com/iliyamo/library-catalog/internal/model"
	"github.com/iliyamo/library-catalog/internal/persistence"
)

// writeSnapshot puts content at dir/name and returns the path.
func writeSnapshot(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newBookRepo(t *testing.T, content string) (*BookRepo, string) {
	t.Helper()
	path := writeSnapshot(t, t.TempDir(), "books.json", content)
	repo, err := NewBookRepo(persistence.NewFile[model.Book](path), logging.Nop())
	require.NoError(t, err)
	return repo, path
}

func reloadBooks(t *testing.T, path string) *BookRepo {
	t.Helper()
	repo, err := NewBookRepo(persistence.NewFile[model.Book](path), logging.Nop())
	require.NoError(t, err)
	return repo
}

// breakStorage removes the snapshot directory so every later write fails.
func breakStorage(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.RemoveAll(filepath.Dir(path)))
}

func ctx() context.Context { return context.Background() }

func codecMarshal(v any) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}
