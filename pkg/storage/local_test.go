package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_ReadWrite(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Write(ctx, "data/tasks.json", []byte(`{"tasks":[]}`)))
	data, err := s.Read(ctx, "data/tasks.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"tasks":[]}`, string(data))

	require.NoError(t, s.Write(ctx, "data/tasks.json", []byte(`[]`)))
	data, err = s.Read(ctx, "data/tasks.json")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	_, err = s.Read(ctx, "data/missing.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStorage_CreateIsExclusive(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Create(ctx, "communication/messages/task-1.json", []byte("first")))
	err = s.Create(ctx, "communication/messages/task-1.json", []byte("second"))
	require.ErrorIs(t, err, ErrExists)

	data, err := s.Read(ctx, "communication/messages/task-1.json")
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	entries, err := os.ReadDir(filepath.Join(s.BasePath(), "communication", "messages"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must be cleaned up")
}

func TestLocalStorage_List(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	paths, err := s.List(ctx, "logs")
	require.NoError(t, err)
	assert.Empty(t, paths)

	require.NoError(t, s.Write(ctx, "logs/task-a.log", []byte("a\n")))
	require.NoError(t, s.Write(ctx, "logs/task-b.log", []byte("b\n")))
	require.NoError(t, os.MkdirAll(s.Path("logs/archive"), 0o755))
	require.NoError(t, os.WriteFile(s.Path("logs/.task-c.log.123.tmp"), nil, 0o644))

	paths, err = s.List(ctx, "logs")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"logs/task-a.log", "logs/task-b.log"}, paths)
}

func TestLocalStorage_PathStaysUnderBase(t *testing.T) {
	base := t.TempDir()
	s, err := NewLocalStorage(base)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(s.BasePath(), "etc", "passwd"), s.Path("../../etc/passwd"))
}
