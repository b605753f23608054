package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveOpenDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	rel, err := store.Save("coverage/sheet.csv", []byte("a,b\n"))
	require.NoError(t, err)
	require.Equal(t, "coverage/sheet.csv", rel)

	file, err := store.Open(rel)
	require.NoError(t, err)
	body, err := io.ReadAll(file)
	require.NoError(t, err)
	require.NoError(t, file.Close())
	require.Equal(t, "a,b\n", string(body))

	require.NoError(t, store.Delete(rel))
	require.NoError(t, store.Delete(rel))
	_, err = store.Open(rel)
	require.Error(t, err)
}

func TestLocalStorageRejectsEscapingPaths(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"../outside.csv", "coverage/../../outside.csv", "/etc/passwd", ""} {
		_, err := store.Save(name, []byte("x"))
		require.ErrorIs(t, err, ErrOutsideBase, name)
		_, err = store.Open(name)
		require.ErrorIs(t, err, ErrOutsideBase, name)
	}
	require.Empty(t, store.Path("../x"))
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = store.Save("old.csv", []byte("old"))
	require.NoError(t, err)
	_, err = store.Save("fresh.csv", []byte("fresh"))
	require.NoError(t, err)
	_, err = store.Save("coverage/2025-01/stale.pdf", []byte("stale"))
	require.NoError(t, err)
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old.csv"), past, past))
	require.NoError(t, os.Chtimes(filepath.Join(dir, "coverage", "2025-01", "stale.pdf"), past, past))

	deleted, err := store.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	require.Equal(t, []string{"coverage/2025-01/stale.pdf", "old.csv"}, deleted)
	_, err = os.Stat(filepath.Join(dir, "fresh.csv"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "coverage"))
	require.True(t, os.IsNotExist(err))
}

func TestLocalStorageSaveLeavesNoPartialFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = store.Save("sheet.csv", []byte("first"))
	require.NoError(t, err)
	_, err = store.Save("sheet.csv", []byte("second"))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	body, err := os.ReadFile(filepath.Join(dir, "sheet.csv"))
	require.NoError(t, err)
	require.Equal(t, "second", string(body))
}
