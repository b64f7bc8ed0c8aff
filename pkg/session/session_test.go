package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))

	require.NoError(t, store.Save(&Session{Cookie: "SUB=abc123", UserAgent: "test-agent"}))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "SUB=abc123", loaded.Cookie)
	assert.Equal(t, "test-agent", loaded.UserAgent)
}

func TestFileStorePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewFileStore(path)
	require.NoError(t, store.Save(&Session{Cookie: "SUB=abc123"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileStoreMissing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Clear(), ErrNotFound)
}

func TestFileStoreRejectsEmptyCookie(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	assert.ErrorIs(t, store.Save(&Session{}), ErrInvalidSession)
	assert.ErrorIs(t, store.Save(nil), ErrInvalidSession)
}

func TestFileStoreClear(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, store.Save(&Session{Cookie: "SUB=abc123"}))
	require.NoError(t, store.Clear())

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManagerFallsBackToFile(t *testing.T) {
	// the keyring is typically unavailable in test environments; the manager
	// must still work through the file backend
	mgr, err := NewManager(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, mgr.Save(&Session{Cookie: "SUB=abc123"}))

	loaded, err := mgr.Load()
	require.NoError(t, err)
	assert.Equal(t, "SUB=abc123", loaded.Cookie)
	assert.False(t, loaded.LastModified.IsZero())

	require.NoError(t, mgr.Clear())
	_, err = mgr.Load()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "", Sanitize(nil))
	assert.Equal(t, "********", Sanitize(&Session{Cookie: "short"}))
	assert.Equal(t, "SUB=...wxyz", Sanitize(&Session{Cookie: "SUB=abcdefghijklmnopqrstuvwxyz"}))
}
