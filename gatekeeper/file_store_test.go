package gatekeeper_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kick-dev/kick-host-sdk/gatekeeper"
)

func TestFileStore(t *testing.T) {
	t.Run("MissingFileMeansNoDecisions", func(t *testing.T) {
		store := gatekeeper.NewFileStore(gatekeeper.WithPath(
			filepath.Join(t.TempDir(), "nope", "sources.yaml"),
		))
		decisions, err := store.Load()
		require.NoError(t, err)
		assert.Empty(t, decisions)
	})

	t.Run("SaveLoadRoundTrip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "approvals", "sources.yaml")
		store := gatekeeper.NewFileStore(gatekeeper.WithPath(path))

		want := map[string]bool{
			"https://cdn.example.com/bundle.wasm": true,
			"https://sketchy.example.com/x.wasm":  false,
		}
		require.NoError(t, store.Save(want))

		got, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("FileIsOperatorOnly", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sources.yaml")
		store := gatekeeper.NewFileStore(gatekeeper.WithPath(path))
		require.NoError(t, store.Save(map[string]bool{"https://a.example/x": true}))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("CorruptFileIsAnError", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sources.yaml")
		require.NoError(t, os.WriteFile(path, []byte("sources: [not: a: map"), 0o600))

		store := gatekeeper.NewFileStore(gatekeeper.WithPath(path))
		_, err := store.Load()
		require.Error(t, err)
	})
}
