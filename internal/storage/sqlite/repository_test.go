package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"oyken/internal/storage"
	"oyken/internal/storage/storagetest"
)

func TestConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Repository {
		repo, err := NewRepository(filepath.Join(t.TempDir(), "oyken.db"), nil)
		require.NoError(t, err)
		t.Cleanup(func() { repo.Close() })
		return repo
	})
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oyken.db")
	v1, err := RunMigrations(path)
	require.NoError(t, err)
	require.Equal(t, uint(2), v1)

	v2, err := RunMigrations(path)
	require.NoError(t, err)
	require.Equal(t, v1, v2)
}
