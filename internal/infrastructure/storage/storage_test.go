package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"textile-vision/internal/domain/entity"
)

func TestMemoryUserRepository_GetCreatesUser(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	u, err := repo.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, u.State)

	u.SetState(entity.StateAwaitingPhoto)
	again, err := repo.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, again.State, "changes are visible only after Save")

	require.NoError(t, repo.Save(ctx, u))
	again, err = repo.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingPhoto, again.State)
}

func TestMemoryUserRepository_RecordResult(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	u, err := repo.Get(ctx, 2, 20)
	require.NoError(t, err)
	u.SetState(entity.StateProcessing)
	require.NoError(t, repo.Save(ctx, u))

	require.NoError(t, repo.RecordResult(ctx, 2, entity.LabelOilSpot))

	u, err = repo.Get(ctx, 2, 20)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, u.State)
	require.Equal(t, entity.LabelOilSpot, u.LastLabel)
}

func TestTempUploadStore_SaveAndRemove(t *testing.T) {
	store, err := NewTempUploadStore(t.TempDir())
	require.NoError(t, err)

	path, err := store.Save("../../etc/my fabric.jpg", strings.NewReader("data"))
	require.NoError(t, err)
	require.Equal(t, store.Dir(), filepath.Dir(path))
	require.True(t, strings.HasSuffix(path, "_my_fabric.jpg"))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "data", string(b))

	require.NoError(t, store.Remove(path))
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))

	// повторное удаление не ошибка
	require.NoError(t, store.Remove(path))
}

func TestTempUploadStore_RemoveOutsideDir(t *testing.T) {
	store, err := NewTempUploadStore(t.TempDir())
	require.NoError(t, err)

	outside := filepath.Join(t.TempDir(), "keep.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o600))

	require.Error(t, store.Remove(outside))
	_, err = os.Stat(outside)
	require.NoError(t, err)
}

func TestSanitizeName(t *testing.T) {
	require.Equal(t, "upload", sanitizeName(""))
	require.Equal(t, "a_b.png", sanitizeName(`C:\tmp\a b.png`))
	require.Equal(t, "clip.mp4", sanitizeName("clip.mp4"))
}
