package archive

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFS_ImplementsStore(t *testing.T) {
	var _ Store = (*LocalFS)(nil)
}

func TestLocalFS_PutGet(t *testing.T) {
	fs, err := NewLocalFS(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, fs.Put(ctx, "runs/a/result.json", []byte(`{"ok":true}`)))
	got, err := fs.Get(ctx, "runs/a/result.json")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(got))

	_, err = fs.Get(ctx, "runs/missing.json")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLocalFS_Exists(t *testing.T) {
	fs, err := NewLocalFS(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	exists, err := fs.Exists(ctx, "nonexistent.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, fs.Put(ctx, "exists.txt", []byte("data")))
	exists, err = fs.Exists(ctx, "exists.txt")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLocalFS_ListSortedByPrefix(t *testing.T) {
	fs, err := NewLocalFS(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, k := range []string{"runs/b/x.json", "runs/a/x.json", "other/y.json"} {
		require.NoError(t, fs.Put(ctx, k, []byte("1")))
	}

	keys, err := fs.List(ctx, "runs/")
	require.NoError(t, err)
	assert.Equal(t, []string{"runs/a/x.json", "runs/b/x.json"}, keys)

	keys, err = fs.List(ctx, "nothing/")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestLocalFS_Delete(t *testing.T) {
	fs, err := NewLocalFS(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, fs.Put(ctx, "a.txt", []byte("1")))
	require.NoError(t, fs.Delete(ctx, "a.txt"))
	exists, _ := fs.Exists(ctx, "a.txt")
	assert.False(t, exists)
	assert.NoError(t, fs.Delete(ctx, "a.txt"), "deleting twice is not an error")
}

func TestLocalFS_RejectsEscapingKeys(t *testing.T) {
	fs, err := NewLocalFS(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, k := range []string{"", "/etc/passwd", "../outside", "runs/../../x"} {
		assert.Error(t, fs.Put(ctx, k, []byte("x")), k)
	}
}
