package pebble_test

import (
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/picatz/miktos"
	"github.com/picatz/miktos/internal/history/storage"
	backendPebble "github.com/picatz/miktos/internal/history/storage/pebble"
	"github.com/picatz/miktos/internal/history/storage/tests"
	"github.com/shoenig/test/must"
)

func TestBackend_dir(t *testing.T) {
	b, err := backendPebble.NewBackend(t.TempDir(), nil, &storage.JSONCodec[string, string]{})
	must.NoError(t, err)
	must.NotNil(t, b)
	t.Cleanup(func() { must.NoError(t, b.Close(t.Context())) })

	tests.BackendSuite(t, b)
}

func TestBackend_mem_vfs(t *testing.T) {
	opts := &pebble.Options{
		FS: vfs.NewMem(),
	}

	b, err := backendPebble.NewBackend("", opts, &storage.JSONCodec[string, string]{})
	must.NoError(t, err)
	must.NotNil(t, b)

	tests.BackendSuite(t, b)
}

func TestBackend_mem_vfs_messages(t *testing.T) {
	codec := &storage.JSONCodec[string, miktos.Message]{}

	opts := &pebble.Options{
		FS: vfs.NewMem(),
	}

	b, err := backendPebble.NewBackend("", opts, codec)
	must.NoError(t, err)
	must.NotNil(t, b)

	tests.BackendSuite_messages(t, b)
}

func TestBackend_reopen(t *testing.T) {
	dir := t.TempDir()
	codec := &storage.JSONCodec[string, string]{}

	b, err := backendPebble.NewBackend(dir, nil, codec)
	must.NoError(t, err)
	must.NoError(t, b.Set(t.Context(), "k1", "persisted"))
	must.NoError(t, b.Close(t.Context()))

	b, err = backendPebble.NewBackend(dir, nil, codec)
	must.NoError(t, err)
	t.Cleanup(func() { must.NoError(t, b.Close(t.Context())) })

	value, ok, err := b.Get(t.Context(), "k1")
	must.NoError(t, err)
	must.True(t, ok)
	must.Eq(t, "persisted", value)
}
