// Package tests holds a conformance suite shared by storage backends.
package tests

import (
	"slices"
	"testing"

	"github.com/picatz/miktos"
	"github.com/picatz/miktos/internal/history/storage"
	"github.com/shoenig/test/must"
)

// BackendSuite tests a backend implementation of the storage package, using
// the provided backend instance to perform the tests.
//
// Keys are fixed-length so that encoded and raw orderings agree.
func BackendSuite(t *testing.T, backend storage.Backend[string, string]) {
	t.Helper()

	_, ok, err := backend.Get(t.Context(), "k0")
	must.NoError(t, err)
	must.False(t, ok)

	// Inserted out of order.
	for _, key := range []string{"k2", "k0", "k3", "k1"} {
		must.NoError(t, backend.Set(t.Context(), key, "v"+key[1:]))
	}

	value, ok, err := backend.Get(t.Context(), "k2")
	must.NoError(t, err)
	must.True(t, ok)
	must.Eq(t, "v2", value)

	// Overwrite keeps a single entry.
	must.NoError(t, backend.Set(t.Context(), "k2", "v2b"))

	var keys, values []string
	entries, next, err := backend.List(t.Context(), storage.PageSize(3), nil)
	must.NoError(t, err)
	must.NotNil(t, next)
	must.Eq(t, "k3", *next)

	for key, value := range entries {
		keys = append(keys, key)
		values = append(values, value)
	}

	entries, next, err = backend.List(t.Context(), storage.PageSize(3), next)
	must.NoError(t, err)
	must.Nil(t, next)

	for key, value := range entries {
		keys = append(keys, key)
		values = append(values, value)
	}

	must.Eq(t, []string{"k0", "k1", "k2", "k3"}, keys)
	must.Eq(t, []string{"v0", "v1", "v2b", "v3"}, values)

	// Default page size covers everything.
	entries, next, err = backend.List(t.Context(), nil, nil)
	must.NoError(t, err)
	must.Nil(t, next)

	var all []string
	for key := range entries {
		all = append(all, key)
	}
	must.Eq(t, keys, all)

	// Stopping early is allowed.
	for range entries {
		break
	}

	must.NoError(t, backend.Delete(t.Context(), "k1"))
	must.NoError(t, backend.Delete(t.Context(), "missing"))

	_, ok, err = backend.Get(t.Context(), "k1")
	must.NoError(t, err)
	must.False(t, ok)

	entries, _, err = backend.List(t.Context(), nil, storage.PageToken("k1"))
	must.NoError(t, err)

	var rest []string
	for key := range entries {
		rest = append(rest, key)
	}
	must.True(t, slices.Equal([]string{"k2", "k3"}, rest))

	must.NoError(t, backend.Flush(t.Context()))
}

// BackendSuite_messages checks that structured values round trip.
func BackendSuite_messages(t *testing.T, b storage.Backend[string, miktos.Message]) {
	t.Helper()

	first := miktos.Message{Role: miktos.ChatRoleSystem, Content: "You are terse."}
	second := miktos.Message{Role: miktos.ChatRoleUser, Content: "Explain goroutines."}

	must.NoError(t, b.Set(t.Context(), "m1", first))
	must.NoError(t, b.Set(t.Context(), "m2", second))

	value, ok, err := b.Get(t.Context(), "m2")
	must.NoError(t, err)
	must.True(t, ok)
	must.Eq(t, second, value)

	entries, next, err := b.List(t.Context(), storage.PageSize(1), nil)
	must.NoError(t, err)
	must.NotNil(t, next)

	for key, value := range entries {
		must.Eq(t, "m1", key)
		must.Eq(t, first, value)
	}

	entries, next, err = b.List(t.Context(), nil, next)
	must.NoError(t, err)
	must.Nil(t, next)

	for key, value := range entries {
		must.Eq(t, "m2", key)
		must.Eq(t, second, value)
	}
}
