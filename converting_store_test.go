package hkv

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// upperStore wraps a MemStore so that every key is stored upper-case
// internally and reported lower-case externally, exercising both
// directions of every hook.
func upperStore() *ConvertingStore {
	return &ConvertingStore{
		Wrapped:     NewMemStore(),
		ImportKey:   func(k string, _ bool) string { return strings.ToUpper(k) },
		ExportKey:   func(k string, _ bool) string { return strings.ToLower(k) },
		ImportValue: func(v []byte) []byte { return append([]byte("in:"), v...) },
		ExportValue: func(v []byte) []byte { return v[len("in:"):] },
	}
}

func TestConvertingStorePutGetRoundTrip(t *testing.T) {
	cs := upperStore()
	tok := NewLockToken()

	require.NoError(t, cs.Put(tok, Path{"a"}, []byte("hello")))
	got, err := cs.Get(tok, Path{"a"})
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)

	raw, err := cs.Wrapped.Get(tok, Path{"A"})
	require.NoError(t, err)
	require.Equal(t, []byte("in:hello"), raw)
}

func TestConvertingStoreGetAllExportsKeysAndValues(t *testing.T) {
	cs := upperStore()
	tok := NewLockToken()

	require.NoError(t, cs.PutAll(tok, Path{"p"}, map[string][]byte{"one": []byte("1")}))
	got, err := cs.GetAll(tok, Path{"p"})
	require.NoError(t, err)
	require.Equal(t, map[string][]byte{"one": []byte("1")}, got)
}

func TestConvertingStoreListExportsKeys(t *testing.T) {
	cs := upperStore()
	tok := NewLockToken()

	require.NoError(t, cs.Put(tok, Path{"child"}, []byte("v")))
	items, err := cs.List(tok, Path{}, LClassAny)
	require.NoError(t, err)
	require.Equal(t, []string{"child"}, items)
}

func TestConvertingStoreDelegatesLockAndUnlock(t *testing.T) {
	cs := upperStore()
	tok := NewLockToken()

	cs.Lock(tok)
	require.NoError(t, cs.Unlock(tok))
	require.ErrorIs(t, cs.Unlock(tok), error(ErrBadUnlock))
}
