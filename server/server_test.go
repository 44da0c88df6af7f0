package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/CylonicRaider/hkv"
	"github.com/CylonicRaider/hkv/client"
)

func startTestServer(t *testing.T) (addr string, srv *Server) {
	t.Helper()
	srv = New(zaptest.NewLogger(t))

	// Serve blocks and binds its own listener on an ephemeral port, so
	// run it in the background.
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve("127.0.0.1:0") }()

	// Poll Addr until Serve has started listening, then use the bound
	// address it reports.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if a := srv.Addr(); a != nil {
			return a.String(), srv
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("server did not start listening in time")
	return "", nil
}

func TestServerRoundTripOverRemoteStore(t *testing.T) {
	addr, srv := startTestServer(t)
	defer srv.Close()

	rs, err := client.Dial(addr, "db1")
	require.NoError(t, err)
	defer rs.Close()

	tok := hkv.NewLockToken()
	require.NoError(t, rs.Put(tok, hkv.Path{"a"}, []byte("hello")))

	got, err := rs.Get(tok, hkv.Path{"a"})
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)
}

func TestServerTwoClientsShareANamedStore(t *testing.T) {
	addr, srv := startTestServer(t)
	defer srv.Close()

	a, err := client.Dial(addr, "shared")
	require.NoError(t, err)
	defer a.Close()
	b, err := client.Dial(addr, "shared")
	require.NoError(t, err)
	defer b.Close()

	tok := hkv.NewLockToken()
	require.NoError(t, a.Put(tok, hkv.Path{"k"}, []byte("v")))

	got, err := b.Get(tok, hkv.Path{"k"})
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)
}

func TestServerDistinctStoreNamesAreIsolated(t *testing.T) {
	addr, srv := startTestServer(t)
	defer srv.Close()

	a, err := client.Dial(addr, "one")
	require.NoError(t, err)
	defer a.Close()
	b, err := client.Dial(addr, "two")
	require.NoError(t, err)
	defer b.Close()

	tok := hkv.NewLockToken()
	require.NoError(t, a.Put(tok, hkv.Path{"k"}, []byte("v")))

	_, err = b.Get(tok, hkv.Path{"k"})
	require.Error(t, err)
}

func TestServerRemoteLockSerializesCriticalSection(t *testing.T) {
	addr, srv := startTestServer(t)
	defer srv.Close()

	a, err := client.Dial(addr, "locked")
	require.NoError(t, err)
	defer a.Close()
	b, err := client.Dial(addr, "locked")
	require.NoError(t, err)
	defer b.Close()

	tok := hkv.NewLockToken()
	a.Lock(tok)

	done := make(chan struct{})
	go func() {
		b.Lock(tok)
		close(done)
		b.Unlock(tok)
	}()

	select {
	case <-done:
		t.Fatal("second connection's lock acquired while the first still held it")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, a.Unlock(tok))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second connection never acquired the lock")
	}
}
