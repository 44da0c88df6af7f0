package session

import (
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/CylonicRaider/hkv"
	"github.com/CylonicRaider/hkv/internal/wire"
)

// stubRegistry hands out a fixed set of stores by name, creating a
// fresh MemStore for any name not already present.
type stubRegistry struct {
	stores map[string]*hkv.MemStore
}

func newStubRegistry() *stubRegistry {
	return &stubRegistry{stores: make(map[string]*hkv.MemStore)}
}

func (r *stubRegistry) GetOrCreate(name string) hkv.Store {
	if s, ok := r.stores[name]; ok {
		return s
	}
	s := hkv.NewMemStore()
	r.stores[name] = s
	return s
}

// harness wires a Session to one end of an in-memory pipe and returns
// a Codec over the other end for the test to act as a client.
func harness(t *testing.T, reg Registry) (*wire.Codec, func()) {
	t.Helper()
	server, client := net.Pipe()
	sess := New(1, server, reg, zaptest.NewLogger(t))

	done := make(chan struct{})
	go func() {
		sess.Serve()
		close(done)
	}()

	codec := wire.NewCodec(client, client)
	cleanup := func() {
		client.Close()
		<-done
	}
	return codec, cleanup
}

func readStatus(t *testing.T, c *wire.Codec) byte {
	t.Helper()
	require.NoError(t, c.Flush())
	tag, err := c.ReadChar()
	require.NoError(t, err)
	return tag
}

func TestSessionOpenPutGet(t *testing.T) {
	reg := newStubRegistry()
	c, cleanup := harness(t, reg)
	defer cleanup()

	require.NoError(t, c.WriteChar(byte(wire.CmdOpen)))
	require.NoError(t, c.WriteBytes([]byte("db1")))
	require.Equal(t, wire.RespNothing, readStatus(t, c))

	require.NoError(t, c.WriteChar(byte(wire.CmdPut)))
	require.NoError(t, c.WriteStrings([]string{"a"}))
	require.NoError(t, c.WriteBytes([]byte("v")))
	require.Equal(t, wire.RespNothing, readStatus(t, c))

	require.NoError(t, c.WriteChar(byte(wire.CmdGet)))
	require.NoError(t, c.WriteStrings([]string{"a"}))
	require.Equal(t, wire.RespBytes, readStatus(t, c))
	v, err := c.ReadBytes()
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)
}

func TestSessionDataOpWithoutOpenIsNoStore(t *testing.T) {
	reg := newStubRegistry()
	c, cleanup := harness(t, reg)
	defer cleanup()

	require.NoError(t, c.WriteChar(byte(wire.CmdGet)))
	require.NoError(t, c.WriteStrings([]string{"a"}))
	require.Equal(t, wire.RespError, readStatus(t, c))
	code, err := c.ReadUint32()
	require.NoError(t, err)
	require.Equal(t, uint32(hkv.CodeNoStore), code)
}

func TestSessionErrorResponseIsTerminalForBeginLock(t *testing.T) {
	reg := newStubRegistry()
	c, cleanup := harness(t, reg)
	defer cleanup()

	// No store opened: 'b' must report NOSTORE and nothing else, then
	// the connection must still be alive for the next command.
	require.NoError(t, c.WriteChar(byte(wire.CmdBeginLock)))
	require.Equal(t, wire.RespError, readStatus(t, c))
	_, err := c.ReadUint32()
	require.NoError(t, err)

	require.NoError(t, c.WriteChar(byte(wire.CmdOpen)))
	require.NoError(t, c.WriteBytes([]byte("db1")))
	require.Equal(t, wire.RespNothing, readStatus(t, c))
}

func TestSessionLockUnlockNesting(t *testing.T) {
	reg := newStubRegistry()
	c, cleanup := harness(t, reg)
	defer cleanup()

	require.NoError(t, c.WriteChar(byte(wire.CmdOpen)))
	require.NoError(t, c.WriteBytes([]byte("db1")))
	require.Equal(t, wire.RespNothing, readStatus(t, c))

	require.NoError(t, c.WriteChar(byte(wire.CmdBeginLock)))
	require.Equal(t, wire.RespNothing, readStatus(t, c))
	require.NoError(t, c.WriteChar(byte(wire.CmdBeginLock)))
	require.Equal(t, wire.RespNothing, readStatus(t, c))

	require.NoError(t, c.WriteChar(byte(wire.CmdFinishLock)))
	require.Equal(t, wire.RespNothing, readStatus(t, c))
	require.NoError(t, c.WriteChar(byte(wire.CmdFinishLock)))
	require.Equal(t, wire.RespNothing, readStatus(t, c))

	// A third finish-lock with no matching begin is BADUNLOCK.
	require.NoError(t, c.WriteChar(byte(wire.CmdFinishLock)))
	require.Equal(t, wire.RespError, readStatus(t, c))
	code, err := c.ReadUint32()
	require.NoError(t, err)
	require.Equal(t, uint32(hkv.CodeBadUnlock), code)
}

func TestSessionQuitEndsStream(t *testing.T) {
	reg := newStubRegistry()
	c, cleanup := harness(t, reg)
	defer cleanup()

	require.NoError(t, c.WriteChar(byte(wire.CmdQuit)))
	require.Equal(t, wire.RespNothing, readStatus(t, c))

	_, err := c.ReadChar()
	require.True(t, err == io.EOF || err != nil)
}
