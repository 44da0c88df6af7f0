// Package client implements RemoteStore, a Store that speaks the wire
// protocol of internal/wire to a server.Server over a single TCP
// connection.
package client

import (
	"net"
	"sync"

	"github.com/CylonicRaider/hkv"
	"github.com/CylonicRaider/hkv/internal/wire"
)

// RemoteStore is an hkv.Store proxy over one TCP connection. Every
// call issues exactly one request and waits for its response; calls
// from multiple goroutines are serialized by an internal mutex, since
// the underlying connection is not multiplexed.
//
// Lock and Unlock use the remote-only binding decided for the
// connection-per-client-handler design: they send 'b'/'f' and return
// as soon as the server acknowledges, without holding RemoteStore's
// own transport mutex across the span between them. The exclusion
// itself is enforced entirely by the server-side store; two calls
// issued from the same RemoteStore between Lock and Unlock still
// serialize on the transport mutex like any other pair of calls, but a
// second RemoteStore (a second connection) blocks inside the server,
// not on this client's mutex.
type RemoteStore struct {
	mu    sync.Mutex
	conn  net.Conn
	codec *wire.Codec
}

// Dial connects to addr and opens the named store on the server.
func Dial(addr, name string) (*RemoteStore, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	rs := &RemoteStore{conn: conn, codec: wire.NewCodec(conn, conn)}
	if err := rs.open(name); err != nil {
		conn.Close()
		return nil, err
	}
	return rs, nil
}

func (r *RemoteStore) open(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.codec.WriteChar(byte(wire.CmdOpen)); err != nil {
		return err
	}
	if err := r.codec.WriteBytes([]byte(name)); err != nil {
		return err
	}
	_, err := r.roundTripNothing()
	return err
}

// roundTripNothing flushes the pending request and reads a '-'/'e'
// response, returning the decoded *hkv.Error on failure. Caller must
// hold mu.
func (r *RemoteStore) roundTripNothing() (struct{}, error) {
	if err := r.codec.Flush(); err != nil {
		return struct{}{}, err
	}
	tag, err := r.codec.ReadChar()
	if err != nil {
		return struct{}{}, err
	}
	if tag == wire.RespError {
		return struct{}{}, r.readError()
	}
	return struct{}{}, nil
}

func (r *RemoteStore) readError() error {
	code, err := r.codec.ReadUint32()
	if err != nil {
		return err
	}
	return hkv.ErrorForCode(hkv.Code(code))
}

// Lock implements hkv.Store.Lock with the remote-only binding.
func (r *RemoteStore) Lock(_ *hkv.LockToken) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.codec.WriteChar(byte(wire.CmdBeginLock))
	_, _ = r.roundTripNothing()
}

// Unlock implements hkv.Store.Unlock with the remote-only binding.
func (r *RemoteStore) Unlock(_ *hkv.LockToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.codec.WriteChar(byte(wire.CmdFinishLock)); err != nil {
		return err
	}
	_, err := r.roundTripNothing()
	return err
}

// Close closes the underlying connection. Unlike MemStore.Close, which
// renders the store unusable, this only tears down this client's
// transport; the server-side store is unaffected.
func (r *RemoteStore) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.codec.WriteChar(byte(wire.CmdQuit))
	_ = r.codec.Flush()
	_ = r.conn.Close()
}

func (r *RemoteStore) Get(_ *hkv.LockToken, path hkv.Path) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.codec.WriteChar(byte(wire.CmdGet)); err != nil {
		return nil, err
	}
	if err := r.codec.WriteStrings([]string(path)); err != nil {
		return nil, err
	}
	if err := r.codec.Flush(); err != nil {
		return nil, err
	}
	tag, err := r.codec.ReadChar()
	if err != nil {
		return nil, err
	}
	if tag == wire.RespError {
		return nil, r.readError()
	}
	return r.codec.ReadBytes()
}

func (r *RemoteStore) GetAll(_ *hkv.LockToken, path hkv.Path) (map[string][]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.codec.WriteChar(byte(wire.CmdGetAll)); err != nil {
		return nil, err
	}
	if err := r.codec.WriteStrings([]string(path)); err != nil {
		return nil, err
	}
	if err := r.codec.Flush(); err != nil {
		return nil, err
	}
	tag, err := r.codec.ReadChar()
	if err != nil {
		return nil, err
	}
	if tag == wire.RespError {
		return nil, r.readError()
	}
	return r.codec.ReadStringMap()
}

func (r *RemoteStore) List(_ *hkv.LockToken, path hkv.Path, lclass hkv.LClass) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.codec.WriteChar(byte(wire.CmdList)); err != nil {
		return nil, err
	}
	if err := r.codec.WriteStrings([]string(path)); err != nil {
		return nil, err
	}
	if err := r.codec.WriteUint32(uint32(lclass)); err != nil {
		return nil, err
	}
	if err := r.codec.Flush(); err != nil {
		return nil, err
	}
	tag, err := r.codec.ReadChar()
	if err != nil {
		return nil, err
	}
	if tag == wire.RespError {
		return nil, r.readError()
	}
	return r.codec.ReadStrings()
}

func (r *RemoteStore) Put(_ *hkv.LockToken, path hkv.Path, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.codec.WriteChar(byte(wire.CmdPut)); err != nil {
		return err
	}
	if err := r.codec.WriteStrings([]string(path)); err != nil {
		return err
	}
	if err := r.codec.WriteBytes(value); err != nil {
		return err
	}
	_, err := r.roundTripNothing()
	return err
}

func (r *RemoteStore) PutAll(_ *hkv.LockToken, path hkv.Path, values map[string][]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.codec.WriteChar(byte(wire.CmdPutAll)); err != nil {
		return err
	}
	if err := r.codec.WriteStrings([]string(path)); err != nil {
		return err
	}
	if err := r.codec.WriteStringMap(values); err != nil {
		return err
	}
	_, err := r.roundTripNothing()
	return err
}

func (r *RemoteStore) Replace(_ *hkv.LockToken, path hkv.Path, values map[string][]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.codec.WriteChar(byte(wire.CmdReplace)); err != nil {
		return err
	}
	if err := r.codec.WriteStrings([]string(path)); err != nil {
		return err
	}
	if err := r.codec.WriteStringMap(values); err != nil {
		return err
	}
	_, err := r.roundTripNothing()
	return err
}

func (r *RemoteStore) Delete(_ *hkv.LockToken, path hkv.Path) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.codec.WriteChar(byte(wire.CmdDelete)); err != nil {
		return err
	}
	if err := r.codec.WriteStrings([]string(path)); err != nil {
		return err
	}
	_, err := r.roundTripNothing()
	return err
}

func (r *RemoteStore) DeleteAll(_ *hkv.LockToken, path hkv.Path) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.codec.WriteChar(byte(wire.CmdDeleteAll)); err != nil {
		return err
	}
	if err := r.codec.WriteStrings([]string(path)); err != nil {
		return err
	}
	_, err := r.roundTripNothing()
	return err
}

var _ hkv.Store = (*RemoteStore)(nil)
