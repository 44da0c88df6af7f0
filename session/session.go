// Package session implements the per-connection state and dispatch
// loop: command framing, the currently-opened store handle, and the
// local lock-nesting counter that lets a client bundle a multi-request
// critical section with begin-lock/finish-lock.
package session

import (
	"fmt"
	"io"
	"net"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CylonicRaider/hkv"
	"github.com/CylonicRaider/hkv/internal/wire"
)

// Registry resolves a store by name, creating it on first reference.
// Implemented by *server.Registry; declared here so this package does
// not need to import server (which imports session).
type Registry interface {
	GetOrCreate(name string) hkv.Store
}

// Session is one connection's worth of state, run in its own
// goroutine by the server's accept loop.
type Session struct {
	ID       uint64
	conn     net.Conn
	codec    *wire.Codec
	registry Registry
	log      *zap.Logger

	token     *hkv.LockToken
	store     hkv.Store
	lockDepth int
}

// New constructs a session over conn. The returned Session does not
// start serving until Serve is called.
func New(id uint64, conn net.Conn, registry Registry, log *zap.Logger) *Session {
	return &Session{
		ID:       id,
		conn:     conn,
		codec:    wire.NewCodec(conn, conn),
		registry: registry,
		log: log.Named(fmt.Sprintf("client/%d", id)).
			With(zap.String("conn_id", uuid.New().String()), zap.String("remote_addr", conn.RemoteAddr().String())),
		token: hkv.NewLockToken(),
	}
}

// Serve runs the command loop until end-of-stream, an explicit quit,
// or a fatal codec error, then unwinds any held lock depth and closes
// the connection. The store itself is never closed — it is owned by
// the registry, not the session.
func (s *Session) Serve() {
	s.log.Info("session started")
	defer s.shutdown()

	for {
		cmd, err := s.codec.ReadChar()
		if err != nil {
			if err == io.EOF {
				s.log.Debug("end of stream")
			} else {
				s.log.Warn("fatal read error, ending session", zap.Error(err))
			}
			return
		}

		cont := s.dispatch(wire.Command(cmd))
		if !cont {
			return
		}
		if err := s.codec.Flush(); err != nil {
			s.log.Warn("fatal flush error, ending session", zap.Error(err))
			return
		}
	}
}

func (s *Session) shutdown() {
	_ = s.codec.Flush()
	s.releaseAll()
	s.log.Info("session closing")
	_ = s.conn.Close()
}

// dispatch handles one command and reports whether the session should
// keep serving. An error response is always terminal for the current
// command: no branch below falls through into a success path after
// writing 'e'.
func (s *Session) dispatch(cmd wire.Command) bool {
	switch cmd {
	case wire.CmdQuit:
		s.writeNothing()
		return false
	case wire.CmdOpen:
		return s.handleOpen()
	case wire.CmdCloseStore:
		s.releaseAll()
		s.store = nil
		return s.writeNothing()
	case wire.CmdBeginLock:
		if s.store == nil {
			return s.writeError(hkv.ErrNoStore)
		}
		s.beginLock()
		return s.writeNothing()
	case wire.CmdFinishLock:
		if s.store == nil {
			return s.writeError(hkv.ErrNoStore)
		}
		if err := s.finishLock(); err != nil {
			return s.writeError(err)
		}
		return s.writeNothing()
	default:
		if cmd.IsDataOp() {
			return s.dispatchDataOp(cmd)
		}
		return s.writeError(hkv.ErrNoCmd)
	}
}

func (s *Session) handleOpen() bool {
	s.releaseAll()
	name, err := s.codec.ReadBytes()
	if err != nil {
		s.log.Warn("fatal read error reading store name", zap.Error(err))
		return false
	}
	s.store = s.registry.GetOrCreate(string(name))
	s.log.Debug("store opened", zap.ByteString("store", name))
	return s.writeNothing()
}

// beginLock implements the 'b' command's 0->1 transition semantics:
// the session only touches the store's own reentrant lock on the
// first nested begin, absorbing further nesting in lockDepth.
func (s *Session) beginLock() {
	if s.lockDepth == 0 {
		s.store.Lock(s.token)
	}
	s.lockDepth++
}

// finishLock implements the 'f' command. depth 0 is BADUNLOCK.
func (s *Session) finishLock() error {
	if s.lockDepth == 0 {
		return hkv.ErrBadUnlock
	}
	s.lockDepth--
	if s.lockDepth == 0 {
		return s.store.Unlock(s.token)
	}
	return nil
}

// releaseAll unwinds the session's lock depth unconditionally, used on
// open/close/shutdown. It mirrors the "full" unlock in the original
// ClientHandler.unlock.
func (s *Session) releaseAll() {
	if s.lockDepth > 0 && s.store != nil {
		_ = s.store.Unlock(s.token)
	}
	s.lockDepth = 0
}

func codeOf(err error) hkv.Code {
	if e, ok := err.(*hkv.Error); ok {
		return e.Code
	}
	return hkv.CodeUnknown
}

func (s *Session) writeError(err error) bool {
	if werr := s.codec.WriteChar(wire.RespError); werr != nil {
		s.log.Warn("fatal write error", zap.Error(werr))
		return false
	}
	if werr := s.codec.WriteUint32(uint32(codeOf(err))); werr != nil {
		s.log.Warn("fatal write error", zap.Error(werr))
		return false
	}
	return true
}

func (s *Session) writeNothing() bool {
	if err := s.codec.WriteChar(wire.RespNothing); err != nil {
		s.log.Warn("fatal write error", zap.Error(err))
		return false
	}
	return true
}

func (s *Session) writeBytes(tag byte, b []byte) bool {
	if err := s.codec.WriteChar(tag); err != nil {
		s.log.Warn("fatal write error", zap.Error(err))
		return false
	}
	if err := s.codec.WriteBytes(b); err != nil {
		s.log.Warn("fatal write error", zap.Error(err))
		return false
	}
	return true
}

func (s *Session) writeList(tag byte, items []string) bool {
	if err := s.codec.WriteChar(tag); err != nil {
		s.log.Warn("fatal write error", zap.Error(err))
		return false
	}
	if err := s.codec.WriteStrings(items); err != nil {
		s.log.Warn("fatal write error", zap.Error(err))
		return false
	}
	return true
}

func (s *Session) writeMap(tag byte, m map[string][]byte) bool {
	if err := s.codec.WriteChar(tag); err != nil {
		s.log.Warn("fatal write error", zap.Error(err))
		return false
	}
	if err := s.codec.WriteStringMap(m); err != nil {
		s.log.Warn("fatal write error", zap.Error(err))
		return false
	}
	return true
}

// dispatchDataOp reads a data operation's arguments off the wire
// unconditionally, then checks for an open store. The stream must stay
// framed even when the command ultimately fails with NOSTORE.
func (s *Session) dispatchDataOp(cmd wire.Command) bool {
	switch cmd {
	case wire.CmdGet:
		path, err := s.codec.ReadStrings()
		if err != nil {
			return s.fatalRead(err)
		}
		if s.store == nil {
			return s.writeError(hkv.ErrNoStore)
		}
		v, err := s.store.Get(s.token, hkv.Path(path))
		if err != nil {
			return s.writeError(err)
		}
		return s.writeBytes(wire.RespBytes, v)

	case wire.CmdGetAll:
		path, err := s.codec.ReadStrings()
		if err != nil {
			return s.fatalRead(err)
		}
		if s.store == nil {
			return s.writeError(hkv.ErrNoStore)
		}
		m, err := s.store.GetAll(s.token, hkv.Path(path))
		if err != nil {
			return s.writeError(err)
		}
		return s.writeMap(wire.RespMap, m)

	case wire.CmdList:
		path, err := s.codec.ReadStrings()
		if err != nil {
			return s.fatalRead(err)
		}
		lclass, err := s.codec.ReadUint32()
		if err != nil {
			return s.fatalRead(err)
		}
		if s.store == nil {
			return s.writeError(hkv.ErrNoStore)
		}
		items, err := s.store.List(s.token, hkv.Path(path), hkv.LClass(lclass))
		if err != nil {
			return s.writeError(err)
		}
		return s.writeList(wire.RespList, items)

	case wire.CmdPut:
		path, err := s.codec.ReadStrings()
		if err != nil {
			return s.fatalRead(err)
		}
		value, err := s.codec.ReadBytes()
		if err != nil {
			return s.fatalRead(err)
		}
		if s.store == nil {
			return s.writeError(hkv.ErrNoStore)
		}
		if err := s.store.Put(s.token, hkv.Path(path), value); err != nil {
			return s.writeError(err)
		}
		return s.writeNothing()

	case wire.CmdPutAll:
		path, err := s.codec.ReadStrings()
		if err != nil {
			return s.fatalRead(err)
		}
		values, err := s.codec.ReadStringMap()
		if err != nil {
			return s.fatalRead(err)
		}
		if s.store == nil {
			return s.writeError(hkv.ErrNoStore)
		}
		if err := s.store.PutAll(s.token, hkv.Path(path), values); err != nil {
			return s.writeError(err)
		}
		return s.writeNothing()

	case wire.CmdReplace:
		path, err := s.codec.ReadStrings()
		if err != nil {
			return s.fatalRead(err)
		}
		values, err := s.codec.ReadStringMap()
		if err != nil {
			return s.fatalRead(err)
		}
		if s.store == nil {
			return s.writeError(hkv.ErrNoStore)
		}
		if err := s.store.Replace(s.token, hkv.Path(path), values); err != nil {
			return s.writeError(err)
		}
		return s.writeNothing()

	case wire.CmdDelete:
		path, err := s.codec.ReadStrings()
		if err != nil {
			return s.fatalRead(err)
		}
		if s.store == nil {
			return s.writeError(hkv.ErrNoStore)
		}
		if err := s.store.Delete(s.token, hkv.Path(path)); err != nil {
			return s.writeError(err)
		}
		return s.writeNothing()

	case wire.CmdDeleteAll:
		path, err := s.codec.ReadStrings()
		if err != nil {
			return s.fatalRead(err)
		}
		if s.store == nil {
			return s.writeError(hkv.ErrNoStore)
		}
		if err := s.store.DeleteAll(s.token, hkv.Path(path)); err != nil {
			return s.writeError(err)
		}
		return s.writeNothing()

	default:
		return s.writeError(hkv.ErrNoCmd)
	}
}

func (s *Session) fatalRead(err error) bool {
	s.log.Warn("fatal read error reading arguments", zap.Error(err))
	return false
}
