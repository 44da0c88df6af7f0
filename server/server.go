package server

import (
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/CylonicRaider/hkv/session"
)

// Server accepts TCP connections and runs one Session per connection
// against a shared Registry, tracking active sessions in a table keyed
// by the sequential id assigned at accept time.
type Server struct {
	Registry *Registry
	log      *zap.Logger

	listener net.Listener
	nextID   uint64
	closing  uint32

	mu       sync.Mutex
	sessions map[uint64]*session.Session
	wg       sync.WaitGroup
}

// New creates a Server. Serve must be called to actually accept
// connections.
func New(log *zap.Logger) *Server {
	l := log.Named("server")
	return &Server{
		Registry: NewRegistry(l),
		log:      l,
		sessions: make(map[uint64]*session.Session),
	}
}

// Serve accepts connections on addr until Close is called, blocking
// the calling goroutine. Each accepted connection is served in its own
// goroutine.
func (s *Server) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.log.Info("listening", zap.String("addr", addr))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosing() {
				return nil
			}
			s.log.Warn("transient accept error", zap.Error(err))
			continue
		}
		s.wg.Add(1)
		go s.handle(conn)
	}
}

func (s *Server) isClosing() bool {
	return atomic.LoadUint32(&s.closing) != 0
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()

	id := atomic.AddUint64(&s.nextID, 1)
	sess := session.New(id, conn, s.Registry, s.log)

	s.addSession(id, sess)
	defer s.removeSession(id)

	sess.Serve()
}

func (s *Server) addSession(id uint64, sess *session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = sess
	s.log.Debug("session registered", zap.Uint64("session_id", id), zap.Int("active", len(s.sessions)))
}

func (s *Server) removeSession(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	s.log.Debug("session unregistered", zap.Uint64("session_id", id), zap.Int("active", len(s.sessions)))
}

// ActiveSessionCount reports the number of connections currently being
// served.
func (s *Server) ActiveSessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Addr returns the listener's bound address, or nil if Serve has not
// started listening yet.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close stops accepting new connections and waits for in-flight
// sessions to finish, then closes every store in the registry.
func (s *Server) Close() error {
	atomic.StoreUint32(&s.closing, 1)
	var err error
	s.mu.Lock()
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	s.Registry.CloseAll()
	return err
}
