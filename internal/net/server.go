package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server upgrades websocket requests into Sessions. New and dead sessions
// are handed to the game loop through channels.
type Server struct {
	listener net.Listener
	http     *http.Server
	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	newConns chan *Session
	deadCh   chan uint64
	opts     SessionOptions
	reg      *Registry
	codec    *Codec
	health   atomic.Pointer[HealthCheck]
	log      *zap.Logger
}

// HealthCheck reports whether a dependency of the server is usable.
type HealthCheck func(ctx context.Context) error

func NewServer(bindAddr, wsPath string, opts SessionOptions, reg *Registry, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	codec, err := NewCodec()
	if err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", bindAddr, err)
	}
	s := &Server{
		listener: ln,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		newConns: make(chan *Session, 64),
		deadCh:   make(chan uint64, 64),
		opts:     opts,
		reg:      reg,
		codec:    codec,
		log:      log,
	}
	mux := http.NewServeMux()
	mux.HandleFunc(wsPath, s.handleWS)
	mux.HandleFunc("/health", s.handleHealth)
	s.http = &http.Server{Handler: mux}
	return s, nil
}

// Serve runs the HTTP server until Shutdown.
func (s *Server) Serve() error {
	if err := s.http.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	id := s.nextID.Add(1)
	sess := newSession(conn, id, s.opts, s.reg, s.codec, s.log)
	s.log.Info("client connected", zap.Uint64("session", id), zap.String("ip", sess.IP))

	select {
	case s.newConns <- sess:
	default:
		s.log.Warn("connection queue full, rejecting client")
		sess.Close()
		return
	}
	sess.start()
	go func() {
		<-sess.Done()
		s.NotifyDead(id)
	}()
}

// SetHealthCheck makes /health answer 503 while check fails.
func (s *Server) SetHealthCheck(check HealthCheck) {
	s.health.Store(&check)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if check := s.health.Load(); check != nil {
		if err := (*check)(r.Context()); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(err.Error()))
			return
		}
	}
	w.Write([]byte("ok"))
}

// NewSessions returns the channel of newly connected sessions.
func (s *Server) NewSessions() <-chan *Session {
	return s.newConns
}

// NotifyDead reports a dead session ID to the game loop.
func (s *Server) NotifyDead(sessionID uint64) {
	select {
	case s.deadCh <- sessionID:
	default:
		s.log.Warn("dead session queue full", zap.Uint64("session", sessionID))
	}
}

// DeadSessions returns the channel of dead session IDs.
func (s *Server) DeadSessions() <-chan uint64 {
	return s.deadCh
}

// Shutdown stops accepting connections.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
