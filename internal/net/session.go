package net

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Session is one websocket client. Network I/O runs in dedicated goroutines;
// queued messages are consumed by the game loop.
type Session struct {
	ID   uint64
	IP   string
	conn *websocket.Conn

	state atomic.Int32 // SessionState

	// Set by the hello handler before the session leaves StateConnected.
	Name    string
	ActorID string

	InQueue  chan *Message // game loop reads queued messages here
	OutQueue chan []byte   // writer goroutine reads frames here

	outBuf [][]byte // game loop only, flushed by FlushOutput

	reg          *Registry
	codec        *Codec
	readTimeout  time.Duration
	writeTimeout time.Duration

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	log *zap.Logger
}

// SessionOptions configures queue sizes and timeouts of new sessions.
type SessionOptions struct {
	InQueueSize  int
	OutQueueSize int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func newSession(conn *websocket.Conn, id uint64, opts SessionOptions, reg *Registry, codec *Codec, log *zap.Logger) *Session {
	s := &Session{
		ID:           id,
		IP:           conn.RemoteAddr().String(),
		conn:         conn,
		InQueue:      make(chan *Message, opts.InQueueSize),
		OutQueue:     make(chan []byte, opts.OutQueueSize),
		reg:          reg,
		codec:        codec,
		readTimeout:  opts.ReadTimeout,
		writeTimeout: opts.WriteTimeout,
		closeCh:      make(chan struct{}),
		log:          log.With(zap.Uint64("session", id)),
	}
	s.state.Store(int32(StateConnected))
	return s
}

// NewDetachedSession creates a session with no connection. Replies stay in
// OutQueue for the caller to read. Used by in-process clients and tests.
func NewDetachedSession(id uint64, opts SessionOptions, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Session{
		ID:       id,
		IP:       "local",
		InQueue:  make(chan *Message, opts.InQueueSize),
		OutQueue: make(chan []byte, opts.OutQueueSize),
		closeCh:  make(chan struct{}),
		log:      log.With(zap.Uint64("session", id)),
	}
	s.state.Store(int32(StateConnected))
	return s
}

func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *Session) SetState(st SessionState) {
	s.state.Store(int32(st))
}

func (s *Session) start() {
	go s.readLoop()
	go s.writeLoop()
}

// Enqueue hands a message to the game loop, blocking until there is room or
// the session closes.
func (s *Session) Enqueue(msg *Message) bool {
	select {
	case s.InQueue <- msg:
		return true
	case <-s.closeCh:
		return false
	}
}

// Send buffers a message until FlushOutput. Game loop only.
func (s *Session) Send(v any) {
	if s.closed.Load() {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Error("encode message", zap.Error(err))
		return
	}
	s.outBuf = append(s.outBuf, b)
}

// FlushOutput moves buffered messages to the writer. A full OutQueue
// disconnects the slow client.
func (s *Session) FlushOutput() {
	for _, b := range s.outBuf {
		if !s.push(b) {
			break
		}
	}
	clear(s.outBuf)
	s.outBuf = s.outBuf[:0]
}

// Reply writes a message without waiting for the game loop. Safe from any
// goroutine.
func (s *Session) Reply(v any) {
	if s.closed.Load() {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Error("encode reply", zap.Error(err))
		return
	}
	s.push(b)
}

func (s *Session) push(b []byte) bool {
	select {
	case s.OutQueue <- b:
		return true
	default:
		s.log.Warn("output queue full, dropping slow client")
		s.Close()
		return false
	}
}

// Close shuts the session down. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.SetState(StateDisconnecting)
		close(s.closeCh)
		if s.conn != nil {
			s.conn.Close()
		}
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} {
	return s.closeCh
}

func (s *Session) readLoop() {
	defer s.Close()
	for {
		if s.readTimeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		}
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("read error", zap.Error(err))
			}
			return
		}
		msg, err := s.codec.Parse(raw)
		if err != nil {
			s.log.Debug("rejected message", zap.Error(err))
			s.Reply(ErrorMsg{Type: TypeError, Reason: "invalid message"})
			continue
		}
		if s.reg.Inline(msg.Type) {
			if err := s.reg.Dispatch(s, msg); err != nil {
				s.Reply(ErrorMsg{Type: TypeError, Reason: err.Error()})
			}
			continue
		}
		if !s.Enqueue(msg) {
			return
		}
	}
}

func (s *Session) writeLoop() {
	defer s.Close()
	for {
		select {
		case b := <-s.OutQueue:
			if s.writeTimeout > 0 {
				_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				if !s.closed.Load() {
					s.log.Debug("write error", zap.Error(err))
				}
				return
			}
		case <-s.closeCh:
			return
		}
	}
}
