package net

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	ErrUnknownType  = errors.New("unknown message type")
	ErrStateDenied  = errors.New("message not allowed in session state")
	ErrHandlerPanic = errors.New("handler panic")
)

// SessionState is the session's current protocol phase.
type SessionState int32

const (
	StateConnected     SessionState = iota // awaiting hello
	StateAuthenticated                     // hello accepted, actor not yet spawned
	StateInWorld                           // actor spawned
	StateDisconnecting
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "Connected"
	case StateAuthenticated:
		return "Authenticated"
	case StateInWorld:
		return "InWorld"
	case StateDisconnecting:
		return "Disconnecting"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// HandlerFunc handles one message for a session.
type HandlerFunc func(sess *Session, msg *Message)

type handlerEntry struct {
	fn      HandlerFunc
	allowed map[SessionState]bool
	inline  bool
}

// Registry maps message types to handlers with state-based access control.
// Inline handlers run on the session's reader goroutine; the rest are queued
// for the game loop. Registration happens before the server starts.
type Registry struct {
	handlers map[string]*handlerEntry
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		handlers: make(map[string]*handlerEntry),
		log:      log,
	}
}

// Register maps a message type to a game-loop handler.
func (reg *Registry) Register(typ string, states []SessionState, fn HandlerFunc) {
	reg.register(typ, states, fn, false)
}

// RegisterInline maps a message type to a handler run on the reader
// goroutine. Inline handlers must not touch game state.
func (reg *Registry) RegisterInline(typ string, states []SessionState, fn HandlerFunc) {
	reg.register(typ, states, fn, true)
}

func (reg *Registry) register(typ string, states []SessionState, fn HandlerFunc, inline bool) {
	allowed := make(map[SessionState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.handlers[typ] = &handlerEntry{fn: fn, allowed: allowed, inline: inline}
}

// Inline reports whether typ is handled on the reader goroutine.
func (reg *Registry) Inline(typ string) bool {
	e, ok := reg.handlers[typ]
	return ok && e.inline
}

// Dispatch validates the session state and calls the handler for msg.
func (reg *Registry) Dispatch(sess *Session, msg *Message) error {
	state := sess.State()
	entry, ok := reg.handlers[msg.Type]
	if !ok {
		reg.log.Debug("unknown message type", zap.String("type", msg.Type), zap.Stringer("state", state))
		return fmt.Errorf("%q: %w", msg.Type, ErrUnknownType)
	}
	if !entry.allowed[state] {
		reg.log.Warn("message not allowed in state",
			zap.Uint64("session", sess.ID),
			zap.String("type", msg.Type),
			zap.Stringer("state", state),
		)
		return fmt.Errorf("%q in %s: %w", msg.Type, state, ErrStateDenied)
	}
	return reg.safeCall(entry.fn, sess, msg)
}

// safeCall keeps one bad message from taking down its caller.
func (reg *Registry) safeCall(fn HandlerFunc, sess *Session, msg *Message) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panic recovered",
				zap.Uint64("session", sess.ID),
				zap.String("type", msg.Type),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("%q: %w: %v", msg.Type, ErrHandlerPanic, rec)
		}
	}()
	fn(sess, msg)
	return nil
}
