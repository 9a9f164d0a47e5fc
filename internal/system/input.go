package system

import (
	"time"

	"github.com/aimloc/server/internal/core/event"
	coresys "github.com/aimloc/server/internal/core/system"
	"github.com/aimloc/server/internal/net"
	"github.com/aimloc/server/internal/world"
	"go.uber.org/zap"
)

// SessionSource supplies connection lifecycle notifications. *net.Server
// implements it.
type SessionSource interface {
	NewSessions() <-chan *net.Session
	DeadSessions() <-chan uint64
}

// InputSystem accepts and drops sessions and dispatches queued messages
// through the registry, at most maxPerTick per session. Phase 0 (Input).
type InputSystem struct {
	source     SessionSource
	registry   *net.Registry
	store      *net.SessionStore
	world      *world.State
	bus        *event.Bus
	maxPerTick int
	log        *zap.Logger
}

func NewInputSystem(source SessionSource, registry *net.Registry, store *net.SessionStore, ws *world.State, bus *event.Bus, maxPerTick int, log *zap.Logger) *InputSystem {
	if maxPerTick <= 0 {
		maxPerTick = 32
	}
	return &InputSystem{
		source:     source,
		registry:   registry,
		store:      store,
		world:      ws,
		bus:        bus,
		maxPerTick: maxPerTick,
		log:        log,
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ time.Duration) {
	s.acceptNew()
	s.dropDead()

	for _, sess := range s.store.Raw() {
		s.drain(sess)
		if sess.IsClosed() {
			s.disconnect(sess)
		}
	}
}

func (s *InputSystem) acceptNew() {
	for {
		select {
		case sess := <-s.source.NewSessions():
			s.store.Add(sess)
		default:
			return
		}
	}
}

func (s *InputSystem) dropDead() {
	for {
		select {
		case id := <-s.source.DeadSessions():
			if sess := s.store.Get(id); sess != nil {
				s.drain(sess)
				s.disconnect(sess)
			}
		default:
			return
		}
	}
}

func (s *InputSystem) drain(sess *net.Session) {
	for i := 0; i < s.maxPerTick; i++ {
		select {
		case msg := <-sess.InQueue:
			if err := s.registry.Dispatch(sess, msg); err != nil {
				s.log.Debug("message dispatch failed",
					zap.Uint64("session", sess.ID),
					zap.Error(err),
				)
			}
		default:
			return
		}
	}
}

// disconnect despawns the session's actor and forgets the session.
func (s *InputSystem) disconnect(sess *net.Session) {
	if ent, ok := s.world.ActorBySession(sess.ID); ok {
		s.world.DespawnActor(ent)
		event.Emit(s.bus, event.ActorLeft{Entity: ent, ActorID: sess.ActorID, SessionID: sess.ID})
		s.log.Info("actor left", zap.Uint64("session", sess.ID), zap.String("actor", sess.ActorID))
	}
	s.store.Remove(sess.ID)
}
