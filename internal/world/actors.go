package world

import (
	"github.com/aimloc/server/internal/aim"
	"github.com/aimloc/server/internal/component"
	"github.com/aimloc/server/internal/core/ecs"
	"github.com/aimloc/server/internal/geom"
)

func (s *State) initActors() {
	s.ecs = ecs.NewWorld()
	s.ids = ecs.NewStore[component.Identity]()
	s.aims = ecs.NewStore[component.Aim]()
	s.sessions = ecs.NewStore[component.SessionRef]()
	s.ecs.Register(s.ids)
	s.ecs.Register(s.aims)
	s.ecs.Register(s.sessions)
	s.bySession = make(map[uint64]ecs.EntityID)
	s.ecs.OnDestroy(func(id ecs.EntityID) {
		if ref, ok := s.sessions.Get(id); ok {
			delete(s.bySession, ref.SessionID)
		}
	})
}

// ECS exposes the entity world for the cleanup system.
func (s *State) ECS() *ecs.World {
	return s.ecs
}

// SpawnActor creates the actor entity for a session.
func (s *State) SpawnActor(sessionID uint64, ident component.Identity) ecs.EntityID {
	id := s.ecs.CreateEntity()
	s.ids.Set(id, &ident)
	s.aims.Set(id, &component.Aim{})
	s.sessions.Set(id, &component.SessionRef{SessionID: sessionID})
	s.bySession[sessionID] = id
	return id
}

// ActorBySession returns the live actor entity of a session.
func (s *State) ActorBySession(sessionID uint64) (ecs.EntityID, bool) {
	id, ok := s.bySession[sessionID]
	if !ok || !s.ecs.Alive(id) {
		return 0, false
	}
	return id, true
}

// Identity returns an actor's identity component.
func (s *State) Identity(id ecs.EntityID) (*component.Identity, bool) {
	return s.ids.Get(id)
}

// SetAim records an actor's latest view ray.
func (s *State) SetAim(id ecs.EntityID, region geom.RegionID, eye, look geom.Vec3) bool {
	a, ok := s.aims.Get(id)
	if !ok {
		return false
	}
	*a = component.Aim{Region: region, Eye: eye, Look: look, Set: true}
	return true
}

// DespawnActor queues an actor for removal at the end of the tick. Its aim
// is cleared at once so the actor is not sampled again.
func (s *State) DespawnActor(id ecs.EntityID) {
	if a, ok := s.aims.Get(id); ok {
		a.Set = false
	}
	s.ecs.MarkForDestruction(id)
}

// ActorCount reports live actors.
func (s *State) ActorCount() int {
	return s.ids.Len()
}

// Actors returns the sampler's view of every actor that has reported an aim.
func (s *State) Actors() []aim.Actor {
	out := make([]aim.Actor, 0, s.aims.Len())
	ecs.Each2(s.ids, s.aims, func(_ ecs.EntityID, ident *component.Identity, a *component.Aim) {
		if a.Set {
			out = append(out, actorView{ident: ident, aim: *a})
		}
	})
	return out
}

// actorView adapts actor components to aim.Actor. The handle is the identity
// component, whose UUID member the sampler reads.
type actorView struct {
	ident *component.Identity
	aim   component.Aim
}

func (v actorView) Handle() any           { return v.ident }
func (v actorView) Region() geom.RegionID { return v.aim.Region }
func (v actorView) Eye() geom.Vec3        { return v.aim.Eye }
func (v actorView) Look() geom.Vec3       { return v.aim.Look }
