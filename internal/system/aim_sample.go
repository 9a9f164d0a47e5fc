package system

import (
	"time"

	"github.com/aimloc/server/internal/aim"
	coresys "github.com/aimloc/server/internal/core/system"
)

// ActorSource lists the actors to sample. *world.State implements it.
type ActorSource interface {
	Actors() []aim.Actor
}

// AimSampleSystem records every actor's aim once per tick, after the tick's
// aim updates were applied. Phase 3 (PostUpdate).
type AimSampleSystem struct {
	sampler *aim.Sampler
	actors  ActorSource
}

func NewAimSampleSystem(sampler *aim.Sampler, actors ActorSource) *AimSampleSystem {
	return &AimSampleSystem{sampler: sampler, actors: actors}
}

func (s *AimSampleSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *AimSampleSystem) Update(_ time.Duration) {
	s.sampler.Step(s.actors.Actors())
}
