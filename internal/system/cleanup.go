package system

import (
	"time"

	"github.com/aimloc/server/internal/aim"
	"github.com/aimloc/server/internal/core/event"
	coresys "github.com/aimloc/server/internal/core/system"
	"github.com/aimloc/server/internal/world"
)

// CleanupSystem destroys entities queued during the tick. Aim snapshots of
// departed actors are dropped when their ActorLeft event is dispatched.
// Phase 6 (Cleanup).
type CleanupSystem struct {
	world *world.State
}

func NewCleanupSystem(ws *world.State, bus *event.Bus, cache *aim.Cache) *CleanupSystem {
	event.Subscribe(bus, func(e event.ActorLeft) {
		cache.Delete(e.ActorID)
	})
	return &CleanupSystem{world: ws}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	s.world.ECS().FlushDestroyQueue()
}
