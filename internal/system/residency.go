package system

import (
	"time"

	coresys "github.com/aimloc/server/internal/core/system"
	"github.com/aimloc/server/internal/world"
	"go.uber.org/zap"
)

// ResidencySystem keeps the columns around aiming actors loaded and lets the
// rest go. It runs after aims are applied and before they are sampled.
// Phase 2 (Update).
type ResidencySystem struct {
	world  *world.State
	radius int
	log    *zap.Logger
}

func NewResidencySystem(ws *world.State, radius int, log *zap.Logger) *ResidencySystem {
	if log == nil {
		log = zap.NewNop()
	}
	return &ResidencySystem{world: ws, radius: radius, log: log}
}

func (s *ResidencySystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *ResidencySystem) Update(_ time.Duration) {
	loaded, unloaded := s.world.KeepResident(s.radius)
	if loaded+unloaded > 0 {
		s.log.Debug("residency changed",
			zap.Int("loaded", loaded),
			zap.Int("unloaded", unloaded),
			zap.Int("resident", s.world.ResidentChunks()),
		)
	}
}
