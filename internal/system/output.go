package system

import (
	"time"

	coresys "github.com/aimloc/server/internal/core/system"
	"github.com/aimloc/server/internal/net"
)

// OutputSystem flushes messages buffered during the tick. Phase 4 (Output).
type OutputSystem struct {
	store *net.SessionStore
}

func NewOutputSystem(store *net.SessionStore) *OutputSystem {
	return &OutputSystem{store: store}
}

func (s *OutputSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *OutputSystem) Update(_ time.Duration) {
	for _, sess := range s.store.Raw() {
		sess.FlushOutput()
	}
}
