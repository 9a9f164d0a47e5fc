package system

import "time"

// Phase orders systems within a tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: drain session queues
	PhasePreUpdate               // 1: deliver last tick's events
	PhaseUpdate                  // 2: world mutation
	PhasePostUpdate              // 3: aim sampling
	PhaseOutput                  // 4: flush outbound messages
	PhasePersist                 // 5: audit drain
	PhaseCleanup                 // 6: destroy queued entities
)

var phaseNames = [...]string{"input", "pre_update", "update", "post_update", "output", "persist", "cleanup"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// System is one unit of per-tick work.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
