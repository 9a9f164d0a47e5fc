package system

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Runner executes registered systems in phase order each tick. Systems in the
// same phase run in registration order. A panicking system is logged and the
// rest of the tick continues.
type Runner struct {
	systems []System
	sorted  bool
	log     *zap.Logger
}

func NewRunner(log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		systems: make([]System, 0, 8),
		log:     log,
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

func (r *Runner) Tick(dt time.Duration) {
	r.ensureSorted()
	for _, s := range r.systems {
		r.run(s, dt)
	}
}

// TickPhase runs only the systems of one phase. The main loop uses it to
// poll input between full ticks.
func (r *Runner) TickPhase(phase Phase, dt time.Duration) {
	r.ensureSorted()
	for _, s := range r.systems {
		if s.Phase() == phase {
			r.run(s, dt)
		}
	}
}

func (r *Runner) run(s System, dt time.Duration) {
	defer func() {
		if v := recover(); v != nil {
			r.log.Error("system panic",
				zap.String("system", fmt.Sprintf("%T", s)),
				zap.Stringer("phase", s.Phase()),
				zap.Any("panic", v),
			)
		}
	}()
	s.Update(dt)
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}
