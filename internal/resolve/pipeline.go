package resolve

import (
	"time"

	"github.com/aimloc/server/internal/aim"
	"github.com/aimloc/server/internal/fallback"
	"github.com/aimloc/server/internal/geom"
	"github.com/aimloc/server/internal/locate"
	"go.uber.org/zap"
)

// Strategy names the source of a resolved location.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyChain
	StrategyAim
	StrategyFallback
)

func (s Strategy) String() string {
	switch s {
	case StrategyChain:
		return "chain"
	case StrategyAim:
		return "aim"
	case StrategyFallback:
		return "fallback"
	default:
		return "none"
	}
}

// Result is a resolved location. Snapshot is set only for StrategyAim and
// Path only for StrategyChain.
type Result struct {
	Location geom.Location
	Snapshot *aim.Snapshot
	Strategy Strategy
	Path     []string
}

type Locator interface {
	Locate(root any, known geom.RegionID) (locate.Match, bool)
	RegionOf(v any) (geom.RegionID, bool)
}

type AimSource interface {
	Get(actorID string) (aim.Snapshot, bool)
}

type HintSource interface {
	Get() (fallback.Hint, bool)
}

// Record is one resolution outcome, handed to a Recorder for auditing.
type Record struct {
	ActorID  string
	Strategy Strategy
	Location geom.Location // zero when not found
	Elapsed  time.Duration
	At       time.Time
}

// Recorder receives resolution outcomes. Record must not block.
type Recorder interface {
	Record(Record)
}

// Pipeline combines the three location strategies in strict priority order.
// Resolve is safe to call from any goroutine and never touches world state.
type Pipeline struct {
	locator Locator
	aim     AimSource
	hints   HintSource
	rec     Recorder
	log     *zap.Logger
}

func NewPipeline(locator Locator, aimSrc AimSource, hints HintSource, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{locator: locator, aim: aimSrc, hints: hints, log: log}
}

// SetRecorder installs an audit recorder. Must be called before Resolve is used.
func (p *Pipeline) SetRecorder(r Recorder) {
	p.rec = r
}

// Resolve returns the location an actor's interaction refers to, if any
// strategy can produce one. A false result means the location is unknown.
func (p *Pipeline) Resolve(actorID string, payload, chain any) (Result, bool) {
	start := time.Now()
	res, ok := p.resolve(actorID, payload, chain)
	if p.rec != nil {
		p.rec.Record(Record{
			ActorID:  actorID,
			Strategy: res.Strategy,
			Location: res.Location,
			Elapsed:  time.Since(start),
			At:       start,
		})
	}
	return res, ok
}

func (p *Pipeline) resolve(actorID string, payload, chain any) (Result, bool) {
	var region geom.RegionID
	p.attempt("payload_region", actorID, func() bool {
		r, ok := p.locator.RegionOf(payload)
		if ok {
			region = r
		}
		return ok
	})

	var res Result
	if p.attempt("chain", actorID, func() bool {
		m, ok := p.locator.Locate(chain, region)
		if !ok {
			return false
		}
		res = Result{Location: m.Location, Strategy: StrategyChain, Path: m.Path}
		return true
	}) {
		return res, true
	}

	if p.attempt("aim", actorID, func() bool {
		snap, ok := p.aim.Get(actorID)
		if !ok || !snap.Region.Valid() {
			return false
		}
		res = Result{Location: snap.Location(), Snapshot: &snap, Strategy: StrategyAim}
		return true
	}) {
		return res, true
	}

	if p.attempt("fallback", actorID, func() bool {
		h, ok := p.hints.Get()
		if !ok {
			return false
		}
		r := h.Region
		if !r.Valid() {
			r = region
		}
		if !r.Valid() {
			return false
		}
		res = Result{Location: geom.LocationAt(r, h.Cell), Strategy: StrategyFallback}
		return true
	}) {
		return res, true
	}

	return Result{}, false
}

// attempt runs one strategy; a panic counts as "no answer".
func (p *Pipeline) attempt(step, actorID string, fn func() bool) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("resolution step failed",
				zap.String("step", step),
				zap.String("actor", actorID),
				zap.Any("panic", r),
			)
			ok = false
		}
	}()
	return fn()
}
