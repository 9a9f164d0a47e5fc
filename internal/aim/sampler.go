package aim

import (
	"time"

	"github.com/aimloc/server/internal/geom"
	"go.uber.org/zap"
)

// Actor is a tracked entity as seen by the sampler.
type Actor interface {
	// Handle is the actor's reference handle; it usually carries the id.
	Handle() any
	Region() geom.RegionID
	Eye() geom.Vec3
	Look() geom.Vec3
}

// Outcome classifies one per-actor sampling attempt.
type Outcome int

const (
	Written Outcome = iota
	NoID
	Miss
	Unresident
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Written:
		return "written"
	case NoID:
		return "no_id"
	case Miss:
		return "miss"
	case Unresident:
		return "unresident"
	default:
		return "failed"
	}
}

type SamplerConfig struct {
	Range         float64
	SliceInterval time.Duration
}

// Sampler records what every tracked actor aims at, once per simulation step.
// Step must be called from the game loop goroutine.
type Sampler struct {
	cache *Cache
	world WorldView
	ids   *Identifier
	clock Clock
	gate  *SliceGate
	rng   float64
	log   *zap.Logger

	hooks  []func()
	counts [Failed + 1]int
}

// NewSampler creates a sampler writing into cache. clock must be the cache's
// clock; nil selects the package default, as NewCache does.
func NewSampler(cfg SamplerConfig, cache *Cache, world WorldView, ids *Identifier, clock Clock, log *zap.Logger) *Sampler {
	if cfg.Range <= 0 {
		cfg.Range = DefaultRange
	}
	if clock == nil {
		clock = defaultClock
	}
	if ids == nil {
		ids = NewIdentifier()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sampler{
		cache: cache,
		world: world,
		ids:   ids,
		clock: clock,
		gate:  NewSliceGate(cfg.SliceInterval, clock),
		rng:   cfg.Range,
		log:   log,
	}
}

// OnSlice hooks fn to the sampler's slice gate: it runs at most once per
// slice interval, after that step's sampling.
func (s *Sampler) OnSlice(fn func()) {
	s.hooks = append(s.hooks, fn)
}

// Step samples every actor in order. A failure only skips that actor.
func (s *Sampler) Step(actors []Actor) {
	for _, a := range actors {
		s.counts[s.sampleSafe(a)]++
	}
	s.gate.Do(s.endSlice)
}

func (s *Sampler) endSlice() {
	if s.counts[Written]+s.counts[Failed] > 0 {
		s.log.Debug("aim sampling slice",
			zap.Int("written", s.counts[Written]),
			zap.Int("miss", s.counts[Miss]),
			zap.Int("unresident", s.counts[Unresident]),
			zap.Int("no_id", s.counts[NoID]),
			zap.Int("failed", s.counts[Failed]),
			zap.Int("cached", s.cache.Len()),
		)
	}
	s.counts = [Failed + 1]int{}
	for _, fn := range s.hooks {
		s.runHook(fn)
	}
}

func (s *Sampler) runHook(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("slice hook panic", zap.Any("panic", r))
		}
	}()
	fn()
}

func (s *Sampler) sampleSafe(a Actor) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn("aim sample failed", zap.Any("panic", r))
			out = Failed
		}
	}()
	return s.SampleActor(a)
}

// SampleActor casts the aim ray for one actor and stores the snapshot.
func (s *Sampler) SampleActor(a Actor) Outcome {
	id, ok := s.ids.ActorID(a)
	if !ok {
		return NoID
	}
	region := a.Region()
	if !region.Valid() {
		return Miss
	}
	struck, ok := castRay(s.world, region, a.Eye(), a.Look(), s.rng)
	if !ok {
		return Miss
	}
	if !s.world.Resident(region, struck) {
		return Unresident
	}

	base := geom.AnchorOf(struck, s.world.PartOffset(region, struck))
	if base != struck && !s.world.Resident(region, base) {
		return Unresident
	}

	s.cache.Put(id, Snapshot{
		Region:     region,
		RawHit:     struck,
		Base:       base,
		CellType:   s.cellType(region, base),
		CapturedAt: s.clock.Now(),
	})
	return Written
}

func (s *Sampler) cellType(region geom.RegionID, c geom.Int3) (name string) {
	defer func() {
		if recover() != nil {
			name = ""
		}
	}()
	return s.world.CellType(region, c)
}
