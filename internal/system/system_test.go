package system

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aimloc/server/internal/aim"
	"github.com/aimloc/server/internal/config"
	"github.com/aimloc/server/internal/core/event"
	coresys "github.com/aimloc/server/internal/core/system"
	"github.com/aimloc/server/internal/data"
	"github.com/aimloc/server/internal/fallback"
	"github.com/aimloc/server/internal/geom"
	"github.com/aimloc/server/internal/handler"
	"github.com/aimloc/server/internal/locate"
	"github.com/aimloc/server/internal/net"
	"github.com/aimloc/server/internal/persist"
	"github.com/aimloc/server/internal/resolve"
	"github.com/aimloc/server/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	newCh  chan *net.Session
	deadCh chan uint64
}

func (f *fakeSource) NewSessions() <-chan *net.Session { return f.newCh }
func (f *fakeSource) DeadSessions() <-chan uint64      { return f.deadCh }

type memSink struct {
	rows   []persist.AuditRow
	fail   bool
	closed bool
}

func (m *memSink) WriteBatch(_ context.Context, rows []persist.AuditRow) error {
	if m.fail {
		return errors.New("db down")
	}
	m.rows = append(m.rows, rows...)
	return nil
}

func (m *memSink) Close() error {
	m.closed = true
	return nil
}

// server wires the full tick pipeline around detached sessions.
type server struct {
	runner *coresys.Runner
	source *fakeSource
	world  *world.State
	cache  *aim.Cache
	memory *fallback.Memory
	audit  *AuditSystem
	sink   *memSink
}

func newServer(t *testing.T) *server {
	t.Helper()
	cells, err := data.LoadCellTypeTable("../../data/yaml/cell_types.yaml")
	require.NoError(t, err)
	regions, err := data.LoadRegionTable("../../data/yaml/regions.yaml", cells)
	require.NoError(t, err)

	s := &server{
		source: &fakeSource{newCh: make(chan *net.Session, 4), deadCh: make(chan uint64, 4)},
		world:  world.NewState(cells, regions, nil),
		memory: fallback.New(),
		sink:   &memSink{},
	}
	s.world.Preload()

	clock := aim.NewMonoClock()
	s.cache = aim.NewCache(250*time.Millisecond, clock)
	sampler := aim.NewSampler(aim.SamplerConfig{}, s.cache, s.world, nil, clock, nil)
	pipeline := resolve.NewPipeline(locate.New(locate.DefaultOptions(), nil, nil), s.cache, s.memory, nil)
	s.audit = NewAuditSystem(s.sink, 16, 2, zap.NewNop())
	pipeline.SetRecorder(s.audit)

	bus := event.NewBus()
	event.Subscribe(bus, func(e event.LocationHinted) { s.memory.Remember(e.Hint) })

	reg := net.NewRegistry(nil)
	store := net.NewSessionStore()
	handler.RegisterAll(reg, &handler.Deps{
		Config:   &config.Config{},
		Log:      zap.NewNop(),
		World:    s.world,
		Bus:      bus,
		Pipeline: pipeline,
	})

	s.runner = coresys.NewRunner(nil)
	s.runner.Register(NewInputSystem(s.source, reg, store, s.world, bus, 8, zap.NewNop()))
	s.runner.Register(NewEventDispatchSystem(bus))
	s.runner.Register(NewResidencySystem(s.world, 1, nil))
	s.runner.Register(NewAimSampleSystem(sampler, s.world))
	s.runner.Register(NewOutputSystem(store))
	s.runner.Register(s.audit)
	s.runner.Register(NewCleanupSystem(s.world, bus, s.cache))
	return s
}

func (s *server) connect(t *testing.T, id uint64) *net.Session {
	t.Helper()
	sess := net.NewDetachedSession(id, net.SessionOptions{InQueueSize: 8, OutQueueSize: 8}, nil)
	s.source.newCh <- sess
	return sess
}

func codecMsg(t *testing.T, raw string) *net.Message {
	t.Helper()
	c, err := net.NewCodec()
	require.NoError(t, err)
	msg, err := c.Parse([]byte(raw))
	require.NoError(t, err)
	return msg
}

func TestTick_AimBeforeJoinRefused(t *testing.T) {
	s := newServer(t)
	sess := s.connect(t, 1)
	s.runner.Tick(0)

	sess.InQueue <- codecMsg(t, `{"type":"aim","region":"overworld","eye":[10.5,66.5,-2.5],"look":[0,-1,0]}`)
	s.runner.Tick(0)
	assert.Zero(t, s.world.ActorCount(), "aim before hello is refused")
}

func TestTick_FullFlow(t *testing.T) {
	s := newServer(t)
	sess := s.connect(t, 1)
	s.runner.Tick(0)

	// The inline hello handler would enqueue this join.
	sess.ActorID = "6f1c2f8e-3b7a-4f0e-9a43-1c2d3e4f5a6b"
	sess.Name = "steve"
	sess.SetState(net.StateAuthenticated)
	sess.InQueue <- &net.Message{Type: net.TypeJoin}
	// looking down at the part of the shipped bench anchored at (4,65,4)
	sess.InQueue <- codecMsg(t, `{"type":"aim","region":"overworld","eye":[5.5,67.5,4.5],"look":[0,-1,0]}`)
	sess.InQueue <- codecMsg(t, `{"type":"hint","region":"overworld","x":1,"y":64,"z":1}`)
	s.runner.Tick(0)

	require.Equal(t, net.StateInWorld, sess.State())
	assert.Len(t, sess.OutQueue, 1, "welcome flushed by the output system")

	snap, ok := s.cache.Get(sess.ActorID)
	require.True(t, ok, "sampled in the same tick")
	assert.Equal(t, geom.Int3{X: 5, Y: 65, Z: 4}, snap.RawHit)
	assert.Equal(t, geom.Int3{X: 4, Y: 65, Z: 4}, snap.Base)
	assert.Equal(t, "bench", snap.CellType)

	// input runs before event dispatch, so the hint lands in the same tick
	hint, ok := s.memory.Get()
	require.True(t, ok)
	assert.Equal(t, geom.Int3{X: 1, Y: 64, Z: 1}, hint.Cell)

	// disconnect: actor despawned and its snapshot dropped in the same tick
	sess.Close()
	s.source.deadCh <- sess.ID
	s.runner.Tick(0)
	assert.Zero(t, s.world.ActorCount())
	assert.Zero(t, s.cache.Len())
}

func TestTick_AimingLoadsColumns(t *testing.T) {
	s := newServer(t)
	sess := s.connect(t, 1)
	s.runner.Tick(0)

	sess.ActorID = "6f1c2f8e-3b7a-4f0e-9a43-1c2d3e4f5a6b"
	sess.SetState(net.StateAuthenticated)
	sess.InQueue <- &net.Message{Type: net.TypeJoin}
	// column (10,0) lies outside the preload area
	sess.InQueue <- codecMsg(t, `{"type":"aim","region":"overworld","eye":[170.5,66.5,0.5],"look":[0,-1,0]}`)
	s.runner.Tick(0)

	snap, ok := s.cache.Get(sess.ActorID)
	require.True(t, ok, "residency runs before sampling")
	assert.Equal(t, geom.Int3{X: 170, Y: 64, Z: 0}, snap.Base)
	assert.Equal(t, "grass", snap.CellType)

	sess.Close()
	s.source.deadCh <- sess.ID
	s.runner.Tick(0)
	assert.False(t, s.world.Resident("overworld", geom.Int3{X: 170}), "released once nobody aims there")
}

func TestAuditSystem(t *testing.T) {
	sink := &memSink{}
	a := NewAuditSystem(sink, 2, 2, zap.NewNop())
	now := time.Now()

	a.Record(resolve.Record{ActorID: "a", Strategy: resolve.StrategyAim, Location: geom.Location{Region: "r", X: 1}, At: now})
	a.Record(resolve.Record{ActorID: "b", Strategy: resolve.StrategyNone, At: now})
	a.Record(resolve.Record{ActorID: "c"}) // dropped, buffer is full

	a.Update(0)
	assert.Empty(t, sink.rows, "flushes every second tick")
	a.Update(0)
	require.Len(t, sink.rows, 2)
	assert.Equal(t, "aim", sink.rows[0].Strategy)
	assert.True(t, sink.rows[0].Found)
	assert.Equal(t, "r", sink.rows[0].Region)
	assert.False(t, sink.rows[1].Found)
	assert.Empty(t, sink.rows[1].Region)

	sink.fail = true
	a.Record(resolve.Record{ActorID: "d"})
	assert.NotPanics(t, func() { a.Update(0); a.Update(0) })

	sink.fail = false
	a.Record(resolve.Record{ActorID: "e"})
	require.NoError(t, a.Close())
	assert.True(t, sink.closed)
	assert.Equal(t, "e", sink.rows[len(sink.rows)-1].ActorID)
}
