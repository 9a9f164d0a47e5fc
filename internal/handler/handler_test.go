package handler

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/aimloc/server/internal/aim"
	"github.com/aimloc/server/internal/config"
	"github.com/aimloc/server/internal/core/event"
	"github.com/aimloc/server/internal/data"
	"github.com/aimloc/server/internal/fallback"
	"github.com/aimloc/server/internal/geom"
	"github.com/aimloc/server/internal/locate"
	"github.com/aimloc/server/internal/net"
	"github.com/aimloc/server/internal/resolve"
	"github.com/aimloc/server/internal/scripting"
	"github.com/aimloc/server/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	clock  *aim.MonoClock
	deps   *Deps
	reg    *net.Registry
	cache  *aim.Cache
	memory *fallback.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cells, err := data.NewCellTypeTable([]data.CellType{
		{Name: "stone", Solid: true},
		{Name: "bench", Solid: true, Parts: []geom.Int3{{X: 1}}},
	})
	require.NoError(t, err)
	regions, err := data.NewRegionTable([]data.RegionInfo{{
		Name: "overworld", MaxY: 128, PreloadRadius: 1,
		Layers: []data.Layer{{Cell: "stone", Thickness: 64}},
	}}, cells)
	require.NoError(t, err)
	w := world.NewState(cells, regions, nil)
	w.Preload()

	cfg := &config.Config{}
	clock := aim.NewMonoClock()
	f := &fixture{
		clock:  clock,
		cache:  aim.NewCache(250*time.Millisecond, clock),
		memory: fallback.New(),
		reg:    net.NewRegistry(nil),
	}
	engine, err := scripting.NewEngine("../../scripts", nil)
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	loc := locate.New(locate.DefaultOptions(), nil, nil, scripting.TableProbe{}, locate.DocProbe{}, locate.ReflectProbe{})
	f.deps = &Deps{
		Config:    cfg,
		Log:       zap.NewNop(),
		World:     w,
		Bus:       event.NewBus(),
		Pipeline:  resolve.NewPipeline(loc, f.cache, f.memory, nil),
		Scripting: engine,
	}
	RegisterAll(f.reg, f.deps)
	return f
}

func newSession(id uint64) *net.Session {
	return net.NewDetachedSession(id, net.SessionOptions{InQueueSize: 8, OutQueueSize: 8}, nil)
}

func (f *fixture) send(t *testing.T, sess *net.Session, raw string) {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	msg := &net.Message{Type: doc["type"].(string), Raw: []byte(raw)}
	require.NoError(t, f.reg.Dispatch(sess, msg))
}

// drain runs queued messages the way the input system does.
func (f *fixture) drain(t *testing.T, sess *net.Session) {
	t.Helper()
	for {
		select {
		case msg := <-sess.InQueue:
			require.NoError(t, f.reg.Dispatch(sess, msg))
		default:
			sess.FlushOutput()
			return
		}
	}
}

func reply(t *testing.T, sess *net.Session) map[string]any {
	t.Helper()
	select {
	case b := <-sess.OutQueue:
		var v map[string]any
		require.NoError(t, json.Unmarshal(b, &v))
		return v
	default:
		t.Fatal("no reply")
		return nil
	}
}

func (f *fixture) join(t *testing.T, sess *net.Session, name string) {
	t.Helper()
	f.send(t, sess, `{"type":"hello","name":"`+name+`"}`)
	require.Equal(t, net.StateAuthenticated, sess.State())
	f.drain(t, sess)
	require.Equal(t, net.StateInWorld, sess.State())
	welcome := reply(t, sess)
	require.Equal(t, net.TypeWelcome, welcome["type"])
}

func TestHello_DerivesStableActorID(t *testing.T) {
	f := newFixture(t)
	a, b := newSession(1), newSession(2)
	f.join(t, a, "Steve")
	f.join(t, b, "steve")
	assert.Equal(t, a.ActorID, b.ActorID)
	assert.Len(t, a.ActorID, 36)

	c := newSession(3)
	f.send(t, c, `{"type":"hello","name":"x","uuid":"6F1C2F8E-3B7A-4F0E-9A43-1C2D3E4F5A6B"}`)
	assert.Equal(t, "6f1c2f8e-3b7a-4f0e-9a43-1c2d3e4f5a6b", c.ActorID)

	d := newSession(4)
	f.send(t, d, `{"type":"hello","name":"x","uuid":"00000000-0000-0000-0000-000000000000"}`)
	assert.Equal(t, net.StateConnected, d.State())
	assert.Equal(t, net.TypeError, reply(t, d)["type"])
}

func TestHello_Token(t *testing.T) {
	f := newFixture(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	f.deps.Config.Network.IngestTokenHash = string(hash)

	bad := newSession(1)
	f.send(t, bad, `{"type":"hello","name":"x","token":"guess"}`)
	assert.True(t, bad.IsClosed())

	good := newSession(2)
	f.send(t, good, `{"type":"hello","name":"x","token":"s3cret"}`)
	assert.Equal(t, net.StateAuthenticated, good.State())
}

func TestInteract_ChainThenAimThenFallback(t *testing.T) {
	f := newFixture(t)
	sess := newSession(1)
	f.join(t, sess, "steve")

	f.send(t, sess, `{"type":"interact","id":1,"action":"use","payload":{"world":"overworld"},"chain":{"hit":{"x":1,"y":2,"z":3}}}`)
	r := reply(t, sess)
	assert.Equal(t, true, r["ok"])
	assert.Equal(t, "chain", r["strategy"])
	assert.Equal(t, "overworld", r["region"])
	assert.Equal(t, float64(3), r["z"])
	assert.Equal(t, float64(1), r["id"])
	assert.Equal(t, "exact", r["verdict"])

	f.cache.Put(sess.ActorID, aim.Snapshot{Region: "overworld", Base: geom.Int3{X: 9, Y: 64, Z: -3}, CellType: "bench", CapturedAt: f.clock.Now()})
	f.send(t, sess, `{"type":"interact","action":"use","payload":"opaque"}`)
	r = reply(t, sess)
	assert.Equal(t, "aim", r["strategy"])
	assert.Equal(t, "bench", r["cell_type"])
	assert.Equal(t, "at bench", r["verdict"])

	f.cache.Delete(sess.ActorID)
	f.send(t, sess, `{"type":"interact","action":"use"}`)
	r = reply(t, sess)
	assert.Equal(t, false, r["ok"])
	assert.Equal(t, "none", r["strategy"])
	assert.Equal(t, "unknown", r["verdict"])
}

func TestInteract_Script(t *testing.T) {
	f := newFixture(t)
	sess := newSession(1)
	f.join(t, sess, "steve")

	f.send(t, sess, `{"type":"interact","action":"use","script":"bench","payload":{"world":"overworld","hit":[10.2,64,-3]}}`)
	r := reply(t, sess)
	assert.Equal(t, "chain", r["strategy"])
	assert.Equal(t, float64(10), r["x"])
	assert.Equal(t, []any{"target", "pos"}, r["path"])

	// unknown script falls back to the raw chain
	f.send(t, sess, `{"type":"interact","action":"use","script":"nope","chain":{"pos":{"world":"overworld","x":1,"y":1,"z":1}}}`)
	r = reply(t, sess)
	assert.Equal(t, "chain", r["strategy"])
}

func TestInteract_RequiresJoin(t *testing.T) {
	f := newFixture(t)
	sess := newSession(1)
	err := f.reg.Dispatch(sess, &net.Message{Type: net.TypeInteract, Raw: []byte(`{"type":"interact","action":"use"}`)})
	assert.ErrorIs(t, err, net.ErrStateDenied)
}

func TestAimAndHint(t *testing.T) {
	f := newFixture(t)
	sess := newSession(1)
	f.join(t, sess, "steve")

	var hinted []fallback.Hint
	event.Subscribe(f.deps.Bus, func(e event.LocationHinted) { hinted = append(hinted, e.Hint) })

	f.send(t, sess, `{"type":"aim","region":"overworld","eye":[1.5,70,1.5],"look":[0,-1,0]}`)
	f.send(t, sess, `{"type":"aim","region":"nowhere","eye":[0,0,0],"look":[0,-1,0]}`)
	f.send(t, sess, `{"type":"hint","x":4.5,"y":64,"z":-0.5}`)
	f.send(t, sess, `{"type":"hint","x":1e30,"y":64,"z":0}`)
	f.drain(t, sess)

	actors := f.deps.World.Actors()
	require.Len(t, actors, 1)
	assert.Equal(t, geom.RegionID("overworld"), actors[0].Region(), "unknown region ignored")

	f.deps.Bus.SwapBuffers()
	f.deps.Bus.DispatchAll()
	require.Len(t, hinted, 1, "a hint outside int range is dropped")
	assert.Equal(t, fallback.Hint{Cell: geom.Int3{X: 4, Y: 64, Z: -1}}, hinted[0])
}
