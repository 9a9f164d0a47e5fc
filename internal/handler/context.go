package handler

import (
	"github.com/aimloc/server/internal/config"
	"github.com/aimloc/server/internal/core/event"
	"github.com/aimloc/server/internal/net"
	"github.com/aimloc/server/internal/resolve"
	"github.com/aimloc/server/internal/scripting"
	"github.com/aimloc/server/internal/world"
	"go.uber.org/zap"
)

// Deps holds shared dependencies injected into all message handlers.
type Deps struct {
	Config    *config.Config
	Log       *zap.Logger
	World     *world.State      // game loop handlers only
	Bus       *event.Bus        // game loop handlers only
	Pipeline  *resolve.Pipeline // safe from any goroutine
	Scripting *scripting.Engine // optional
}

// RegisterAll registers every message handler into the registry.
func RegisterAll(reg *net.Registry, deps *Deps) {
	inWorld := []net.SessionState{net.StateInWorld}

	// Runs on the reader goroutine: bcrypt is slow and touches no game state.
	reg.RegisterInline(net.TypeHello,
		[]net.SessionState{net.StateConnected},
		func(sess *net.Session, msg *net.Message) {
			HandleHello(sess, msg, deps)
		},
	)
	reg.Register(net.TypeJoin,
		[]net.SessionState{net.StateAuthenticated},
		func(sess *net.Session, msg *net.Message) {
			HandleJoin(sess, msg, deps)
		},
	)
	reg.Register(net.TypeAim, inWorld,
		func(sess *net.Session, msg *net.Message) {
			HandleAim(sess, msg, deps)
		},
	)
	reg.Register(net.TypeHint, inWorld,
		func(sess *net.Session, msg *net.Message) {
			HandleHint(sess, msg, deps)
		},
	)
	// Resolution reads only concurrent-safe state, so it answers immediately.
	reg.RegisterInline(net.TypeInteract, inWorld,
		func(sess *net.Session, msg *net.Message) {
			HandleInteract(sess, msg, deps)
		},
	)
}

func sendError(sess *net.Session, reason string) {
	sess.Reply(net.ErrorMsg{Type: net.TypeError, Reason: reason})
}
