package handler

import (
	"github.com/aimloc/server/internal/net"
	"github.com/aimloc/server/internal/resolve"
	"github.com/aimloc/server/internal/scripting"
	"go.uber.org/zap"
)

// HandleInteract resolves the location an interaction refers to and replies
// with the result. It runs on the session's reader goroutine.
func HandleInteract(sess *net.Session, msg *net.Message, deps *Deps) {
	var m net.InteractMsg
	if err := msg.Decode(&m); err != nil {
		sendError(sess, "malformed interact")
		return
	}

	chain := m.Chain
	if m.Script != "" {
		if deps.Scripting == nil {
			sendError(sess, "scripting disabled")
			return
		}
		chain = buildChain(sess, m, deps)
	}

	res, ok := deps.Pipeline.Resolve(sess.ActorID, m.Payload, chain)
	reply := net.ResolvedMsg{
		Type:     net.TypeResolved,
		ID:       m.ID,
		OK:       ok,
		Strategy: res.Strategy.String(),
	}
	if ok {
		reply.Region = string(res.Location.Region)
		reply.X, reply.Y, reply.Z = res.Location.X, res.Location.Y, res.Location.Z
		reply.Path = res.Path
		if res.Snapshot != nil {
			reply.CellType = res.Snapshot.CellType
		}
	}
	if deps.Scripting != nil {
		reply.Verdict = deps.Scripting.OnResolved(resolvedContext(sess.ActorID, m.Action, ok, res))
	}
	sess.Reply(reply)

	deps.Log.Debug("interaction resolved",
		zap.String("actor", sess.ActorID),
		zap.String("action", m.Action),
		zap.Bool("ok", ok),
		zap.Stringer("strategy", res.Strategy),
	)
}

// buildChain runs the named Lua chain builder over the payload. Unknown or
// failing scripts leave the client's raw chain in place.
func buildChain(sess *net.Session, m net.InteractMsg, deps *Deps) any {
	if !deps.Scripting.HasChain(m.Script) {
		deps.Log.Debug("unknown chain script",
			zap.Uint64("session", sess.ID),
			zap.String("script", m.Script),
		)
		return m.Chain
	}
	built, err := deps.Scripting.BuildChain(m.Script, m.Payload)
	if err != nil {
		deps.Log.Warn("chain script failed",
			zap.Uint64("session", sess.ID),
			zap.String("script", m.Script),
			zap.Error(err),
		)
		return m.Chain
	}
	return built
}

func resolvedContext(actorID, action string, ok bool, res resolve.Result) scripting.ResolvedContext {
	ctx := scripting.ResolvedContext{
		ActorID:  actorID,
		Action:   action,
		Found:    ok,
		Strategy: res.Strategy.String(),
	}
	if ok {
		ctx.Region = string(res.Location.Region)
		ctx.X, ctx.Y, ctx.Z = res.Location.X, res.Location.Y, res.Location.Z
	}
	if res.Snapshot != nil {
		ctx.CellType = res.Snapshot.CellType
	}
	return ctx
}
