package handler

import (
	"github.com/aimloc/server/internal/component"
	"github.com/aimloc/server/internal/net"
	"go.uber.org/zap"
)

// HandleJoin spawns the actor of an authenticated session.
func HandleJoin(sess *net.Session, _ *net.Message, deps *Deps) {
	if _, ok := deps.World.ActorBySession(sess.ID); ok {
		return
	}
	deps.World.SpawnActor(sess.ID, component.Identity{UUID: sess.ActorID, Name: sess.Name})
	sess.SetState(net.StateInWorld)
	sess.Send(net.WelcomeMsg{Type: net.TypeWelcome, ActorID: sess.ActorID, Session: sess.ID})

	deps.Log.Info("actor joined",
		zap.Uint64("session", sess.ID),
		zap.String("actor", sess.ActorID),
		zap.String("name", sess.Name),
	)
}
