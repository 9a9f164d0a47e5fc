package handler

import (
	"strings"

	"github.com/aimloc/server/internal/net"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// actorNamespace seeds name-derived actor ids so a name maps to the same
// actor across reconnects.
var actorNamespace = uuid.MustParse("4b1d7a52-6c0e-4d35-9f59-5b0e1f6c2a11")

// HandleHello authenticates the connection and fixes its actor id. The actor
// itself is spawned by HandleJoin on the game loop.
func HandleHello(sess *net.Session, msg *net.Message, deps *Deps) {
	var hello net.HelloMsg
	if err := msg.Decode(&hello); err != nil {
		sendError(sess, "malformed hello")
		return
	}
	if hash := deps.Config.Network.IngestTokenHash; hash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(hello.Token)); err != nil {
			deps.Log.Warn("hello rejected", zap.Uint64("session", sess.ID), zap.String("ip", sess.IP))
			sendError(sess, "bad token")
			sess.Close()
			return
		}
	}

	id, ok := actorID(hello)
	if !ok {
		sendError(sess, "invalid uuid")
		return
	}
	sess.Name = strings.TrimSpace(hello.Name)
	sess.ActorID = id
	sess.SetState(net.StateAuthenticated)
	sess.Enqueue(&net.Message{Type: net.TypeJoin})
}

func actorID(h net.HelloMsg) (string, bool) {
	if h.UUID == "" {
		return uuid.NewSHA1(actorNamespace, []byte(strings.ToLower(strings.TrimSpace(h.Name)))).String(), true
	}
	u, err := uuid.Parse(h.UUID)
	if err != nil || u == uuid.Nil {
		return "", false
	}
	return u.String(), true
}
