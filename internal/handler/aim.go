package handler

import (
	"github.com/aimloc/server/internal/geom"
	"github.com/aimloc/server/internal/net"
	"go.uber.org/zap"
)

// HandleAim stores the actor's latest view ray for the next sampling pass.
func HandleAim(sess *net.Session, msg *net.Message, deps *Deps) {
	var m net.AimMsg
	if err := msg.Decode(&m); err != nil {
		return
	}
	ent, ok := deps.World.ActorBySession(sess.ID)
	if !ok {
		return
	}
	region := geom.RegionID(m.Region)
	if !deps.World.HasRegion(region) {
		deps.Log.Debug("aim in unknown region", zap.Uint64("session", sess.ID), zap.String("region", m.Region))
		return
	}
	deps.World.SetAim(ent, region,
		geom.Vec3{X: m.Eye[0], Y: m.Eye[1], Z: m.Eye[2]},
		geom.Vec3{X: m.Look[0], Y: m.Look[1], Z: m.Look[2]},
	)
}
