package handler

import (
	"github.com/aimloc/server/internal/core/event"
	"github.com/aimloc/server/internal/fallback"
	"github.com/aimloc/server/internal/geom"
	"github.com/aimloc/server/internal/net"
	"go.uber.org/zap"
)

// HandleHint forwards an externally reported location to the fallback
// memory via the event bus.
func HandleHint(sess *net.Session, msg *net.Message, deps *Deps) {
	var m net.HintMsg
	if err := msg.Decode(&m); err != nil {
		return
	}
	cell, ok := geom.Vec3{X: m.X, Y: m.Y, Z: m.Z}.CellOK()
	if !ok {
		deps.Log.Debug("hint out of range", zap.Uint64("session", sess.ID))
		return
	}
	event.Emit(deps.Bus, event.LocationHinted{
		Hint: fallback.Hint{Region: geom.RegionID(m.Region), Cell: cell},
	})
}
