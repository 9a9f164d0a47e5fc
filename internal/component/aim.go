package component

import "github.com/aimloc/server/internal/geom"

// Aim is an actor's latest reported view ray. Look need not be normalised.
type Aim struct {
	Region geom.RegionID
	Eye    geom.Vec3
	Look   geom.Vec3
	Set    bool // false until the first aim report arrives
}
