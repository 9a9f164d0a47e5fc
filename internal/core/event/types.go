package event

import (
	"github.com/aimloc/server/internal/core/ecs"
	"github.com/aimloc/server/internal/fallback"
)

// ActorLeft is emitted when an actor's session closes.
type ActorLeft struct {
	Entity    ecs.EntityID
	ActorID   string
	SessionID uint64
}

// LocationHinted carries an externally reported location.
type LocationHinted struct {
	Hint fallback.Hint
}
