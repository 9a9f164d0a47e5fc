package component

// SessionRef links an actor entity to its network session. The session
// itself lives in net/.
type SessionRef struct {
	SessionID uint64
}
