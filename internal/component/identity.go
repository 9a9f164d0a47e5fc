package component

// Identity names an actor. UUID is the stable actor id used as the aim
// cache key; Name is the display name announced in hello.
type Identity struct {
	UUID string
	Name string
}
