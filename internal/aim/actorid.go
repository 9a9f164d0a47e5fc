package aim

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aimloc/server/internal/locate"
	"github.com/google/uuid"
)

// Identifier-bearing members, most specific first.
var idMembers = []string{"UUID", "Uuid", "UniqueID", "UniqueId", "ID", "Id", "Name", "Username"}

var uuidPattern = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

// Identifier derives stable actor ids from opaque actor objects.
type Identifier struct {
	probes []locate.Probe
}

func NewIdentifier(probes ...locate.Probe) *Identifier {
	if len(probes) == 0 {
		probes = []locate.Probe{locate.DocProbe{}, locate.ReflectProbe{}}
	}
	return &Identifier{probes: probes}
}

// ActorID tries the actor's reference handle, then the actor itself, then a
// UUID-shaped substring of the actor's printed form.
func (ix *Identifier) ActorID(a Actor) (string, bool) {
	if h := a.Handle(); h != nil {
		if id, ok := ix.fromMembers(h); ok {
			return id, true
		}
	}
	if id, ok := ix.fromMembers(a); ok {
		return id, true
	}
	return fromPrinted(a)
}

func (ix *Identifier) fromMembers(v any) (string, bool) {
	var p locate.Probe
	for _, c := range ix.probes {
		if c.Accepts(v) {
			p = c
			break
		}
	}
	if p == nil || p.Leaf(v) {
		return "", false
	}
	for _, name := range idMembers {
		if id, ok := readID(p, v, name); ok {
			return id, true
		}
	}
	return "", false
}

func readID(p locate.Probe, v any, name string) (id string, ok bool) {
	defer func() {
		if recover() != nil {
			id, ok = "", false
		}
	}()
	x, err := p.Get(v, name)
	if err != nil {
		return "", false
	}
	switch t := x.(type) {
	case string:
		id = t
	case fmt.Stringer:
		id = t.String()
	case int:
		id = strconv.Itoa(t)
	case int64:
		id = strconv.FormatInt(t, 10)
	case uint64:
		id = strconv.FormatUint(t, 10)
	default:
		return "", false
	}
	id = strings.TrimSpace(id)
	return id, validID(id)
}

func fromPrinted(a Actor) (id string, ok bool) {
	defer func() {
		if recover() != nil {
			id, ok = "", false
		}
	}()
	for _, m := range uuidPattern.FindAllString(fmt.Sprint(a), -1) {
		u, err := uuid.Parse(m)
		if err != nil || u == uuid.Nil {
			continue
		}
		return u.String(), true
	}
	return "", false
}

func validID(id string) bool {
	switch strings.ToLower(id) {
	case "", "null", "nil", "<nil>", "0", uuid.Nil.String():
		return false
	}
	return true
}
