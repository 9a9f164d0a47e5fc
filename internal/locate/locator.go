package locate

import (
	"fmt"
	"strings"

	"github.com/aimloc/server/internal/geom"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
)

// DefaultMaxDepth bounds the traversal, counting the root as depth 1.
const DefaultMaxDepth = 4

// Member spellings tried in order; the first numeric read wins.
var (
	axisX = []string{"x", "X", "getX", "GetX", "cellX", "CellX", "blockX", "BlockX"}
	axisY = []string{"y", "Y", "getY", "GetY", "cellY", "CellY", "blockY", "BlockY"}
	axisZ = []string{"z", "Z", "getZ", "GetZ", "cellZ", "CellZ", "blockZ", "BlockZ"}

	regionNames = []string{
		"world", "World", "getWorld", "GetWorld",
		"region", "Region", "level", "Level", "dimension", "Dimension",
	}
)

// DefaultKeywords select which members are worth descending into.
var DefaultKeywords = []string{
	"hit", "target", "block", "pos", "position", "location",
	"coord", "world", "chunk", "cell", "region",
}

type Options struct {
	MaxDepth int
	Keywords []string
	Describe bool // log each new node shape once at debug level
}

func DefaultOptions() Options {
	return Options{MaxDepth: DefaultMaxDepth, Keywords: DefaultKeywords, Describe: true}
}

// Match is a located position and the member path that produced it.
type Match struct {
	Location geom.Location
	Path     []string
}

// Locator searches opaque object graphs for position-shaped data.
// It holds no per-call state and is safe for concurrent use.
type Locator struct {
	opts     Options
	probes   []Probe
	shapes   *ShapeSet
	keywords []string // case folded
	log      *zap.Logger
}

// New creates a locator. Probes are consulted in order; when none are given
// DocProbe and ReflectProbe are used.
func New(opts Options, shapes *ShapeSet, log *zap.Logger, probes ...Probe) *Locator {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if len(opts.Keywords) == 0 {
		opts.Keywords = DefaultKeywords
	}
	if len(probes) == 0 {
		probes = []Probe{DocProbe{}, ReflectProbe{}}
	}
	if shapes == nil {
		shapes = NewShapeSet()
	}
	if log == nil {
		log = zap.NewNop()
	}
	fold := cases.Fold()
	kw := make([]string, len(opts.Keywords))
	for i, k := range opts.Keywords {
		kw[i] = fold.String(k)
	}
	return &Locator{opts: opts, probes: probes, shapes: shapes, keywords: kw, log: log}
}

// Locate walks root looking for a node with three integer axes. known seeds
// the region; a region found on the way is carried to deeper nodes.
func (l *Locator) Locate(root any, known geom.RegionID) (Match, bool) {
	w := &walker{l: l, fold: cases.Fold()}
	return w.visit(root, 1, known, nil)
}

// RegionOf reads a region handle directly off v, without descending.
func (l *Locator) RegionOf(v any) (geom.RegionID, bool) {
	switch v.(type) {
	case geom.Regioner, geom.RegionID:
		if r, ok := asRegion(v); ok {
			return r, true
		}
	}
	p := l.probeFor(v)
	if p == nil || p.Leaf(v) {
		return "", false
	}
	return l.regionMember(p, v)
}

func (l *Locator) probeFor(v any) Probe {
	if v == nil {
		return nil
	}
	for _, p := range l.probes {
		if p.Accepts(v) {
			return p
		}
	}
	return nil
}

func (l *Locator) axes(p Probe, v any) (geom.Int3, bool) {
	x, ok := readAxis(p, v, axisX)
	if !ok {
		return geom.Int3{}, false
	}
	y, ok := readAxis(p, v, axisY)
	if !ok {
		return geom.Int3{}, false
	}
	z, ok := readAxis(p, v, axisZ)
	if !ok {
		return geom.Int3{}, false
	}
	return geom.Int3{X: x, Y: y, Z: z}, true
}

func readAxis(p Probe, v any, names []string) (int, bool) {
	for _, n := range names {
		var got int
		err := guard(func() error {
			var err error
			got, err = p.Int(v, n)
			return err
		})
		if err == nil {
			return got, true
		}
	}
	return 0, false
}

func (l *Locator) regionMember(p Probe, v any) (geom.RegionID, bool) {
	for _, n := range regionNames {
		var got any
		if err := guard(func() error {
			var err error
			got, err = p.Get(v, n)
			return err
		}); err != nil {
			continue
		}
		if r, ok := asRegion(got); ok {
			return r, true
		}
	}
	return "", false
}

// asRegion recognises region handles: Regioner values, RegionID and
// non-empty strings.
func asRegion(v any) (r geom.RegionID, ok bool) {
	defer func() {
		if recover() != nil {
			r, ok = "", false
		}
	}()
	switch x := v.(type) {
	case geom.Regioner:
		r = x.RegionID()
	case geom.RegionID:
		r = x
	case string:
		r = geom.RegionID(x)
	}
	return r, r.Valid()
}

// describe logs the keyword-matching surface of a shape the first time it is seen.
func (l *Locator) describe(w *walker, p Probe, v any) {
	if !l.opts.Describe {
		return
	}
	shape := p.Shape(v)
	if !l.shapes.FirstSeen(shape) {
		return
	}
	members, err := p.Members(v)
	if err != nil {
		return
	}
	var surface []string
	for _, m := range members {
		if !w.matches(m.Name) && !isAxisOrRegion(m.Name) {
			continue
		}
		kind := "field"
		if m.Accessor {
			kind = "accessor"
		}
		surface = append(surface, fmt.Sprintf("%s %s (%s)", m.Name, m.Type, kind))
	}
	l.log.Debug("new interaction shape",
		zap.String("shape", shape),
		zap.Int("members", len(members)),
		zap.Strings("surface", surface),
	)
}

func isAxisOrRegion(name string) bool {
	for _, set := range [][]string{axisX, axisY, axisZ, regionNames} {
		for _, n := range set {
			if n == name {
				return true
			}
		}
	}
	return false
}

// guard converts a panic inside a probe call into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe panic: %v", r)
		}
	}()
	return fn()
}

// walker carries per-call state. cases.Caser is not safe for concurrent use.
type walker struct {
	l    *Locator
	fold cases.Caser
}

func (w *walker) matches(name string) bool {
	folded := w.fold.String(name)
	for _, k := range w.l.keywords {
		if strings.Contains(folded, k) {
			return true
		}
	}
	return false
}

func (w *walker) visit(node any, depth int, region geom.RegionID, path []string) (Match, bool) {
	l := w.l
	if node == nil || depth > l.opts.MaxDepth {
		return Match{}, false
	}
	p := l.probeFor(node)
	if p == nil || p.Leaf(node) {
		return Match{}, false
	}
	l.describe(w, p, node)

	if !region.Valid() {
		if r, ok := asRegion(node); ok {
			region = r
		} else if r, ok := l.regionMember(p, node); ok {
			region = r
		}
	}
	// The first node with three axes is the candidate; without a region
	// the search ends here rather than trying deeper positions.
	if c, ok := l.axes(p, node); ok {
		if !region.Valid() {
			return Match{}, false
		}
		return Match{Location: geom.LocationAt(region, c), Path: path}, true
	}

	var members []Member
	if err := guard(func() error {
		var err error
		members, err = p.Members(node)
		return err
	}); err != nil {
		return Match{}, false
	}

	// Accessors before fields; stable keeps the probe's order within each group.
	ordered := make([]Member, 0, len(members))
	for _, m := range members {
		if m.Accessor {
			ordered = append(ordered, m)
		}
	}
	for _, m := range members {
		if !m.Accessor {
			ordered = append(ordered, m)
		}
	}

	for _, m := range ordered {
		if !w.matches(m.Name) {
			continue
		}
		var child any
		if err := guard(func() error {
			var err error
			child, err = p.Get(node, m.Name)
			return err
		}); err != nil || child == nil {
			continue
		}
		next := append(path[:len(path):len(path)], m.Name)
		if res, ok := w.visit(child, depth+1, region, next); ok {
			return res, true
		}
	}
	return Match{}, false
}
