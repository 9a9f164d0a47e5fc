package data

import (
	"fmt"
	"os"
	"sort"

	"github.com/aimloc/server/internal/geom"
	"gopkg.in/yaml.v3"
)

// Layer fills Thickness cells of Cell, stacked upward from the region floor.
type Layer struct {
	Cell      string `yaml:"cell"`
	Thickness int    `yaml:"thickness"`
}

// Structure places a cell type, with its parts, anchored at At.
type Structure struct {
	Cell string    `yaml:"cell"`
	At   geom.Int3 `yaml:"at"`
}

// RegionInfo is the static description of one region.
type RegionInfo struct {
	Name          string      `yaml:"name"`
	MinY          int         `yaml:"min_y"`
	MaxY          int         `yaml:"max_y"` // exclusive
	Layers        []Layer     `yaml:"layers"`
	Structures    []Structure `yaml:"structures"`
	PreloadRadius int         `yaml:"preload_radius"` // chunks around the origin loaded at startup
}

// Height returns the number of cell rows in the region.
func (r *RegionInfo) Height() int {
	return r.MaxY - r.MinY
}

type regionFile struct {
	Regions []RegionInfo `yaml:"regions"`
}

// RegionTable provides region lookups by name.
type RegionTable struct {
	regions map[string]*RegionInfo
}

// LoadRegionTable loads regions.yaml. Layer cells must exist in cells.
func LoadRegionTable(path string, cells *CellTypeTable) (*RegionTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read regions %s: %w", path, err)
	}
	var file regionFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse regions: %w", err)
	}
	return NewRegionTable(file.Regions, cells)
}

func NewRegionTable(regions []RegionInfo, cells *CellTypeTable) (*RegionTable, error) {
	t := &RegionTable{regions: make(map[string]*RegionInfo, len(regions))}
	for i := range regions {
		r := &regions[i]
		if r.Name == "" {
			return nil, fmt.Errorf("region %d: missing name", i)
		}
		if _, dup := t.regions[r.Name]; dup {
			return nil, fmt.Errorf("region %q: duplicate", r.Name)
		}
		if r.Height() <= 0 {
			return nil, fmt.Errorf("region %q: max_y must exceed min_y", r.Name)
		}
		total := 0
		for _, l := range r.Layers {
			if cells.Get(l.Cell) == nil {
				return nil, fmt.Errorf("region %q: unknown layer cell %q", r.Name, l.Cell)
			}
			total += l.Thickness
		}
		if total > r.Height() {
			return nil, fmt.Errorf("region %q: layers exceed region height", r.Name)
		}
		for j, st := range r.Structures {
			if err := r.checkStructure(st, cells); err != nil {
				return nil, fmt.Errorf("region %q: structure %d: %w", r.Name, j, err)
			}
		}
		t.regions[r.Name] = r
	}
	return t, nil
}

func (r *RegionInfo) checkStructure(st Structure, cells *CellTypeTable) error {
	ct := cells.Get(st.Cell)
	if ct == nil {
		return fmt.Errorf("unknown cell %q", st.Cell)
	}
	for _, off := range append([]geom.Int3{{}}, ct.Parts...) {
		if y := st.At.Y + off.Y; y < r.MinY || y >= r.MaxY {
			return fmt.Errorf("%s at %s: y %d outside region", st.Cell, st.At, y)
		}
	}
	return nil
}

// Get returns the region by name, or nil.
func (t *RegionTable) Get(name string) *RegionInfo {
	return t.regions[name]
}

// Names returns region names in sorted order.
func (t *RegionTable) Names() []string {
	names := make([]string, 0, len(t.regions))
	for n := range t.regions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (t *RegionTable) Count() int {
	return len(t.regions)
}
