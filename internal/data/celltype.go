package data

import (
	"fmt"
	"math"
	"os"

	"github.com/aimloc/server/internal/geom"
	"gopkg.in/yaml.v3"
)

// Air is palette index 0 and is never listed in the table.
const Air uint16 = 0

// CellType describes one kind of cell. Parts lists the offsets, relative to
// the anchor, of the extra cells a composite structure of this type occupies.
type CellType struct {
	ID    uint16      `yaml:"-"`
	Name  string      `yaml:"name"`
	Solid bool        `yaml:"solid"`
	Parts []geom.Int3 `yaml:"parts"`
}

type cellTypeFile struct {
	Types []CellType `yaml:"cell_types"`
}

// CellTypeTable is the cell palette. IDs follow file order starting at 1.
type CellTypeTable struct {
	byName map[string]*CellType
	byID   []*CellType // index 0 is air (nil)
}

// LoadCellTypeTable loads cell_types.yaml.
func LoadCellTypeTable(path string) (*CellTypeTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cell types %s: %w", path, err)
	}
	var file cellTypeFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse cell types: %w", err)
	}
	return NewCellTypeTable(file.Types)
}

// NewCellTypeTable builds a palette from in-memory entries.
func NewCellTypeTable(types []CellType) (*CellTypeTable, error) {
	t := &CellTypeTable{
		byName: make(map[string]*CellType, len(types)),
		byID:   make([]*CellType, 1, len(types)+1),
	}
	for i := range types {
		ct := types[i]
		if ct.Name == "" || ct.Name == "air" {
			return nil, fmt.Errorf("cell type %d: invalid name %q", i, ct.Name)
		}
		if _, dup := t.byName[ct.Name]; dup {
			return nil, fmt.Errorf("cell type %q: duplicate", ct.Name)
		}
		for _, p := range ct.Parts {
			if !fitsInt8(p) {
				return nil, fmt.Errorf("cell type %q: part offset %s out of range", ct.Name, p)
			}
		}
		if len(t.byID) > math.MaxUint16 {
			return nil, fmt.Errorf("too many cell types")
		}
		ct.ID = uint16(len(t.byID))
		t.byID = append(t.byID, &ct)
		t.byName[ct.Name] = &ct
	}
	return t, nil
}

func fitsInt8(p geom.Int3) bool {
	in := func(v int) bool { return v >= math.MinInt8 && v <= math.MaxInt8 }
	return in(p.X) && in(p.Y) && in(p.Z)
}

// Get returns the cell type by name, or nil.
func (t *CellTypeTable) Get(name string) *CellType {
	return t.byName[name]
}

// ByID returns the cell type for a palette index, or nil for air and unknown IDs.
func (t *CellTypeTable) ByID(id uint16) *CellType {
	if int(id) >= len(t.byID) {
		return nil
	}
	return t.byID[id]
}

// Count returns the number of cell types, excluding air.
func (t *CellTypeTable) Count() int {
	return len(t.byID) - 1
}
