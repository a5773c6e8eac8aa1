// Package grid implements the occupancy-grid costmap that planning results
// are validated against: fixed in-code test grids, grids loaded from map
// files, free-space queries, random free-cell sampling, and sub-region
// snapshots for the costmap query service.
package grid

import (
	"fmt"
	"math/rand"

	"github.com/gridnav/planner-test-harness/nav"
)

// Occupancy values used in the trinary cost interpretation.
const (
	CostFree    int8 = 0
	CostLethal  int8 = 100
	CostUnknown int8 = -1
)

// Source says where a costmap's data came from. Randomized campaigns are only
// supported against loaded maps; see plantests.
type Source int

const (
	SourceFake Source = iota
	SourceLoaded
)

func (s Source) String() string {
	if s == SourceLoaded {
		return "loaded"
	}
	return "fake"
}

// Properties are the grid dimensions used to bound random sampling.
type Properties struct {
	SizeX      int
	SizeY      int
	Resolution float64
}

// Costmap is a read-only occupancy grid. The harness holds one for the
// lifetime of a test campaign and only ever queries it.
type Costmap struct {
	props  Properties
	data   []int8 // row-major, len = SizeX*SizeY
	source Source
}

// ConfigurationError indicates a missing external resource or an unsupported
// mode. It aborts a campaign before any trial runs, unlike per-trial
// failures which are only counted.
type ConfigurationError struct {
	Message string
}

func (e ConfigurationError) Error() string { return e.Message }

func newCostmap(props Properties, data []int8, source Source) (*Costmap, error) {
	if props.SizeX <= 0 || props.SizeY <= 0 {
		return nil, fmt.Errorf("invalid costmap dimensions %dx%d", props.SizeX, props.SizeY)
	}
	if len(data) != props.SizeX*props.SizeY {
		return nil, fmt.Errorf("costmap data length %d does not match %dx%d",
			len(data), props.SizeX, props.SizeY)
	}
	return &Costmap{props: props, data: data, source: source}, nil
}

// Properties returns the grid dimensions and resolution.
func (c *Costmap) Properties() Properties { return c.props }

// Source reports whether the costmap is a fake preset or a loaded map.
func (c *Costmap) Source() Source { return c.source }

// CellValue returns the occupancy value at the given cell, or CostUnknown for
// out-of-bounds coordinates.
func (c *Costmap) CellValue(x, y int) int8 {
	if x < 0 || y < 0 || x >= c.props.SizeX || y >= c.props.SizeY {
		return CostUnknown
	}
	return c.data[y*c.props.SizeX+x]
}

// IsFree reports whether the cell is classified as free space. Unknown cells
// and cells outside the grid are not free.
func (c *Costmap) IsFree(x, y int) bool {
	return c.CellValue(x, y) == CostFree
}

// SampleFreePosition picks a uniformly random free cell, retrying until the
// free-space predicate holds. The sampling range excludes the outermost cells,
// matching the bounds the planners under test are exercised with. A grid with
// no free cell in that range will not terminate; that degenerate input is the
// caller's problem.
func (c *Costmap) SampleFreePosition(rng *rand.Rand) nav.Position {
	for {
		x := 1 + rng.Intn(c.props.SizeX-1)
		y := 1 + rng.Intn(c.props.SizeY-1)
		if c.IsFree(x, y) {
			return nav.Position{X: float64(x), Y: float64(y)}
		}
	}
}

// Occupancy returns the full grid as a wire-format occupancy raster.
func (c *Costmap) Occupancy() nav.OccupancyGrid {
	data := make([]int8, len(c.data))
	copy(data, c.data)
	return nav.OccupancyGrid{
		Width:      c.props.SizeX,
		Height:     c.props.SizeY,
		Resolution: c.props.Resolution,
		Frame:      "map",
		Data:       data,
	}
}

// Region returns a snapshot of the sub-window selected by specs, clipped to
// the grid bounds. This backs the costmap query service that the harness
// serves to the planner.
func (c *Costmap) Region(specs nav.CostmapSpecs) nav.CostmapRegion {
	x0 := clamp(specs.OriginX, 0, c.props.SizeX)
	y0 := clamp(specs.OriginY, 0, c.props.SizeY)
	x1 := clamp(specs.OriginX+specs.Width, x0, c.props.SizeX)
	y1 := clamp(specs.OriginY+specs.Height, y0, c.props.SizeY)

	w, h := x1-x0, y1-y0
	data := make([]int8, 0, w*h)
	for y := y0; y < y1; y++ {
		row := c.data[y*c.props.SizeX:]
		data = append(data, row[x0:x1]...)
	}
	return nav.CostmapRegion{
		Specs: nav.CostmapSpecs{OriginX: x0, OriginY: y0, Width: w, Height: h},
		Map: nav.OccupancyGrid{
			Width:      w,
			Height:     h,
			Resolution: c.props.Resolution,
			Frame:      "map",
			Data:       data,
		},
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
