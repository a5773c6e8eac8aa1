package grid

import "fmt"

// Preset identifies one of the fixed 10x10 test grids. These exist so that
// harness plumbing can be exercised without an external map resource; they
// are not valid targets for randomized campaigns.
type Preset string

const (
	// OpenSpace is entirely free.
	OpenSpace Preset = "open_space"
	// Bounded has an occupied one-cell border around free space.
	Bounded Preset = "bounded"
	// BottomLeftObstacle has a 3x3 block near the origin corner.
	BottomLeftObstacle Preset = "bottom_left_obstacle"
	// TopLeftObstacle has a 3x3 block in the max-Y corner at low X.
	TopLeftObstacle Preset = "top_left_obstacle"
	// Maze has two staggered walls that force a winding route.
	Maze Preset = "maze"
)

const presetSize = 10

// NewFakeCostmap builds the fixed test grid for the given preset.
func NewFakeCostmap(preset Preset) (*Costmap, error) {
	data := make([]int8, presetSize*presetSize)

	occupy := func(x, y int) { data[y*presetSize+x] = CostLethal }

	switch preset {
	case OpenSpace:
		// all free
	case Bounded:
		for i := 0; i < presetSize; i++ {
			occupy(i, 0)
			occupy(i, presetSize-1)
			occupy(0, i)
			occupy(presetSize-1, i)
		}
	case BottomLeftObstacle:
		for y := 2; y <= 4; y++ {
			for x := 2; x <= 4; x++ {
				occupy(x, y)
			}
		}
	case TopLeftObstacle:
		for y := 5; y <= 7; y++ {
			for x := 2; x <= 4; x++ {
				occupy(x, y)
			}
		}
	case Maze:
		for y := 0; y <= 6; y++ {
			occupy(3, y)
		}
		for y := 3; y <= 9; y++ {
			occupy(6, y)
		}
	default:
		return nil, fmt.Errorf("unknown costmap preset %q", preset)
	}

	props := Properties{SizeX: presetSize, SizeY: presetSize, Resolution: 1.0}
	return newCostmap(props, data, SourceFake)
}
