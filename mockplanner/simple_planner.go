package mockplanner

import (
	"github.com/gridnav/planner-test-harness/grid"
	"github.com/gridnav/planner-test-harness/nav"
)

// PlanPath computes a path from start to goal over the free cells of the
// grid using a breadth-first search with 4-connected moves. The returned path
// begins with the exact start position and ends with the exact goal position,
// with intermediate points at cell centers. It returns false when either
// endpoint is blocked or no route exists.
//
// This is deliberately the dumbest planner that can satisfy the validation
// criteria; it exists so the harness has genuine geometry to check, not to
// be a good planner.
func PlanPath(c *grid.Costmap, start, goal nav.Position) (nav.Path, bool) {
	if c == nil {
		return nil, false
	}
	sx, sy := start.Cell()
	gx, gy := goal.Cell()
	if !c.IsFree(sx, sy) || !c.IsFree(gx, gy) {
		return nil, false
	}

	props := c.Properties()
	index := func(x, y int) int { return y*props.SizeX + x }

	cameFrom := make(map[int]int, props.SizeX*props.SizeY)
	cameFrom[index(sx, sy)] = -1
	queue := []int{index(sx, sy)}

	found := false
	for len(queue) > 0 && !found {
		cur := queue[0]
		queue = queue[1:]
		cx, cy := cur%props.SizeX, cur/props.SizeX
		for _, step := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			nx, ny := cx+step[0], cy+step[1]
			if !c.IsFree(nx, ny) {
				continue
			}
			ni := index(nx, ny)
			if _, seen := cameFrom[ni]; seen {
				continue
			}
			cameFrom[ni] = cur
			if nx == gx && ny == gy {
				found = true
				break
			}
			queue = append(queue, ni)
		}
	}

	if _, ok := cameFrom[index(gx, gy)]; !ok {
		return nil, false
	}

	var cells []int
	for cur := index(gx, gy); cur != -1; cur = cameFrom[cur] {
		cells = append(cells, cur)
	}
	// cells runs goal-to-start; build the path in forward order with the
	// exact requested endpoints.
	path := make(nav.Path, 0, len(cells))
	path = append(path, start)
	for i := len(cells) - 2; i >= 1; i-- {
		x, y := cells[i]%props.SizeX, cells[i]/props.SizeX
		path = append(path, nav.Position{X: float64(x), Y: float64(y)})
	}
	if len(cells) > 1 || start != goal {
		path = append(path, goal)
	}
	return path, true
}
