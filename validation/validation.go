// Package validation holds the geometric pass/fail criteria applied to paths
// returned by a planner: collision-freedom against a costmap, and endpoint
// agreement with the requested start and goal.
package validation

import (
	"fmt"
	"strings"

	"github.com/gridnav/planner-test-harness/framework"
	"github.com/gridnav/planner-test-harness/nav"
)

// CellQuerier is the free-space query capability a costmap provides. The
// checks below depend only on this, not on a concrete grid implementation.
type CellQuerier interface {
	IsFree(x, y int) bool
}

// CollisionFree reports whether every point of the path rounds to a free
// cell. An empty path is vacuously collision-free. Scanning stops at the
// first colliding point; the offending path is logged for diagnostics.
//
// The robot is assumed to occupy a single cell. Planners that cut corners can
// legitimately fail this check; that is the behavior under test.
func CollisionFree(q CellQuerier, path nav.Path, logger framework.Logger) bool {
	for _, p := range path {
		x, y := p.Cell()
		if !q.IsFree(x, y) {
			logger.Printf("Path has collision at (%.2f, %.2f)", p.X, p.Y)
			logger.Println(FormatPath(path))
			return false
		}
	}
	return true
}

// WithinTolerance reports whether the path's first point coincides with the
// requested start and its last point with the requested goal. The comparison
// is exact coordinate equality. An empty path fails the check.
func WithinTolerance(start nav.Position, goal nav.Goal, path nav.Path) bool {
	return WithinToleranceOfReference(start, goal, path, 0, nil)
}

// WithinToleranceOfReference is the richer form of the endpoint check. The
// deviation tolerance and reference path are accepted for interface
// compatibility but are not yet scored; the check is currently equivalent to
// WithinTolerance.
func WithinToleranceOfReference(
	start nav.Position,
	goal nav.Goal,
	path nav.Path,
	deviationTolerance float64,
	referencePath nav.Path,
) bool {
	_ = deviationTolerance
	_ = referencePath

	if len(path) == 0 {
		return false
	}
	first, last := path[0], path[len(path)-1]
	return first.X == start.X && first.Y == start.Y &&
		last.X == goal.Position.X && last.Y == goal.Position.Y
}

// FormatPath renders a path one point per line for diagnostic output.
func FormatPath(path nav.Path) string {
	var sb strings.Builder
	for i, p := range path {
		fmt.Fprintf(&sb, "   point #%d with x: %.3g y: %.3g\n", i, p.X, p.Y)
	}
	return sb.String()
}
