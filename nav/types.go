package nav

import "math"

// Position is a 2D coordinate in the map frame. Orientation is deliberately
// not modeled; the planners under test only consume positions.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Cell returns the integer grid cell that this position rounds to.
func (p Position) Cell() (int, int) {
	return int(math.Round(p.X)), int(math.Round(p.Y))
}

// Goal is a target pose for a planning request: a position plus the frame it
// is expressed in. Only the position participates in validation.
type Goal struct {
	Position Position `json:"position"`
	Frame    string   `json:"frame"`
}

// Path is the ordered sequence of positions returned by a planner. Empty and
// single-point paths are legal values.
type Path []Position

// ResultCode is the terminal status reported by the planner for a plan request.
type ResultCode string

const (
	ResultSucceeded ResultCode = "succeeded"
	ResultAborted   ResultCode = "aborted"
	ResultRejected  ResultCode = "rejected"
)

// PlanRequest is the body of a plan submission. CallbackURL names the harness
// endpoint that the planner must POST the PlanResult to once planning ends.
// CostmapURL, when present, names the harness's costmap query service so the
// planner can fetch grid snapshots while planning.
type PlanRequest struct {
	Goal        Goal   `json:"goal"`
	CallbackURL string `json:"callbackUrl"`
	CostmapURL  string `json:"costmapUrl,omitempty"`
}

// PlanAcceptance is the planner's synchronous response to a PlanRequest. A
// request that the planner will not work on is signaled by Accepted=false or
// by a non-2xx status, equivalently.
type PlanAcceptance struct {
	Accepted bool   `json:"accepted"`
	PlanID   string `json:"planId,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// PlanResult is the asynchronous terminal result for an accepted plan request.
type PlanResult struct {
	PlanID string     `json:"planId"`
	Code   ResultCode `json:"code"`
	Path   Path       `json:"path"`
}

// PoseUpdate is the harness's broadcast of the simulated robot position. The
// planner under test treats the most recent update as "where the robot is".
type PoseUpdate struct {
	Position Position `json:"position"`
	Frame    string   `json:"frame"`
	Child    string   `json:"child"`
}

// OccupancyGrid is a row-major occupancy raster. Cell values follow the
// trinary convention: 0 free, 100 lethal, -1 unknown.
type OccupancyGrid struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Resolution float64 `json:"resolution"`
	Frame      string  `json:"frame"`
	Data       []int8  `json:"data"`
}

// CostmapSpecs selects a sub-window of the costmap for a snapshot request.
type CostmapSpecs struct {
	OriginX int `json:"originX"`
	OriginY int `json:"originY"`
	Width   int `json:"width"`
	Height  int `json:"height"`
}

// CostmapRegion is the snapshot returned for a CostmapSpecs query.
type CostmapRegion struct {
	Specs CostmapSpecs  `json:"specs"`
	Map   OccupancyGrid `json:"map"`
}
