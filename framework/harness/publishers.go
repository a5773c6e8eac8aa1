package harness

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gridnav/planner-test-harness/framework"
	"github.com/gridnav/planner-test-harness/nav"
)

// Publications run on the spin loop, so a hung receiver must not be allowed
// to stall it; sends are bounded by this budget.
const publishTimeout = time.Second * 2

// PosePublisher broadcasts the simulated robot position to the planner
// service, which takes the most recent pose as the start of any plan it
// computes. Sends go through the spin loop like all other outgoing traffic.
type PosePublisher struct {
	harness    *TestHarness
	logger     framework.Logger
	httpClient *http.Client
}

// NewPosePublisher creates a publisher and immediately broadcasts an origin
// pose, so the planner always has some notion of where the robot is.
func NewPosePublisher(h *TestHarness, logger framework.Logger) *PosePublisher {
	if logger == nil {
		logger = h.logger
	}
	p := &PosePublisher{
		harness:    h,
		logger:     logger,
		httpClient: &http.Client{Timeout: publishTimeout},
	}
	p.UpdateRobotPosition(nav.Position{X: 0, Y: 0})
	return p
}

// UpdateRobotPosition publishes the given position as the robot's current
// pose. The send completes on the spin loop before this returns, so a
// subsequent plan request cannot overtake it.
func (p *PosePublisher) UpdateRobotPosition(position nav.Position) {
	update := nav.PoseUpdate{
		Position: position,
		Frame:    "map",
		Child:    "base_link",
	}
	err := p.harness.Loop().Do(func() {
		p.post("/pose", update)
	})
	if err != nil {
		p.logger.Printf("Pose update dropped: %s", err)
	}
}

// StartMapBroadcast republishes the map periodically for visualization. No
// test depends on it; failures are only logged.
func (p *PosePublisher) StartMapBroadcast(grid nav.OccupancyGrid, interval time.Duration) {
	p.harness.Loop().AddTicker(interval, func() {
		p.post("/map", grid)
	})
}

func (p *PosePublisher) post(path string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Printf("Failed to encode %s payload: %s", path, err)
		return
	}
	resp, err := p.httpClient.Post(
		p.harness.PlannerBaseURL()+path, "application/json", bytes.NewReader(data))
	if err != nil {
		p.logger.Printf("POST %s failed: %s", path, err)
		return
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		p.logger.Printf("POST %s returned HTTP %d", path, resp.StatusCode)
	}
}
