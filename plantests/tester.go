package plantests

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/gridnav/planner-test-harness/framework"
	"github.com/gridnav/planner-test-harness/framework/harness"
	"github.com/gridnav/planner-test-harness/grid"
	"github.com/gridnav/planner-test-harness/nav"
	"github.com/gridnav/planner-test-harness/validation"
)

// GridState tracks which kind of costmap the tester currently holds.
// Operations that are invalid for the current state fail with a
// ConfigurationError instead of being silently attempted.
type GridState int

const (
	// Uninitialized means no costmap has been set.
	Uninitialized GridState = iota
	// FakeReady means one of the fixed test grids is active.
	FakeReady
	// LoadedReady means an externally loaded map is active.
	LoadedReady
)

func (s GridState) String() string {
	switch s {
	case FakeReady:
		return "fake grid ready"
	case LoadedReady:
		return "loaded map ready"
	}
	return "uninitialized"
}

// CampaignResult is the aggregate outcome of a randomized campaign.
type CampaignResult struct {
	Trials   int
	Failures int
	Elapsed  time.Duration
	Passed   bool
}

// PlannerTester drives planning trials against the planner service. It owns
// the costmap, the pose publisher, the costmap query service, and the plan
// request client, all attached to a shared TestHarness whose spin loop pumps
// the traffic.
type PlannerTester struct {
	harness    *harness.TestHarness
	client     *harness.PlannerClient
	pose       *harness.PosePublisher
	costmapSvc *harness.CostmapService
	costmap    *grid.Costmap
	state      GridState
	logger     framework.Logger
}

// NewPlannerTester attaches a tester to the harness. It starts with the
// open-space fake grid, like the planners' own smoke setups; campaigns
// require LoadDefaultMap to have been called first.
func NewPlannerTester(h *harness.TestHarness, logger framework.Logger) (*PlannerTester, error) {
	if logger == nil {
		logger = framework.NullLogger()
	}
	t := &PlannerTester{
		harness: h,
		client:  harness.NewPlannerClient(h, framework.LoggerWithPrefix(logger, "[client] ")),
		pose:    harness.NewPosePublisher(h, framework.LoggerWithPrefix(logger, "[pose] ")),
		logger:  logger,
	}
	if err := t.LoadSimpleCostmap(grid.OpenSpace); err != nil {
		return nil, err
	}
	t.costmapSvc = harness.NewCostmapService(h, t.costmap, logger)
	t.client.SetCostmapURL(t.costmapSvc.URL())
	return t, nil
}

// Close unregisters the tester's endpoints. The harness itself stays up.
func (t *PlannerTester) Close() {
	if t.costmapSvc != nil {
		t.costmapSvc.Close()
	}
}

// State returns the current grid state.
func (t *PlannerTester) State() GridState { return t.state }

// Costmap returns the active costmap.
func (t *PlannerTester) Costmap() *grid.Costmap { return t.costmap }

// Client returns the plan request client, mainly for protocol-level tests.
func (t *PlannerTester) Client() *harness.PlannerClient { return t.client }

// LoadSimpleCostmap replaces the active costmap with one of the fixed test
// grids.
func (t *PlannerTester) LoadSimpleCostmap(preset grid.Preset) error {
	if t.state != Uninitialized {
		t.logger.Printf("Setting a new costmap with fake values")
	}
	c, err := grid.NewFakeCostmap(preset)
	if err != nil {
		return err
	}
	t.setCostmap(c, FakeReady)
	return nil
}

// LoadDefaultMap loads the externally supplied map resource and replaces the
// active costmap with it. It also starts the periodic map rebroadcast used
// for visualization.
func (t *PlannerTester) LoadDefaultMap(metadataPath string) error {
	t.logger.Printf("Loading map with file path: %s", metadataPath)
	c, err := grid.LoadFromFile(metadataPath)
	if err != nil {
		return err
	}
	t.setCostmap(c, LoadedReady)
	t.pose.StartMapBroadcast(c.Occupancy(), time.Second)
	return nil
}

func (t *PlannerTester) setCostmap(c *grid.Costmap, state GridState) {
	t.costmap = c
	t.state = state
	if t.costmapSvc != nil {
		t.costmapSvc.SetSource(c)
	}
}

// RunTrial runs one planning trial: publish the robot position, request a
// plan for the goal, and validate the returned path. Any protocol failure or
// validation failure makes the trial false; nothing is retried.
func (t *PlannerTester) RunTrial(robotPosition nav.Position, goal nav.Goal, pathOut *nav.Path) bool {
	if t.state == Uninitialized {
		t.logger.Printf("Costmap must be set before requesting a plan")
		return false
	}

	t.logger.Printf("Getting the path from the planner")
	t.pose.UpdateRobotPosition(robotPosition)

	status, path := t.client.RequestPlan(goal)
	t.logger.Printf("Path request status: %s", status)

	if status != harness.TaskSucceeded {
		return false
	}

	if pathOut != nil {
		*pathOut = path
	}

	t.logger.Printf("Got path, checking for possible collisions")
	return validation.CollisionFree(t.costmap, path, t.logger) &&
		validation.WithinTolerance(robotPosition, goal, path)
}

// DefaultTrial runs a trial with the standard start and goal for the current
// grid kind: a short diagonal on a fake grid, a long crossing on a loaded
// map.
func (t *PlannerTester) DefaultTrial(pathOut *nav.Path) (bool, error) {
	if t.state == Uninitialized {
		return false, grid.ConfigurationError{Message: "costmap must be set before requesting a plan"}
	}
	if err := t.waitForPlanner(); err != nil {
		return false, err
	}

	var start nav.Position
	var goal nav.Goal
	goal.Frame = "map"
	if t.state == FakeReady {
		t.logger.Printf("Planning using a fake costmap")
		start = nav.Position{X: 1.0, Y: 1.0}
		goal.Position = nav.Position{X: 8.0, Y: 8.0}
	} else {
		t.logger.Printf("Planning using the provided map")
		start = nav.Position{X: 390.0, Y: 10.0}
		goal.Position = nav.Position{X: 10.0, Y: 390.0}
	}

	return t.RunTrial(start, goal, pathOut), nil
}

// RunCampaign runs n randomized trials with starts and goals sampled
// uniformly from the free cells of the loaded map, and applies the acceptance
// ratio to the failure count. Failed trials are counted, never retried. A
// fake grid is not a valid campaign target and yields a ConfigurationError.
func (t *PlannerTester) RunCampaign(n int, acceptableFailRatio float64, rng *rand.Rand) (CampaignResult, error) {
	if t.state == Uninitialized {
		return CampaignResult{}, grid.ConfigurationError{Message: "costmap must be set before requesting a plan"}
	}
	if t.state == FakeReady {
		return CampaignResult{}, grid.ConfigurationError{
			Message: "randomized testing against hardcoded costmaps is not supported"}
	}
	if err := t.waitForPlanner(); err != nil {
		return CampaignResult{}, err
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	failures := 0
	started := time.Now()
	for trial := 0; trial < n; trial++ {
		t.logger.Printf("Running trial #%d", trial+1)

		start := t.costmap.SampleFreePosition(rng)
		goal := nav.Goal{Position: t.costmap.SampleFreePosition(rng), Frame: "map"}

		if !t.RunTrial(start, goal, nil) {
			t.logger.Printf("Failed with start at %0.2f, %0.2f and goal at %0.2f, %0.2f",
				start.X, start.Y, goal.Position.X, goal.Position.Y)
			failures++
		}
	}
	elapsed := time.Since(started)

	t.logger.Printf("Tested with %d trials. Planner failed on %d. Test time %d ms",
		n, failures, elapsed.Milliseconds())

	return CampaignResult{
		Trials:   n,
		Failures: failures,
		Elapsed:  elapsed,
		Passed:   campaignVerdict(failures, n, acceptableFailRatio),
	}, nil
}

// campaignVerdict applies the acceptance ratio: a campaign passes unless the
// failure fraction strictly exceeds it. Zero trials pass vacuously rather
// than dividing by zero.
func campaignVerdict(failures, trials int, acceptableFailRatio float64) bool {
	if trials == 0 {
		return true
	}
	return float64(failures)/float64(trials) <= acceptableFailRatio
}

func (t *PlannerTester) waitForPlanner() error {
	t.logger.Printf("Waiting for the planner service")
	if err := t.client.WaitForServer(harness.DefaultServerWaitTimeout); err != nil {
		return fmt.Errorf("planner not running: %w", err)
	}
	return nil
}
