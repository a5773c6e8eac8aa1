package plantests

import (
	"fmt"
	"io"
	"math/rand"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridnav/planner-test-harness/framework"
	"github.com/gridnav/planner-test-harness/framework/harness"
	"github.com/gridnav/planner-test-harness/framework/navtest"
	"github.com/gridnav/planner-test-harness/grid"
	"github.com/gridnav/planner-test-harness/mockplanner"
	"github.com/gridnav/planner-test-harness/nav"
)

// Each harness needs its own listener port because the listener stays up for
// the life of the process.
var nextHarnessPort int32 = 42100 //nolint:gochecknoglobals

func startHarness(t *testing.T, config mockplanner.Config) *harness.TestHarness {
	t.Helper()

	service := mockplanner.NewService(config, framework.NullLogger())
	server := httptest.NewServer(service)
	t.Cleanup(server.Close)

	port := int(atomic.AddInt32(&nextHarnessPort, 1))
	h, err := harness.NewTestHarness(server.URL, "localhost", port,
		time.Second*5, framework.NullLogger(), io.Discard)
	require.NoError(t, err)
	t.Cleanup(h.Close)
	return h
}

func startTester(t *testing.T, config mockplanner.Config) *PlannerTester {
	t.Helper()
	h := startHarness(t, config)
	tester, err := NewPlannerTester(h, framework.NullLogger())
	require.NoError(t, err)
	t.Cleanup(tester.Close)
	return tester
}

func TestDefaultTrialOnOpenGrid(t *testing.T) {
	openGrid, err := grid.NewFakeCostmap(grid.OpenSpace)
	require.NoError(t, err)
	tester := startTester(t, mockplanner.Config{Grid: openGrid})

	var path nav.Path
	ok, err := tester.DefaultTrial(&path)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NotEmpty(t, path)
	assert.Equal(t, nav.Position{X: 1, Y: 1}, path[0])
	assert.Equal(t, nav.Position{X: 8, Y: 8}, path[len(path)-1])
}

func TestDefaultTrialRoutesAroundObstacle(t *testing.T) {
	mazeGrid, err := grid.NewFakeCostmap(grid.Maze)
	require.NoError(t, err)
	tester := startTester(t, mockplanner.Config{Grid: mazeGrid})
	require.NoError(t, tester.LoadSimpleCostmap(grid.Maze))

	var path nav.Path
	ok, err := tester.DefaultTrial(&path)
	require.NoError(t, err)
	assert.True(t, ok)
	// Routing around the walls takes more points than the straight diagonal.
	assert.Greater(t, len(path), 15)
}

func TestTrialFailsWhenGoalRejected(t *testing.T) {
	tester := startTester(t, mockplanner.Config{
		RejectGoals:  true,
		RejectReason: "planner busy",
	})

	ok, err := tester.DefaultTrial(nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTrialFailsWhenPlannerAborts(t *testing.T) {
	// A fully bounded grid leaves the trial endpoints blocked, so the mock
	// planner reports an aborted plan.
	boundedGrid, err := grid.NewFakeCostmap(grid.Bounded)
	require.NoError(t, err)
	tester := startTester(t, mockplanner.Config{
		Grid:            boundedGrid,
		ForceResultCode: nav.ResultAborted,
	})

	ok, err := tester.DefaultTrial(nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTrialFailsWhenPathMissesGoal(t *testing.T) {
	// The mock reports success but its path stops one cell short of the goal.
	shortPath := nav.Path{{X: 1, Y: 1}, {X: 4, Y: 4}, {X: 7, Y: 8}}
	tester := startTester(t, mockplanner.Config{ForcePath: shortPath})

	ok, err := tester.DefaultTrial(nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTrialFailsWhenAcceptanceTimesOut(t *testing.T) {
	if testing.Short() {
		t.Skip("waits out the full goal acceptance timeout")
	}
	openGrid, err := grid.NewFakeCostmap(grid.OpenSpace)
	require.NoError(t, err)
	tester := startTester(t, mockplanner.Config{
		Grid:        openGrid,
		AcceptDelay: harness.GoalAcceptTimeout + time.Second,
	})

	started := time.Now()
	ok, err := tester.DefaultTrial(nil)
	require.NoError(t, err)
	assert.False(t, ok)
	// The acceptance budget elapsed; the trial failed without ever waiting on
	// a result.
	elapsed := time.Since(started)
	assert.GreaterOrEqual(t, elapsed, harness.GoalAcceptTimeout)
	assert.Less(t, elapsed, harness.GoalAcceptTimeout+harness.ResultWaitTimeout)
}

func TestTrialFailsWhenResultNeverArrives(t *testing.T) {
	if testing.Short() {
		t.Skip("waits out the full result timeout")
	}
	tester := startTester(t, mockplanner.Config{NeverSendResult: true})

	started := time.Now()
	ok, err := tester.DefaultTrial(nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(started), harness.ResultWaitTimeout)
}

func TestCampaignRequiresLoadedMap(t *testing.T) {
	openGrid, err := grid.NewFakeCostmap(grid.OpenSpace)
	require.NoError(t, err)
	tester := startTester(t, mockplanner.Config{Grid: openGrid})

	_, err = tester.RunCampaign(5, 0.1, nil)
	var configErr grid.ConfigurationError
	assert.ErrorAs(t, err, &configErr)
}

func writeOpenMap(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	// A 10x10 all-white PGM: every cell free.
	pgm := append([]byte("P5\n10 10\n255\n"), make([]byte, 100)...)
	for i := len(pgm) - 100; i < len(pgm); i++ {
		pgm[i] = 255
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "open.pgm"), pgm, 0600))

	metaPath := filepath.Join(dir, "open.yaml")
	require.NoError(t, os.WriteFile(metaPath, []byte("image: open.pgm\nresolution: 1.0\n"), 0600))
	return metaPath
}

func TestCampaignOnLoadedMapPasses(t *testing.T) {
	mapPath := writeOpenMap(t)
	mapGrid, err := grid.LoadFromFile(mapPath)
	require.NoError(t, err)

	tester := startTester(t, mockplanner.Config{Grid: mapGrid})
	require.NoError(t, tester.LoadDefaultMap(mapPath))
	require.Equal(t, LoadedReady, tester.State())

	rng := rand.New(rand.NewSource(7))
	result, err := tester.RunCampaign(5, 0.1, rng)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Trials)
	assert.Zero(t, result.Failures)
	assert.True(t, result.Passed)
}

func TestCampaignCountsFailuresWithoutRetrying(t *testing.T) {
	mapPath := writeOpenMap(t)

	// Every goal is rejected, so every trial fails exactly once.
	tester := startTester(t, mockplanner.Config{RejectGoals: true})
	require.NoError(t, tester.LoadDefaultMap(mapPath))

	rng := rand.New(rand.NewSource(7))
	result, err := tester.RunCampaign(3, 0.5, rng)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Trials)
	assert.Equal(t, 3, result.Failures)
	assert.False(t, result.Passed)
}

func TestCampaignVerdict(t *testing.T) {
	for _, tc := range []struct {
		failures, trials int
		ratio            float64
		passed           bool
	}{
		{0, 20, 0.1, true},
		{2, 20, 0.1, true},  // exactly at the ratio
		{3, 20, 0.1, false}, // strictly over
		{0, 0, 0.0, true},   // no trials, nothing failed
		{1, 1, 0.0, false},
		{1, 1, 1.0, true},
	} {
		t.Run(fmt.Sprintf("%d of %d at %.2f", tc.failures, tc.trials, tc.ratio), func(t *testing.T) {
			assert.Equal(t, tc.passed, campaignVerdict(tc.failures, tc.trials, tc.ratio))
		})
	}
}

func TestCancelReportsNotImplemented(t *testing.T) {
	openGrid, err := grid.NewFakeCostmap(grid.OpenSpace)
	require.NoError(t, err)
	tester := startTester(t, mockplanner.Config{Grid: openGrid})

	assert.ErrorIs(t, tester.Client().CancelGoal("some-plan"), harness.ErrNotImplemented)
}

func TestSuiteSkipsCampaignWithoutMap(t *testing.T) {
	openGrid, err := grid.NewFakeCostmap(grid.OpenSpace)
	require.NoError(t, err)
	h := startHarness(t, mockplanner.Config{Grid: openGrid})

	params := SuiteParams{Preset: grid.OpenSpace, Trials: 5, AcceptableFailRatio: 0.1}
	results := RunPlannerTestSuite(h, params, navtest.RegexFilters{}, nil)
	assert.True(t, results.OK())

	ids := make([]string, 0, len(results.Tests))
	for _, r := range results.Tests {
		ids = append(ids, r.TestID.String())
	}
	assert.Contains(t, ids, "default planning")
	assert.NotContains(t, ids, "randomized campaign")
}

func TestSuiteRequiresComputePathCapability(t *testing.T) {
	openGrid, err := grid.NewFakeCostmap(grid.OpenSpace)
	require.NoError(t, err)
	h := startHarness(t, mockplanner.Config{
		Grid:         openGrid,
		Capabilities: framework.Capabilities{"something-else"},
	})

	results := RunPlannerTestSuite(h, SuiteParams{Preset: grid.OpenSpace}, navtest.RegexFilters{}, nil)
	assert.False(t, results.OK())
}
