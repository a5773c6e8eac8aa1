package plantests

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/gridnav/planner-test-harness/framework/harness"
	"github.com/gridnav/planner-test-harness/framework/navtest"
	"github.com/gridnav/planner-test-harness/grid"
	"github.com/gridnav/planner-test-harness/nav"
)

// SuiteParams carries the user's choices for a suite run.
type SuiteParams struct {
	// MapPath is the map metadata file for campaign tests; empty means
	// campaigns are skipped.
	MapPath string

	// Preset is the fake grid used for the single-trial test.
	Preset grid.Preset

	// Trials and AcceptableFailRatio configure the randomized campaign.
	Trials              int
	AcceptableFailRatio float64

	// Seed, when non-zero, makes campaign sampling reproducible.
	Seed int64
}

// PlannerTestContext is the application context attached to every test
// scope.
type PlannerTestContext struct {
	Harness *harness.TestHarness
	Params  SuiteParams
}

// RunPlannerTestSuite runs the whole validation suite against the planner
// service the harness is attached to.
func RunPlannerTestSuite(
	h *harness.TestHarness,
	params SuiteParams,
	filters navtest.RegexFilters,
	testLogger navtest.TestLogger,
) navtest.Results {
	capabilities := h.PlannerServiceInfo().Capabilities
	if !capabilities.Has(nav.CapabilityComputePath) {
		return navtest.Results{
			Failures: []navtest.TestResult{
				{
					Errors: []error{
						errors.New(`planner service does not have the "compute-path" capability`),
					},
				},
			},
		}
	}

	fmt.Printf("Running planner validation suite against %q\n\n", h.PlannerServiceInfo().Name)
	navtest.PrintFilterDescription(filters)

	config := navtest.TestConfiguration{
		Filter:       filters.Match,
		Capabilities: capabilities,
		TestLogger:   testLogger,
		Context: PlannerTestContext{
			Harness: h,
			Params:  params,
		},
	}

	return navtest.Run(config, func(t *navtest.T) {
		t.Run("default planning", doDefaultPlannerTest)
		t.Run("randomized campaign", doRandomCampaignTest)
		t.Run("cancel in flight", doCancelTest)
	})
}

// campaignRNG returns a seeded generator for reproducible campaigns, or nil
// to let the tester seed from the clock.
func campaignRNG(seed int64) *rand.Rand {
	if seed == 0 {
		return nil
	}
	return rand.New(rand.NewSource(seed)) //nolint:gosec // reproducibility, not crypto
}

func suiteContext(t *navtest.T) PlannerTestContext {
	return t.Context().(PlannerTestContext)
}

func newTester(t *navtest.T) *PlannerTester {
	ctx := suiteContext(t)
	tester, err := NewPlannerTester(ctx.Harness, t.DebugLogger())
	if err != nil {
		t.Errorf("could not set up planner tester: %s", err)
		t.FailNow()
	}
	t.Defer(tester.Close)
	return tester
}

// doDefaultPlannerTest exercises one plan request on the configured fake
// grid and validates the returned path.
func doDefaultPlannerTest(t *navtest.T) {
	t.RequireCapability(nav.CapabilityComputePath)

	tester := newTester(t)
	if err := tester.LoadSimpleCostmap(suiteContext(t).Params.Preset); err != nil {
		t.Errorf("could not load test grid: %s", err)
		t.FailNow()
	}

	var path nav.Path
	ok, err := tester.DefaultTrial(&path)
	if err != nil {
		t.Errorf("trial aborted: %s", err)
		t.FailNow()
	}
	if !ok {
		t.Errorf("planner did not produce a valid collision-free path")
	}
}

// doRandomCampaignTest runs the randomized campaign against the loaded map.
func doRandomCampaignTest(t *navtest.T) {
	t.RequireCapability(nav.CapabilityComputePath)

	ctx := suiteContext(t)
	if ctx.Params.MapPath == "" {
		t.SkipWithReason("no map resource was provided for campaign testing")
	}

	tester := newTester(t)
	if err := tester.LoadDefaultMap(ctx.Params.MapPath); err != nil {
		t.Errorf("could not load map: %s", err)
		t.FailNow()
	}

	rng := campaignRNG(ctx.Params.Seed)
	result, err := tester.RunCampaign(ctx.Params.Trials, ctx.Params.AcceptableFailRatio, rng)
	if err != nil {
		t.Errorf("campaign aborted: %s", err)
		t.FailNow()
	}
	t.Debug("campaign: %d trials, %d failures, elapsed %s",
		result.Trials, result.Failures, result.Elapsed)
	if !result.Passed {
		t.Errorf("campaign failed: %d of %d trials failed, acceptable ratio %.2f",
			result.Failures, result.Trials, ctx.Params.AcceptableFailRatio)
	}
}

// doCancelTest verifies that cancellation reports itself as unimplemented
// rather than pretending to work.
func doCancelTest(t *navtest.T) {
	tester := newTester(t)
	err := tester.Client().CancelGoal("any")
	if !errors.Is(err, harness.ErrNotImplemented) {
		t.Errorf("expected cancel to report not-implemented, got %v", err)
	}
}
