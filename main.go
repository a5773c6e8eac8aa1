package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gridnav/planner-test-harness/framework"
	"github.com/gridnav/planner-test-harness/framework/harness"
	"github.com/gridnav/planner-test-harness/framework/navtest"
	"github.com/gridnav/planner-test-harness/grid"
	"github.com/gridnav/planner-test-harness/plantests"
)

const defaultPort = 8711
const statusQueryTimeout = time.Second * 10

func main() {
	fmt.Println("planner-test-harness")

	var params commandParams
	if !params.Read(os.Args) {
		os.Exit(1)
	}

	results, err := run(params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var configErr grid.ConfigurationError
		if errors.As(err, &configErr) {
			os.Exit(2)
		}
		os.Exit(1)
	}

	if !results.OK() {
		os.Exit(1)
	}
}

func run(params commandParams) (*navtest.Results, error) {
	mainDebugLogger := framework.NullLogger()
	if params.debugAll {
		mainDebugLogger = log.New(os.Stdout, "", log.LstdFlags)
	}

	// Campaign tests need an externally supplied map; resolving it up front
	// turns a missing resource into a startup error rather than a mid-suite
	// surprise. An empty result just skips the campaign tests.
	mapPath := params.mapPath
	if mapPath == "" {
		if resolved, err := grid.ResolveMapPath(""); err == nil {
			mapPath = resolved
		}
	}

	h, err := harness.NewTestHarness(
		params.serviceURL,
		params.host,
		params.port,
		statusQueryTimeout,
		mainDebugLogger,
		os.Stdout,
	)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	var testLogger navtest.TestLogger
	consoleLogger := navtest.ConsoleTestLogger{
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
	}
	if params.jUnitFile == "" {
		testLogger = consoleLogger
	} else {
		testLogger = &navtest.MultiTestLogger{Loggers: []navtest.TestLogger{
			consoleLogger,
			navtest.NewJUnitTestLogger(params.jUnitFile, h.PlannerServiceInfo(), params.filters),
		}}
	}

	suiteParams := plantests.SuiteParams{
		MapPath:             mapPath,
		Preset:              grid.Preset(params.gridPreset),
		Trials:              params.trials,
		AcceptableFailRatio: params.failRatio,
		Seed:                params.seed,
	}

	results := plantests.RunPlannerTestSuite(h, suiteParams, params.filters, testLogger)

	fmt.Println()
	logErr := testLogger.EndLog(results)

	if params.stopServiceAtEnd {
		fmt.Println("Stopping planner service")
		if err := h.StopService(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to stop planner service: %s\n", err)
		}
	}

	if logErr != nil {
		return nil, fmt.Errorf("error writing log: %v", logErr)
	}

	return &results, nil
}
