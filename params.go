package main

import (
	"flag"
	"fmt"
	"os"

	"golang.org/x/exp/slices"

	"github.com/gridnav/planner-test-harness/framework/navtest"
	"github.com/gridnav/planner-test-harness/grid"
)

type commandParams struct {
	serviceURL       string
	port             int
	host             string
	mapPath          string
	gridPreset       string
	trials           int
	failRatio        float64
	seed             int64
	filters          navtest.RegexFilters
	stopServiceAtEnd bool
	debug            bool
	debugAll         bool
	jUnitFile        string
}

var knownPresets = []string{ //nolint:gochecknoglobals
	string(grid.OpenSpace),
	string(grid.Bounded),
	string(grid.BottomLeftObstacle),
	string(grid.TopLeftObstacle),
	string(grid.Maze),
}

func (c *commandParams) Read(args []string) bool {
	fs := flag.NewFlagSet("", flag.ExitOnError)
	fs.StringVar(&c.serviceURL, "url", "", "planner service base URL")
	fs.StringVar(&c.host, "host", "localhost", "external hostname of the test harness")
	fs.IntVar(&c.port, "port", defaultPort, "port that the test harness will listen on")
	fs.StringVar(&c.mapPath, "map", "", "map metadata file for campaign tests (default: $"+grid.MapPathEnvVar+")")
	fs.StringVar(&c.gridPreset, "grid", string(grid.OpenSpace), "fake grid preset for the single-trial test")
	fs.IntVar(&c.trials, "trials", 100, "number of trials in the randomized campaign")
	fs.Float64Var(&c.failRatio, "fail-ratio", 0.1, "acceptable campaign failure ratio")
	fs.Int64Var(&c.seed, "seed", 0, "random seed for campaign sampling (0 = from clock)")
	fs.Var(&c.filters.MustMatch, "run", "regex pattern(s) to select tests to run")
	fs.Var(&c.filters.MustNotMatch, "skip", "regex pattern(s) to select tests not to run")
	fs.BoolVar(&c.stopServiceAtEnd, "stop-service-at-end", false, "tell planner service to exit after the test run")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging for failed tests")
	fs.BoolVar(&c.debugAll, "debug-all", false, "enable debug logging for all tests")
	fs.StringVar(&c.jUnitFile, "junit", "", "write JUnit XML output to the specified path")

	if err := fs.Parse(args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fs.Usage()
		return false
	}
	if c.serviceURL == "" {
		fmt.Fprintln(os.Stderr, "-url is required")
		fs.Usage()
		return false
	}
	if !slices.Contains(knownPresets, c.gridPreset) {
		fmt.Fprintf(os.Stderr, "-grid must be one of %v\n", knownPresets)
		return false
	}
	if c.trials < 0 {
		fmt.Fprintln(os.Stderr, "-trials must not be negative")
		return false
	}
	if c.failRatio < 0 || c.failRatio > 1 {
		fmt.Fprintln(os.Stderr, "-fail-ratio must be between 0 and 1")
		return false
	}
	return true
}
