// Package framework contains the low-level test harness infrastructure that
// is independent of what exactly is being validated. The base package holds
// shared types such as Logger; the harness subpackage manages communication
// with the planner service, and navtest provides the test-scope abstraction.
//
// The general model is:
//
// 1. The harness communicates with a single planner service, which exposes a
// status endpoint for probing reachability and a plan endpoint for submitting
// goals.
//
// 2. The harness exposes callback endpoints that the planner service posts
// asynchronous results to, and serves the costmap query service on behalf of
// the simulated robot.
//
// 3. A test scope similar to Go's testing.T associates trial logic with a
// test identifier and accumulates success/failure results.
//
// The domain-specific code in plantests decides what goals to send, what a
// valid path looks like, and how campaign verdicts are computed.
package framework
