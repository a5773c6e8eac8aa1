// Package nav contains the data model for the planner test protocol: the
// JSON representations of goals, paths, plan requests and results, and the
// costmap query messages exchanged between the harness and a planner service.
//
// These types mirror the wire format and deliberately contain no behavior
// beyond small conversions; all validation logic lives elsewhere.
package nav
