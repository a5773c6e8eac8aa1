// Package navtest is a test-scope framework similar in shape to Go's testing
// package, used to organize planner validation scenarios into a filterable
// tree of named tests with captured debug output and aggregated results.
//
// It exists as its own mechanism, rather than reusing "go test", because the
// suite runs as a standalone binary against an externally launched planner
// service and needs its own reporting (console and JUnit) and filtering.
package navtest
