// Package plantests contains the domain-specific validation logic for
// planner services: single planning trials, randomized campaigns over a
// loaded map, and the suite entry point that wires them into navtest scopes.
package plantests
