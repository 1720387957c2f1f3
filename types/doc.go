// Package types defines the shared data model of autopilot: the Task
// record, stage enums, lifecycle transitions, and the unified error type.
// It has no dependencies on other autopilot packages.
package types
