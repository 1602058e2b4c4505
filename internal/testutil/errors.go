// Package testutil provides testing utilities for tabula.
//
// It should only be imported by test files (*_test.go).
package testutil

import "errors"

// Mock errors for simulating failures in tests.
var (
	// ErrMockDiskFull simulates a failed write.
	ErrMockDiskFull = errors.New("disk full")

	// ErrMockStepFailed simulates an error raised inside a step command.
	ErrMockStepFailed = errors.New("step failed")

	// ErrMockPlain is an error with no user-facing mapping.
	ErrMockPlain = errors.New("plain")
)
