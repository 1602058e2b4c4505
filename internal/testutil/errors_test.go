package testutil

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMockErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"ErrMockDiskFull", ErrMockDiskFull, "disk full"},
		{"ErrMockStepFailed", ErrMockStepFailed, "step failed"},
		{"ErrMockPlain", ErrMockPlain, "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestMockErrors_Distinct(t *testing.T) {
	all := []error{ErrMockDiskFull, ErrMockStepFailed, ErrMockPlain}
	for i, a := range all {
		for j, b := range all {
			if i != j {
				assert.False(t, errors.Is(a, b), "%v must not match %v", a, b)
			}
		}
	}
}
