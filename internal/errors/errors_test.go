package errors_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	tabulaerrors "github.com/mrz1836/tabula/internal/errors"
)

func TestWrap(t *testing.T) {
	t.Run("nil error stays nil", func(t *testing.T) {
		assert.NoError(t, tabulaerrors.Wrap(nil, "context"))
		assert.NoError(t, tabulaerrors.Wrapf(nil, "context %d", 1))
	})

	t.Run("wrapped sentinel still matches", func(t *testing.T) {
		err := tabulaerrors.Wrapf(tabulaerrors.ErrSheetNotFound, "failed to open %s", "Scenario")
		assert.ErrorIs(t, err, tabulaerrors.ErrSheetNotFound)
		assert.Equal(t, "failed to open Scenario: sheet not found", err.Error())
	})
}

func TestUserMessage(t *testing.T) {
	assert.Empty(t, tabulaerrors.UserMessage(nil))

	wrapped := fmt.Errorf("outer: %w", tabulaerrors.ErrPlanEmpty)
	assert.Equal(t, "The plan has no enabled entries.", tabulaerrors.UserMessage(wrapped))

	plain := fmt.Errorf("something odd") //nolint:err113 // test error
	assert.Equal(t, "something odd", tabulaerrors.UserMessage(plain))
}

func TestActionable(t *testing.T) {
	msg, action := tabulaerrors.Actionable(tabulaerrors.ErrInterrupted)
	assert.Equal(t, "Execution was interrupted.", msg)
	assert.Empty(t, action)

	msg, action = tabulaerrors.Actionable(tabulaerrors.ErrInvalidIterationDirective)
	assert.NotEmpty(t, msg)
	assert.Contains(t, action, "1-3,5")
}
