package signal

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_TriggerCancelsContext(t *testing.T) {
	h := NewHandler(context.Background())
	defer h.Stop()

	h.trigger(syscall.SIGTERM)

	select {
	case <-h.Interrupted():
	case <-time.After(time.Second):
		require.Fail(t, "interrupted channel not closed")
	}
	require.ErrorIs(t, h.Context().Err(), context.Canceled)
	assert.Equal(t, syscall.SIGTERM, h.Signal())
}

func TestHandler_StopIsIdempotent(t *testing.T) {
	h := NewHandler(context.Background())
	h.Stop()
	h.Stop()

	require.ErrorIs(t, h.Context().Err(), context.Canceled)
	assert.Nil(t, h.Signal())
}

func TestHandler_ParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	h := NewHandler(parent)
	defer h.Stop()

	cancel()
	<-h.Context().Done()

	select {
	case <-h.Interrupted():
		assert.Fail(t, "parent cancel is not an interrupt")
	default:
	}
}
