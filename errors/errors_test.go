package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelWrappingPreservesIdentity(t *testing.T) {
	err := Wrap(ErrInvalidSlotID, "slot_id=../etc")
	assert.True(t, Is(err, ErrInvalidSlotID))
	assert.True(t, IsInvalidSlotIDError(err))
	assert.False(t, IsNotFoundError(err))
}

func TestWrapNilIsNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "context"))
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrInvalidSlotID,
		ErrNotFound,
		ErrUnauthorized,
		ErrSlotRunning,
		ErrRestartThrottled,
		ErrMissingWebhook,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.False(t, Is(a, b), "sentinel %v should not match %v", a, b)
		}
	}
}
