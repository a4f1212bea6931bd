package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHub_PublishReachesSubscribers(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe()
	defer cancel()

	h.Publish()

	select {
	case <-ch:
	default:
		t.Fatal("expected a pending signal")
	}
}

func TestHub_PublishNeverBlocks(t *testing.T) {
	// GIVEN: A subscriber that never drains its channel
	// WHEN: Publishing repeatedly
	// THEN: Publish returns; signals coalesce

	h := NewHub()
	ch, cancel := h.Subscribe()
	defer cancel()

	for i := 0; i < 100; i++ {
		h.Publish()
	}

	// Exactly one coalesced signal is pending.
	assert.Len(t, ch, 1)
}

func TestHub_CancelRemovesSubscriber(t *testing.T) {
	h := NewHub()
	_, cancel := h.Subscribe()
	assert.Equal(t, 1, h.Len())

	cancel()
	assert.Equal(t, 0, h.Len())
}

func TestHub_PublishWithNoSubscribers(t *testing.T) {
	h := NewHub()
	h.Publish() // must not panic
}
