package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftsync/rift/internal/protocol"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	h := NewHub(4)
	sub, unsub := h.Subscribe()
	defer unsub()

	h.Publish(protocol.Heartbeat())

	select {
	case f := <-sub.Frames():
		assert.Equal(t, protocol.TypeHeartbeat, f.Type)
	default:
		t.Fatal("expected frame to be delivered")
	}
}

func TestPublishSignalsLaggedOnFullQueue(t *testing.T) {
	h := NewHub(1)
	sub, unsub := h.Subscribe()
	defer unsub()

	h.Publish(protocol.Heartbeat())
	h.Publish(protocol.Heartbeat()) // queue capacity 1; this one should lag

	select {
	case <-sub.Lagged():
	default:
		t.Fatal("expected lagged signal after queue overflow")
	}
}

func TestUnsubscribeRemovesFromRegistry(t *testing.T) {
	h := NewHub(4)
	require.Equal(t, 0, h.Len())

	_, unsub := h.Subscribe()
	assert.Equal(t, 1, h.Len())

	unsub()
	assert.Equal(t, 0, h.Len())
}

func TestRegistryCreatesHubPerRift(t *testing.T) {
	r := NewRegistry(4)
	a := r.HubFor("rift-a")
	b := r.HubFor("rift-b")
	assert.NotSame(t, a, b)
	assert.Same(t, a, r.HubFor("rift-a"))
}
