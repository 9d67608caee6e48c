package _switch

import (
	"testing"

	"github.com/adwski/webrtc-rendezvous/backend/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSwitch(t *testing.T, endpoints ...string) (*Switch, map[string]model.Wire) {
	t.Helper()
	logger := zerolog.Nop()
	sw := NewSwitch(&logger)
	wires := make(map[string]model.Wire, len(endpoints))
	for _, ep := range endpoints {
		wires[ep] = model.NewWire(4)
		require.NoError(t, sw.Connect(ep, wires[ep]))
	}
	return sw, wires
}

func drain(tx chan model.Announcement) []model.Announcement {
	var out []model.Announcement
	for {
		select {
		case ann := <-tx:
			out = append(out, ann)
		default:
			return out
		}
	}
}

func TestSwitch_Connect(t *testing.T) {
	sw, _ := newTestSwitch(t, "a")

	assert.ErrorIs(t, sw.Connect("a", model.NewWire(1)), ErrEndpointExists)
	assert.NoError(t, sw.Disconnect("a"))
	assert.NoError(t, sw.Disconnect("a"))
	assert.NoError(t, sw.Connect("a", model.NewWire(1)))
}

func TestSwitch_Unicast(t *testing.T) {
	sw, wires := newTestSwitch(t, "a", "b")

	assert.True(t, sw.Unicast("a", model.Announcement{Type: "role"}))
	assert.False(t, sw.Unicast("missing", model.Announcement{Type: "role"}))

	got := drain(wires["a"].TX)
	require.Len(t, got, 1)
	assert.Equal(t, "role", got[0].Type)
	assert.Empty(t, drain(wires["b"].TX))
}

func TestSwitch_Broadcast(t *testing.T) {
	sw, wires := newTestSwitch(t, "a", "b", "c")

	n := sw.Broadcast([]string{"a", "b", "gone"}, model.Announcement{Type: "user-count", SRC: "a"})
	assert.Equal(t, 2, n)
	assert.Len(t, drain(wires["a"].TX), 1, "broadcast includes everyone listed")
	assert.Len(t, drain(wires["b"].TX), 1)
	assert.Empty(t, drain(wires["c"].TX))
}

func TestSwitch_BroadcastFrom(t *testing.T) {
	sw, wires := newTestSwitch(t, "a", "b", "c")

	n := sw.BroadcastFrom("a", []string{"a", "b", "c"}, model.Announcement{Type: "signal"})
	assert.Equal(t, 2, n)
	assert.Empty(t, drain(wires["a"].TX), "sender is excluded")
	assert.Len(t, drain(wires["b"].TX), 1)
	assert.Len(t, drain(wires["c"].TX), 1)
}

func TestSwitch_FullQueueDrops(t *testing.T) {
	sw, wires := newTestSwitch(t, "a")

	for i := 0; i < 4; i++ {
		require.True(t, sw.Unicast("a", model.Announcement{Type: "signal"}))
	}
	assert.False(t, sw.Unicast("a", model.Announcement{Type: "signal"}))
	assert.Len(t, drain(wires["a"].TX), 4)
}

func TestSwitch_FIFO(t *testing.T) {
	sw, wires := newTestSwitch(t, "a", "b")

	for _, typ := range []string{"1", "2", "3"} {
		sw.BroadcastFrom("a", []string{"b"}, model.Announcement{Type: typ})
	}
	got := drain(wires["b"].TX)
	require.Len(t, got, 3)
	for i, typ := range []string{"1", "2", "3"} {
		assert.Equal(t, typ, got[i].Type)
	}
}
