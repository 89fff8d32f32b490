package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestEventJSONRoundTrip(t *testing.T) {
	ev := New(SyncComplete, map[string]any{"sync_count": 3})
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"sync_complete","sync_count":3}`, string(data))

	var decoded Event
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, SyncComplete, decoded.Name)
	assert.Equal(t, float64(3), decoded.Fields["sync_count"])
}

func TestNewNilFields(t *testing.T) {
	ev := New(SyncStart, nil)
	require.NotNil(t, ev.Fields)
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"sync_start"}`, string(data))
}

func TestHubFansOut(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t), nil)
	first := hub.Subscribe()
	second := hub.Subscribe()
	defer hub.Unsubscribe(first)
	defer hub.Unsubscribe(second)

	hub.Publish(New(SyncStart, nil))

	assert.Equal(t, SyncStart, (<-first.C()).Name)
	assert.Equal(t, SyncStart, (<-second.C()).Name)
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t), nil)
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	for i := 0; i < subscriberBuffer+5; i++ {
		hub.Publish(New(SyncStart, nil))
	}
	assert.Equal(t, uint64(5), sub.Dropped())

	// The queue still holds the first subscriberBuffer events.
	count := 0
	for {
		select {
		case <-sub.C():
			count++
			continue
		default:
		}
		break
	}
	assert.Equal(t, subscriberBuffer, count)
}

func TestHubRelay(t *testing.T) {
	var relayed []Event
	hub := NewHub(zaptest.NewLogger(t), func(ev Event) { relayed = append(relayed, ev) })

	hub.Publish(New(SyncError, map[string]any{"error": "boom"}))

	require.Len(t, relayed, 1)
	assert.Equal(t, SyncError, relayed[0].Name)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t), nil)
	sub := hub.Subscribe()
	require.Equal(t, 1, hub.SubscriberCount())

	hub.Unsubscribe(sub)
	assert.Equal(t, 0, hub.SubscriberCount())

	_, ok := <-sub.C()
	assert.False(t, ok)

	// Double unsubscribe is a no-op.
	hub.Unsubscribe(sub)
}
