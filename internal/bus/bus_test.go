package bus

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesSubscribers(t *testing.T) {
	b := NewEventBus()

	got := make(chan Event, 2)
	b.Subscribe(EventTypeStateChanged, func(e Event) { got <- e })
	b.Subscribe(EventTypeStateChanged, func(e Event) { got <- e })

	b.Publish(Event{Type: EventTypeStateChanged, Data: map[string]any{"to": "listening"}})

	for i := 0; i < 2; i++ {
		select {
		case e := <-got:
			assert.Equal(t, EventTypeStateChanged, e.Type)
			assert.Equal(t, "listening", e.Data["to"])
		case <-time.After(time.Second):
			t.Fatal("handler never ran")
		}
	}
}

func TestPublishIgnoresOtherTypes(t *testing.T) {
	b := NewEventBus()

	var fired atomic.Int32
	b.Subscribe(EventTypeTranscript, func(Event) { fired.Add(1) })

	b.PublishSync(Event{Type: EventTypeEndOfTurn})
	assert.Equal(t, int32(0), fired.Load())
}

func TestSubscribeMultiple(t *testing.T) {
	b := NewEventBus()

	var fired atomic.Int32
	b.SubscribeMultiple([]EventType{EventTypeSpeakingStarted, EventTypeSpeakingStopped}, func(Event) {
		fired.Add(1)
	})

	b.PublishSync(Event{Type: EventTypeSpeakingStarted})
	b.PublishSync(Event{Type: EventTypeSpeakingStopped})
	assert.Equal(t, int32(2), fired.Load())
}

func TestPublishSyncWaits(t *testing.T) {
	b := NewEventBus()

	var done atomic.Bool
	b.Subscribe(EventTypeSessionCompleted, func(Event) {
		time.Sleep(30 * time.Millisecond)
		done.Store(true)
	})

	b.PublishSync(Event{Type: EventTypeSessionCompleted})
	assert.True(t, done.Load(), "PublishSync returned before the handler finished")
}

func TestClear(t *testing.T) {
	b := NewEventBus()

	var fired atomic.Int32
	b.Subscribe(EventTypeEndOfTurn, func(Event) { fired.Add(1) })
	b.Clear()

	b.PublishSync(Event{Type: EventTypeEndOfTurn})
	assert.Equal(t, int32(0), fired.Load())
}

func TestConcurrentPublish(t *testing.T) {
	b := NewEventBus()

	var fired atomic.Int32
	b.Subscribe(EventTypeTranscript, func(Event) { fired.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.PublishSync(Event{Type: EventTypeTranscript})
		}()
	}
	wg.Wait()

	require.Equal(t, int32(50), fired.Load())
}
