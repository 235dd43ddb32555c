package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFanOut(t *testing.T) {
	p := NewPublisher()
	defer p.Close()

	a, cancelA := p.Subscribe(4)
	b, cancelB := p.Subscribe(4)
	defer cancelA()
	defer cancelB()

	p.Publish(Event{TaskID: "t1", Status: "downloading", Percent: 50})

	evA := <-a
	evB := <-b
	assert.Equal(t, "t1", evA.TaskID)
	assert.Equal(t, "t1", evB.TaskID)
	assert.False(t, evA.Timestamp.IsZero())
}

func TestPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	p := NewPublisher()
	defer p.Close()

	slow, cancel := p.Subscribe(1)
	defer cancel()

	// Far more events than the buffer holds; Publish must return anyway.
	for i := 0; i < 100; i++ {
		p.Publish(Event{TaskID: "t1", PagesDone: i})
	}

	// The subscriber sees the first event; the rest were dropped.
	ev := <-slow
	assert.Equal(t, 0, ev.PagesDone)
	select {
	case extra := <-slow:
		assert.Less(t, extra.PagesDone, 100)
	default:
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	p := NewPublisher()
	defer p.Close()

	ch, cancel := p.Subscribe(4)
	cancel()

	_, open := <-ch
	assert.False(t, open)

	// Publishing after cancel must not panic.
	p.Publish(Event{TaskID: "t1"})
}

func TestCloseClosesSubscribers(t *testing.T) {
	p := NewPublisher()

	ch, cancel := p.Subscribe(4)
	defer cancel()

	p.Close()

	_, open := <-ch
	require.False(t, open)

	// Subscribing after close yields an already-closed channel.
	late, _ := p.Subscribe(4)
	_, open = <-late
	assert.False(t, open)
}
