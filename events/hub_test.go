package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesOnlyOwner(t *testing.T) {
	hub := NewHub()

	a, cancelA := hub.Subscribe(1)
	defer cancelA()
	b, cancelB := hub.Subscribe(2)
	defer cancelB()

	hub.Publish(1, Event{Type: TypeCreated, ImageID: "img"})

	require.Len(t, a, 1)
	assert.Equal(t, Event{Type: TypeCreated, ImageID: "img"}, <-a)
	assert.Len(t, b, 0)
}

func TestCancelUnregisters(t *testing.T) {
	hub := NewHub()

	ch, cancel := hub.Subscribe(1)
	assert.Equal(t, 1, hub.Subscribers(1))

	cancel()
	cancel()
	assert.Equal(t, 0, hub.Subscribers(1))

	_, open := <-ch
	assert.False(t, open)

	hub.Publish(1, Event{Type: TypeClassified})
}

func TestPublishDropsWhenFull(t *testing.T) {
	hub := NewHub()

	ch, cancel := hub.Subscribe(1)
	defer cancel()

	for i := 0; i < subscriberBuffer+5; i++ {
		hub.Publish(1, Event{Type: TypeClassified})
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestCloseEndsSubscriptions(t *testing.T) {
	hub := NewHub()

	a, cancelA := hub.Subscribe(1)
	b, cancelB := hub.Subscribe(2)

	hub.Close()

	_, open := <-a
	assert.False(t, open)
	_, open = <-b
	assert.False(t, open)
	assert.Equal(t, 0, hub.Subscribers(1))

	cancelA()
	cancelB()
	hub.Publish(1, Event{Type: TypeClassified})

	late, cancelLate := hub.Subscribe(1)
	defer cancelLate()
	_, open = <-late
	assert.False(t, open)
	assert.Equal(t, 0, hub.Subscribers(1))
}
