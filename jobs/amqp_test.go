package jobs

import (
	"context"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeJob(t *testing.T) {
	msg, err := encodeJob(job)
	require.NoError(t, err)

	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "img-1", msg.MessageId)
	assert.JSONEq(t, `{"imageId":"img-1","storageId":"blob-1","prompt":"Identify all animals"}`, string(msg.Body))
}

func TestServeDeliveries(t *testing.T) {
	msg, err := encodeJob(job)
	require.NoError(t, err)

	msgs := make(chan amqp.Delivery, 3)
	msgs <- amqp.Delivery{MessageId: "garbage", Body: []byte("{not json")}
	msgs <- amqp.Delivery{MessageId: msg.MessageId, Body: msg.Body}
	msgs <- amqp.Delivery{MessageId: "empty"}
	close(msgs)

	var mu sync.Mutex
	var handled []Job
	var wg sync.WaitGroup

	serveDeliveries(msgs, func(_ context.Context, j Job) {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, j)
	}, &wg)
	wg.Wait()

	assert.Equal(t, []Job{job}, handled)
}

func TestServeDeliveriesSurvivesPanickingHandler(t *testing.T) {
	msg, err := encodeJob(job)
	require.NoError(t, err)

	msgs := make(chan amqp.Delivery, 2)
	msgs <- amqp.Delivery{Body: msg.Body}
	msgs <- amqp.Delivery{Body: msg.Body}
	close(msgs)

	var mu sync.Mutex
	calls := 0
	var wg sync.WaitGroup

	serveDeliveries(msgs, func(context.Context, Job) {
		mu.Lock()
		calls++
		mu.Unlock()
		panic("nil store")
	}, &wg)
	wg.Wait()

	assert.Equal(t, 2, calls)
}
