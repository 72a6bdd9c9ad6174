package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/krishkalaria12/snap-classify/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQPDispatcher publishes jobs to a durable RabbitMQ queue and consumes them
// in the same process. Deliveries are auto-acked: a job is attempted once.
type AMQPDispatcher struct {
	conn  *amqp.Connection
	pubCh *amqp.Channel
	subCh *amqp.Channel
	queue string

	mu sync.Mutex
	wg sync.WaitGroup
}

// NewAMQPDispatcher connects and declares the queue. Nothing is consumed
// until Start.
func NewAMQPDispatcher(url, queue string) (*AMQPDispatcher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	pubCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	if _, err := pubCh.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	subCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	logger.Info("connected to RabbitMQ", logger.SourceQueue, zap.String("queue", queue))
	return &AMQPDispatcher{
		conn:  conn,
		pubCh: pubCh,
		subCh: subCh,
		queue: queue,
	}, nil
}

func (d *AMQPDispatcher) Enqueue(ctx context.Context, job Job) error {
	msg, err := encodeJob(job)
	if err != nil {
		return err
	}

	// amqp channels are not safe for concurrent publishing
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.pubCh.PublishWithContext(ctx, "", d.queue, false, false, msg)
}

// Start registers the consumer. Jobs left in the queue by an earlier run are
// delivered right away.
func (d *AMQPDispatcher) Start(handler Handler) error {
	msgs, err := d.subCh.Consume(
		d.queue, // queue
		"",      // consumer
		true,    // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("failed to register a consumer: %w", err)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		serveDeliveries(msgs, handler, &d.wg)
	}()
	return nil
}

// Close tears down the connection and waits for in-flight jobs.
func (d *AMQPDispatcher) Close() error {
	err := d.conn.Close()
	d.wg.Wait()
	return err
}

func encodeJob(job Job) (amqp.Publishing, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return amqp.Publishing{}, err
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ImageID,
		Body:         body,
	}, nil
}

// serveDeliveries hands every decodable delivery to handler on its own
// goroutine until msgs is closed. Undecodable messages are dropped.
func serveDeliveries(msgs <-chan amqp.Delivery, handler Handler, wg *sync.WaitGroup) {
	for msg := range msgs {
		var job Job
		if err := json.Unmarshal(msg.Body, &job); err != nil {
			logger.Error("failed to decode job", logger.SourceQueue, zap.String("message_id", msg.MessageId), zap.Error(err))
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			run(context.Background(), handler, job)
		}()
	}
}
