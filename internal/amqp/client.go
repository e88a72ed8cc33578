package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"

	"payoff/internal/core"
)

const (
	maxFailures = 5
	openTimeout = 30 * time.Second
	maxBackoff  = 30 * time.Second

	// Handler failures are requeued after a growing delay and dropped once a
	// request has failed maxDeliveryAttempts times; the pending-run sweep
	// picks dropped runs up later.
	redeliverInitial    = 500 * time.Millisecond
	redeliverMax        = 15 * time.Second
	maxDeliveryAttempts = 5
)

// ErrCircuitOpen is returned by Publish while the broker is considered down.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type Client struct {
	url          string
	exchangeName string
	queueName    string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	breaker *gobreaker.CircuitBreaker
}

// newPublishBreaker trips after maxFailures consecutive connection errors and
// lets one trial request through once timeout has passed.
func newPublishBreaker(timeout time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "amqp-publish",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// only broker outages count against the circuit
		IsSuccessful: func(err error) bool {
			return !isConnectionError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
}

// newReconnectBackOff yields 1s, 2s, 4s... capped at maxBackoff and never gives up.
func newReconnectBackOff() *backoff.ExponentialBackOff {
	return newBackOff(time.Second, maxBackoff)
}

func newBackOff(initial, max time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = max
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		breaker:      newPublishBreaker(openTimeout),
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// connect dials the broker and declares the topology. Callers hold no lock.
func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := setup(channel, c.exchangeName, c.queueName); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}

	c.mu.Lock()
	c.conn, c.channel = conn, channel
	c.mu.Unlock()
	return nil
}

func setup(channel *amqp091.Channel, exchangeName, queueName string) error {
	err := channel.ExchangeDeclare(
		exchangeName, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// routing key is the queue name on a direct exchange
	if err := channel.QueueBind(queueName, queueName, exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

func (c *Client) currentChannel() *amqp091.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel == nil || c.channel.IsClosed() {
		return nil
	}
	return c.channel
}

// PublishSimulationRequest publishes a persistent request for runID.
// Repeated connection failures open the circuit and fail fast with
// ErrCircuitOpen until the broker has had time to recover.
func (c *Client) PublishSimulationRequest(ctx context.Context, runID string, strategy core.Strategy) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := NewSimulationRequestMessage(runID, strategy).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.publish(ctx, runID, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("publish simulation request: %w", ErrCircuitOpen)
	}
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published simulation request",
		"run_id", runID,
		"method", strategy.Method,
		"exchange", c.exchangeName,
		"queue", c.queueName)

	return nil
}

func (c *Client) publish(ctx context.Context, runID string, body []byte) error {
	channel := c.currentChannel()
	if channel == nil {
		if err := c.connect(); err != nil {
			return fmt.Errorf("reconnect: %w", err)
		}
		channel = c.currentChannel()
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			MessageId:    runID,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// ConsumeSimulationRequests delivers requests to handler until ctx is done.
// Bad payloads are dropped, handler failures are requeued after a delay, and
// a lost connection is re-established with exponential backoff.
func (c *Client) ConsumeSimulationRequests(ctx context.Context, handler func(context.Context, *SimulationRequestMessage) error) error {
	reconnect := newReconnectBackOff()
	retries := newRedelivery(redeliverInitial, redeliverMax, maxDeliveryAttempts)
	for attempt := 1; ; attempt++ {
		err := c.consume(ctx, retries, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isConnectionError(err) {
			return err
		}

		wait := reconnect.NextBackOff()
		slog.WarnContext(ctx, "AMQP connection lost, reconnecting",
			"error", err,
			"attempt", attempt,
			"backoff", wait.String())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		if err := c.connect(); err != nil {
			slog.ErrorContext(ctx, "AMQP reconnect failed", "error", err)
			continue
		}
		reconnect.Reset()
		attempt = 0
	}
}

func (c *Client) consume(ctx context.Context, retries *redelivery, handler func(context.Context, *SimulationRequestMessage) error) error {
	channel := c.currentChannel()
	if channel == nil {
		return amqp091.ErrClosed
	}
	if err := channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	msgs, err := channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming simulation requests", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed: %w", amqp091.ErrClosed)
			}

			if err := retries.handle(ctx, delivery, handler); err != nil {
				return err
			}
		}
	}
}

// redelivery paces requeues of failed requests. It is owned by a single
// consume loop.
type redelivery struct {
	backoff     *backoff.ExponentialBackOff
	attempts    map[string]int
	maxAttempts int
}

func newRedelivery(initial, max time.Duration, maxAttempts int) *redelivery {
	return &redelivery{
		backoff:     newBackOff(initial, max),
		attempts:    make(map[string]int),
		maxAttempts: maxAttempts,
	}
}

// handle runs handler for one delivery and settles it. It only returns an
// error when ctx ends while a failed delivery waits to be requeued.
func (r *redelivery) handle(ctx context.Context, delivery amqp091.Delivery, handler func(context.Context, *SimulationRequestMessage) error) error {
	msg, err := SimulationRequestMessageFromJSON(delivery.Body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to unmarshal message", "error", err)
		_ = delivery.Nack(false, false)
		return nil
	}

	if err := handler(ctx, msg); err != nil {
		r.attempts[msg.RunID]++
		attempt := r.attempts[msg.RunID]
		if attempt >= r.maxAttempts {
			slog.ErrorContext(ctx, "Dropping simulation request after repeated failures",
				"error", err,
				"run_id", msg.RunID,
				"attempts", attempt)
			delete(r.attempts, msg.RunID)
			_ = delivery.Nack(false, false)
			return nil
		}

		wait := r.backoff.NextBackOff()
		slog.ErrorContext(ctx, "Failed to handle message",
			"error", err,
			"run_id", msg.RunID,
			"attempt", attempt,
			"requeue_in", wait.String())

		select {
		case <-ctx.Done():
			_ = delivery.Nack(false, true)
			return ctx.Err()
		case <-time.After(wait):
		}
		_ = delivery.Nack(false, true)
		return nil
	}

	delete(r.attempts, msg.RunID)
	r.backoff.Reset()
	_ = delivery.Ack(false)
	slog.InfoContext(ctx, "Processed simulation request", "run_id", msg.RunID)
	return nil
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "channel/connection is not open"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
