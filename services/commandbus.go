package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"greenwave/config"
	"greenwave/models"
)

// CommandHandler applies a dispatch command
type CommandHandler interface {
	HandleCommand(ctx context.Context, cmd models.Command) error
}

// CommandBusService consumes dispatch commands from RabbitMQ and publishes route events
type CommandBusService struct {
	config    *config.Config
	conn      *amqp.Connection
	channel   *amqp.Channel
	chMu      sync.RWMutex
	logger    *zap.Logger
	reconnect chan bool
	isClosing atomic.Bool
}

// NewCommandBusService connects to RabbitMQ and declares the topology
func NewCommandBusService(cfg *config.Config, logger *zap.Logger) (*CommandBusService, error) {
	service := &CommandBusService{
		config:    cfg,
		logger:    logger,
		reconnect: make(chan bool, 1),
	}

	if err := service.connect(); err != nil {
		return nil, err
	}

	return service, nil
}

// connect establishes connection to RabbitMQ and declares exchange and queue
func (r *CommandBusService) connect() error {
	var conn *amqp.Connection
	var err error

	r.logger.Info("Connecting to RabbitMQ", zap.String("exchange", r.config.RabbitMQExchange))

	maxRetries := 5
	for attempt := 1; attempt <= maxRetries; attempt++ {
		conn, err = amqp.Dial(r.config.RabbitMQURL)
		if err == nil {
			break
		}

		r.logger.Warn("Failed to connect to RabbitMQ",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Error(err))

		if attempt < maxRetries {
			time.Sleep(time.Duration(attempt) * 2 * time.Second)
		}
	}

	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxRetries, err)
	}

	r.logger.Info("Connected to RabbitMQ successfully")

	channel, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}

	// commands mutate shared route state, so they are handled in small batches
	if err := channel.Qos(10, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	err = channel.ExchangeDeclare(
		r.config.RabbitMQExchange, // name
		"direct",                  // type
		true,                      // durable
		false,                     // auto-deleted
		false,                     // internal
		false,                     // no-wait
		nil,                       // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	queue, err := channel.QueueDeclare(
		r.config.RabbitMQCommandQueue, // name
		true,                          // durable
		false,                         // delete when unused
		false,                         // exclusive
		false,                         // no-wait
		nil,                           // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := channel.QueueBind(queue.Name, r.config.RabbitMQCommandQueue, r.config.RabbitMQExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	r.logger.Info("Command queue bound to exchange",
		zap.String("queue", queue.Name),
		zap.String("exchange", r.config.RabbitMQExchange))

	// crew tablets publish commands over the broker's MQTT plugin
	if err := channel.QueueBind(queue.Name, r.config.RabbitMQCommandQueue, "amq.topic", false, nil); err != nil {
		return fmt.Errorf("failed to bind queue to MQTT exchange: %w", err)
	}

	r.chMu.Lock()
	r.conn = conn
	r.channel = channel
	r.chMu.Unlock()

	go r.handleReconnect(conn)

	return nil
}

// handleReconnect handles automatic reconnection when connection is lost
func (r *CommandBusService) handleReconnect(conn *amqp.Connection) {
	closeErr := <-conn.NotifyClose(make(chan *amqp.Error, 1))
	if r.isClosing.Load() {
		r.logger.Info("RabbitMQ connection closed gracefully")
		return
	}

	r.logger.Error("RabbitMQ connection lost", zap.Error(closeErr))

	for {
		r.logger.Info("Attempting to reconnect to RabbitMQ...")
		err := r.connect()
		if err == nil {
			r.logger.Info("Successfully reconnected to RabbitMQ")
			select {
			case r.reconnect <- true:
			default:
			}
			return
		}

		r.logger.Error("Failed to reconnect", zap.Error(err))
		if r.isClosing.Load() {
			return
		}
		time.Sleep(5 * time.Second)
	}
}

// Consume delivers commands to handler until ctx is cancelled
func (r *CommandBusService) Consume(ctx context.Context, handler CommandHandler) error {
	for {
		r.chMu.RLock()
		channel := r.channel
		r.chMu.RUnlock()

		msgs, err := channel.Consume(
			r.config.RabbitMQCommandQueue, // queue
			"greenwave-dispatch",          // consumer tag
			false,                         // auto-ack
			false,                         // exclusive
			false,                         // no-local
			false,                         // no-wait
			nil,                           // args
		)
		if err != nil {
			return fmt.Errorf("failed to register consumer: %w", err)
		}

		r.logger.Info("Started consuming dispatch commands",
			zap.String("queue", r.config.RabbitMQCommandQueue))

	consumeLoop:
		for {
			select {
			case <-ctx.Done():
				r.logger.Info("Stopping command consumer")
				return nil

			case <-r.reconnect:
				r.logger.Info("Reconnection detected, restarting consumer")
				break consumeLoop

			case msg, ok := <-msgs:
				if !ok {
					r.logger.Warn("Message channel closed")
					time.Sleep(1 * time.Second)
					break consumeLoop
				}
				r.deliver(ctx, msg, handler)
			}
		}
	}
}

func (r *CommandBusService) deliver(ctx context.Context, msg amqp.Delivery, handler CommandHandler) {
	err := processCommand(ctx, msg.Body, handler)
	if err == nil {
		msg.Ack(false)
		return
	}

	if IsRejected(err) {
		// requeueing an invalid command would loop forever
		r.logger.Warn("Rejected dispatch command",
			zap.String("message_id", msg.MessageId),
			zap.Error(err))
		msg.Ack(false)
		return
	}

	r.logger.Error("Failed to process dispatch command",
		zap.String("message_id", msg.MessageId),
		zap.Error(err))
	msg.Nack(false, true)
}

// processCommand parses a message body and hands the command to handler
func processCommand(ctx context.Context, body []byte, handler CommandHandler) error {
	cmd, err := models.ParseCommand(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}

	handleCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return handler.HandleCommand(handleCtx, cmd)
}

// PublishRouteEvent publishes a route lifecycle event
func (r *CommandBusService) PublishRouteEvent(ctx context.Context, event models.RouteEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal route event: %w", err)
	}

	r.chMu.RLock()
	channel := r.channel
	r.chMu.RUnlock()

	err = channel.PublishWithContext(ctx,
		r.config.RabbitMQExchange,        // exchange
		r.config.RabbitMQEventRoutingKey, // routing key
		false,                            // mandatory
		false,                            // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.At,
			Type:         string(event.Event),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish route event: %w", err)
	}

	r.logger.Debug("Published route event",
		zap.String("event", string(event.Event)),
		zap.String("episode_id", event.EpisodeID))

	return nil
}

// Close gracefully closes RabbitMQ connection
func (r *CommandBusService) Close() error {
	r.isClosing.Store(true)

	r.logger.Info("Closing RabbitMQ connection")

	r.chMu.RLock()
	defer r.chMu.RUnlock()

	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			r.logger.Error("Error closing channel", zap.Error(err))
		}
	}

	if r.conn != nil {
		if err := r.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			r.logger.Error("Error closing connection", zap.Error(err))
			return err
		}
	}

	r.logger.Info("RabbitMQ connection closed")
	return nil
}
