// Package kafka feeds event messages from a Kafka topic into the engine.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"sigevent-service/internal/config"
	"sigevent-service/internal/logging"
	"sigevent-service/internal/models"
)

// DefaultRetryBackoff is the pause before a failed message is redelivered.
const DefaultRetryBackoff = 5 * time.Second

// MessageReader is the subset of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ReaderFactory opens a fresh group reader positioned at the last committed offset.
type ReaderFactory func() MessageReader

type Processor interface {
	ProcessEventMessage(ctx context.Context, msg models.EventMessage) error
}

// Consumer reads event messages at least once. An offset is committed only
// after the message was processed or rejected as invalid; on a processing
// failure the reader is reopened so the group redelivers from the last commit.
type Consumer struct {
	newReader    ReaderFactory
	reader       MessageReader
	processor    Processor
	logger       *logging.Logger
	retryBackoff time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

func parseBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// NewConsumer creates a group consumer for cfg.Kafka.Topic.
func NewConsumer(cfg config.Config, processor Processor, logger *logging.Logger) (*Consumer, error) {
	brokers := parseBrokers(cfg.Kafka.Brokers)
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers cannot be empty")
	}
	if cfg.Kafka.Topic == "" || cfg.Kafka.GroupID == "" {
		return nil, fmt.Errorf("kafka topic and group id are required")
	}

	factory := func() MessageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			Topic:          cfg.Kafka.Topic,
			GroupID:        cfg.Kafka.GroupID,
			MinBytes:       1,
			MaxBytes:       10e6,
			StartOffset:    kafka.FirstOffset,
			CommitInterval: 0,
		})
	}
	logger.Infof("Kafka consumer configured for topic %s (group %s, brokers %v)", cfg.Kafka.Topic, cfg.Kafka.GroupID, brokers)
	return newConsumer(factory, processor, logger), nil
}

func newConsumer(factory ReaderFactory, processor Processor, logger *logging.Logger) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		newReader:    factory,
		reader:       factory(),
		processor:    processor,
		logger:       logger,
		retryBackoff: DefaultRetryBackoff,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (c *Consumer) SetRetryBackoff(d time.Duration) {
	c.retryBackoff = d
}

func (c *Consumer) Start(wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Info("Kafka consumer started")
		c.run(c.ctx)
		if err := c.reader.Close(); err != nil {
			c.logger.Errorf("Closing Kafka reader failed: %v", err)
		}
		c.logger.Info("Kafka consumer stopped")
	}()
}

// Close stops the consume loop; Start's goroutine closes the reader.
func (c *Consumer) Close() {
	c.cancel()
}

func (c *Consumer) run(ctx context.Context) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Errorf("Read message failed: %v", err)
			if !c.wait(ctx) {
				return
			}
			continue
		}

		if err := c.handleMessage(ctx, msg); err != nil {
			c.logger.Errorf("Processing message at offset %d failed, will redeliver: %v", msg.Offset, err)
			if !c.wait(ctx) {
				return
			}
			c.reopen()
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Errorf("Commit offset %d failed: %v", msg.Offset, err)
		}
	}
}

// handleMessage returns an error only when msg should be redelivered.
func (c *Consumer) handleMessage(ctx context.Context, msg kafka.Message) error {
	requestID := uuid.NewString()
	ctx = logging.ContextWithRequestID(ctx, requestID)
	log := c.logger.WithRequestID(requestID)

	event, err := models.ParseEventMessage(msg.Value)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			log.Errorf("Dropping invalid message %q: %s", verr.Raw, verr.Reason)
			return nil
		}
		return err
	}

	if !event.HasTimestamp() {
		received := msg.Time
		if received.IsZero() {
			received = time.Now()
		}
		event = event.WithTimestamp(received)
	}

	log.Debugf("Processing %s event for %s", event.EventLevel, event.CollectionName)
	return c.processor.ProcessEventMessage(ctx, event)
}

func (c *Consumer) wait(ctx context.Context) bool {
	t := time.NewTimer(c.retryBackoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) reopen() {
	if err := c.reader.Close(); err != nil {
		c.logger.Warnf("Closing Kafka reader before reopen failed: %v", err)
	}
	c.reader = c.newReader()
}
