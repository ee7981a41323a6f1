package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sigevent-service/internal/config"
	"sigevent-service/internal/db"
	"sigevent-service/internal/logging"
	"sigevent-service/internal/models"
	"sigevent-service/internal/ratelimit"
)

// LogStore is the durable event log the engine appends to.
type LogStore interface {
	CreateStream(ctx context.Context, group, stream string) error
	PutEvents(ctx context.Context, group, stream string, events []models.LogEvent) error
}

// AdmissionCounter tracks how many WARN notifications went out today.
type AdmissionCounter interface {
	LookupNotificationCount(ctx context.Context, fingerprint string) (int64, error)
	IncrementNotificationCount(ctx context.Context, fingerprint string) error
}

type Notifier interface {
	SendNotification(ctx context.Context, msg models.EventMessage) error
}

// Observer receives every logged event. Publish must not block for long.
type Observer interface {
	Publish(msg models.EventMessage)
}

// Engine logs every event and decides whether it is worth a notification.
type Engine struct {
	logs          LogStore
	counter       AdmissionCounter
	notifier      Notifier
	observer      Observer
	streams       *StreamCache
	logGroup      string
	muted         bool
	maxDailyWarns int64
	logger        *logging.Logger
	now           func() time.Time
}

func NewEngine(logs LogStore, counter AdmissionCounter, notifier Notifier, cfg config.Config, logger *logging.Logger) *Engine {
	return &Engine{
		logs:          logs,
		counter:       counter,
		notifier:      notifier,
		streams:       NewStreamCache(),
		logGroup:      cfg.LogGroup,
		muted:         cfg.MutedMode,
		maxDailyWarns: int64(cfg.MaxDailyWarns),
		logger:        logger,
		now:           time.Now,
	}
}

// SetObserver registers o to receive every event after it is logged.
func (e *Engine) SetObserver(o Observer) {
	e.observer = o
}

func (e *Engine) Streams() *StreamCache {
	return e.streams
}

// ProcessEventMessage appends msg to its collection's log stream and then
// applies the notification policy. Any store, counter or transport error is
// returned so the caller can redeliver the message.
func (e *Engine) ProcessEventMessage(ctx context.Context, msg models.EventMessage) error {
	log := e.logger.FromContext(ctx)
	if !msg.HasTimestamp() {
		msg = msg.WithTimestamp(e.now())
	}

	if err := e.logEvent(ctx, msg); err != nil {
		return err
	}
	if e.observer != nil {
		e.observer.Publish(msg)
	}

	if e.muted {
		log.Debugf("Muted mode, no notification for %s", msg.CollectionName)
		return nil
	}

	switch msg.EventLevel {
	case models.LevelError:
		if err := e.notifier.SendNotification(ctx, msg); err != nil {
			return fmt.Errorf("send error notification: %w", err)
		}
	case models.LevelWarn:
		return e.admitWarning(ctx, msg)
	default:
		log.Debug("Message not sent")
	}
	return nil
}

func (e *Engine) logEvent(ctx context.Context, msg models.EventMessage) error {
	stream := msg.CollectionName
	if !e.streams.Known(stream) {
		err := e.logs.CreateStream(ctx, e.logGroup, stream)
		switch {
		case errors.Is(err, db.ErrStreamExists):
			e.logger.FromContext(ctx).Debugf("Log stream %s already exists", stream)
		case err != nil:
			return fmt.Errorf("create log stream %s: %w", stream, err)
		}
		e.streams.Add(stream)
		e.logger.FromContext(ctx).Debugf("Log stream %s ready (%d known)", stream, e.streams.Len())
	}

	raw, err := msg.JSON()
	if err != nil {
		return err
	}
	events := []models.LogEvent{{Timestamp: msg.TimestampMillis(), Message: raw}}
	if err := e.logs.PutEvents(ctx, e.logGroup, stream, events); err != nil {
		if errors.Is(err, db.ErrStreamNotFound) {
			// removed behind our back; recreate on redelivery
			e.streams.Forget(stream)
		}
		return fmt.Errorf("put log event to %s: %w", stream, err)
	}
	return nil
}

// admitWarning sends at most maxDailyWarns WARN notifications per
// (level, collection) per UTC day. Lookup and increment are separate calls,
// so concurrent handlers may overshoot the cap by a few messages.
func (e *Engine) admitWarning(ctx context.Context, msg models.EventMessage) error {
	fingerprint := ratelimit.Fingerprint(msg.EventLevel, msg.CollectionName)

	count, err := e.counter.LookupNotificationCount(ctx, fingerprint)
	if err != nil {
		return fmt.Errorf("lookup notification count: %w", err)
	}
	if count >= e.maxDailyWarns {
		e.logger.FromContext(ctx).Debugf("Daily warning limit reached for %s (%d)", msg.CollectionName, count)
		return nil
	}

	if err := e.notifier.SendNotification(ctx, msg); err != nil {
		return fmt.Errorf("send warning notification: %w", err)
	}
	if err := e.counter.IncrementNotificationCount(ctx, fingerprint); err != nil {
		return fmt.Errorf("increment notification count: %w", err)
	}
	return nil
}
