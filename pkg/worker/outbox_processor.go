package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
	"github.com/jwalitptl/practice-api/pkg/logger"
	"github.com/jwalitptl/practice-api/pkg/messaging"
	"github.com/jwalitptl/practice-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// RetryAttempts bounds publish attempts within one poll.
	RetryAttempts int
	RetryDelay    time.Duration
	// MaxDeliveries is how many polls may fail on an event before it is
	// marked failed and left alone.
	MaxDeliveries int
	// ClaimTimeout is how long a claimed event may stay unsettled before
	// another poll claims it again.
	ClaimTimeout  time.Duration
	ChannelPrefix string
}

const settleTimeout = 10 * time.Second

// Validate rejects configurations the processor cannot run with.
func (c OutboxProcessorConfig) Validate() error {
	switch {
	case c.BatchSize <= 0:
		return fmt.Errorf("BatchSize must be greater than 0")
	case c.PollInterval <= 0:
		return fmt.Errorf("PollInterval must be greater than 0")
	case c.RetryAttempts <= 0:
		return fmt.Errorf("RetryAttempts must be greater than 0")
	case c.RetryDelay <= 0:
		return fmt.Errorf("RetryDelay must be greater than 0")
	case c.MaxDeliveries <= 0:
		return fmt.Errorf("MaxDeliveries must be greater than 0")
	case c.ClaimTimeout <= 0:
		return fmt.Errorf("ClaimTimeout must be greater than 0")
	}
	return nil
}

// OutboxProcessor relays committed outbox events to the broker. Delivery is
// at least once: an event whose claim goes stale is published again.
type OutboxProcessor struct {
	store   repository.Store
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewOutboxProcessor(
	store repository.Store,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	log *logger.Logger,
	m *metrics.Metrics,
) (*OutboxProcessor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	return &OutboxProcessor{
		store:   store,
		broker:  broker,
		config:  config,
		logger:  log,
		metrics: m,
	}, nil
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

// ProcessBatch relays up to BatchSize pending events and returns how many
// were published. Events are claimed in one short transaction, published
// with no transaction open, then settled in a second one, so a slow or
// failing broker never holds store locks.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	start := time.Now()

	var events []*model.OutboxEvent
	err := p.store.WithTx(ctx, func(tx repository.Repositories) error {
		var err error
		events, err = tx.Outbox().ClaimPending(ctx, p.config.BatchSize, time.Now().Add(-p.config.ClaimTimeout))
		p.metrics.ObserveDB("claim_pending_events", err)
		return err
	})
	if err != nil {
		p.metrics.OutboxBatch(0, time.Since(start))
		return 0, fmt.Errorf("failed to claim pending events: %w", err)
	}
	if len(events) == 0 {
		p.metrics.OutboxBatch(0, time.Since(start))
		return 0, nil
	}

	results := make([]error, len(events))
	for i, event := range events {
		results[i] = p.publish(ctx, event)
	}

	// Settle even after ctx is cancelled so published events are not resent.
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	published := 0
	err = p.store.WithTx(settleCtx, func(tx repository.Repositories) error {
		published = 0
		for i, event := range events {
			ok, err := p.settle(settleCtx, tx.Outbox(), event, results[i])
			if err != nil {
				return err
			}
			if ok {
				published++
			}
		}
		return nil
	})

	p.metrics.OutboxBatch(len(events), time.Since(start))
	if err != nil {
		return 0, err
	}
	return published, nil
}

// publish sends one event, retrying with exponential backoff.
func (p *OutboxProcessor) publish(ctx context.Context, event *model.OutboxEvent) error {
	msg := messaging.Message{
		ID:         event.ID,
		Type:       event.EventType,
		OwnerID:    event.OwnerID,
		Payload:    event.Payload,
		OccurredAt: event.CreatedAt,
	}
	channel := messaging.Channel(p.config.ChannelPrefix, event.EventType)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.config.RetryDelay
	policy.MaxElapsedTime = 0
	retries := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(p.config.RetryAttempts-1)), ctx)

	return backoff.Retry(func() error {
		return p.broker.Publish(ctx, channel, msg)
	}, retries)
}

// settle records the outcome of one publish. Only a failure to record the
// outcome is returned as an error.
func (p *OutboxProcessor) settle(ctx context.Context, outbox repository.OutboxRepository, event *model.OutboxEvent, pubErr error) (bool, error) {
	if pubErr == nil {
		p.metrics.OutboxProcessed()
		if err := outbox.UpdateStatus(ctx, event.ID, model.OutboxStatusProcessed, nil); err != nil {
			return false, fmt.Errorf("failed to mark event %s processed: %w", event.ID, err)
		}
		return true, nil
	}

	p.metrics.OutboxFailed(event.EventType)
	status := model.OutboxStatusPending
	if event.RetryCount+1 >= p.config.MaxDeliveries {
		status = model.OutboxStatusFailed
	}
	p.logger.Error(pubErr, "Failed to publish event",
		"event_id", event.ID.String(),
		"event_type", event.EventType,
		"status", string(status))

	errStr := pubErr.Error()
	if err := outbox.UpdateStatus(ctx, event.ID, status, &errStr); err != nil {
		return false, fmt.Errorf("failed to record delivery failure for %s: %w", event.ID, err)
	}
	return false, nil
}
