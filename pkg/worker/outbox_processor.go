package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"

	"github.com/jwalitptl/intake-api/pkg/logger"
	"github.com/jwalitptl/intake-api/pkg/messaging"
	"github.com/jwalitptl/intake-api/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	// Retention of processed rows; zero disables cleanup.
	Retention time.Duration
}

type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *OutboxProcessor {
	// Config validation instead of defaults
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		panic("RetryAttempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		panic("RetryDelay must be greater than 0")
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Start polls until ctx is cancelled.
func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	var cleanup <-chan time.Time
	if p.config.Retention > 0 {
		cleanupTicker := time.NewTicker(time.Hour)
		defer cleanupTicker.Stop()
		cleanup = cleanupTicker.C
	}

	p.logger.Info("Starting outbox processor",
		"batch_size", p.config.BatchSize,
		"poll_interval", p.config.PollInterval.String())

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if err := p.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error(err, "Failed to process events")
			}
		case <-cleanup:
			if err := p.Cleanup(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error(err, "Failed to clean up processed events")
			}
		}
	}
}

// ProcessOnce claims one batch of due events and publishes them. Every
// claimed event leaves the batch as processed, retry or failed.
//
// Delivery on the typed channel is at least once: an event is published
// again only when its typed publish failed, or when the batch could not be
// committed after publishing. Consumers dedupe on the envelope id.
func (p *OutboxProcessor) ProcessOnce(ctx context.Context) (err error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, batch, err := p.repo.GetPendingEventsWithLock(ctx, p.config.BatchSize)
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "error").Inc()
		return fmt.Errorf("failed to get pending events: %w", err)
	}
	p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "success").Inc()

	defer func() {
		if err != nil {
			if rbErr := batch.Rollback(); rbErr != nil {
				p.logger.Error(rbErr, "Failed to roll back outbox batch")
			}
		}
	}()

	for _, event := range events {
		if err := p.processEvent(ctx, batch, event); err != nil {
			return err
		}
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("failed to commit outbox batch: %w", err)
	}

	if pending, err := p.repo.CountPending(ctx); err == nil {
		p.metrics.OutboxQueueSize.Set(float64(pending))
	}
	return nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, batch repository.OutboxBatch, event *model.OutboxEvent) error {
	envelope := model.EventEnvelope{
		ID:         event.ID,
		Type:       event.EventType,
		Payload:    event.Payload,
		OccurredAt: event.CreatedAt,
	}

	attempt := event.RetryCount + 1
	log := p.logger.WithFields(map[string]interface{}{
		"event_id":   event.ID.String(),
		"event_type": event.EventType,
		"attempt":    attempt,
	})

	// Only the typed channel decides the outcome, so a retry never repeats a
	// delivery that already reached its consumers. The fan-in channel is best
	// effort.
	pubErr := p.broker.Publish(ctx, event.EventType, envelope)
	if pubErr == nil {
		if err := p.broker.Publish(ctx, messaging.AllEventsChannel, envelope); err != nil {
			p.metrics.OutboxFanInFailures.Inc()
			log.Warn("Failed to publish event to fan-in channel", "error", err.Error())
		}
		if err := batch.MarkProcessed(ctx, event.ID); err != nil {
			return err
		}
		p.metrics.OutboxEventsProcessed.Inc()
		return nil
	}

	if attempt >= p.config.RetryAttempts {
		log.Error(pubErr, "Outbox event exhausted retries")
		p.metrics.OutboxEventsFailed.Inc()
		return batch.MarkFailed(ctx, event.ID, pubErr.Error())
	}

	retryAt := p.now().Add(p.backoff(event.RetryCount))
	log.Warn("Failed to publish event, scheduling retry", "retry_at", retryAt.Format(time.RFC3339))
	p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
	return batch.MarkRetry(ctx, event.ID, pubErr.Error(), retryAt)
}

// backoff doubles RetryDelay per previous attempt, capped at an hour.
func (p *OutboxProcessor) backoff(previousAttempts int) time.Duration {
	d := p.config.RetryDelay
	for i := 0; i < previousAttempts && d < time.Hour; i++ {
		d *= 2
	}
	if d > time.Hour {
		d = time.Hour
	}
	return d
}

// Cleanup removes processed events older than the retention window.
func (p *OutboxProcessor) Cleanup(ctx context.Context) error {
	if p.config.Retention <= 0 {
		return nil
	}
	n, err := p.repo.DeleteProcessedBefore(ctx, p.now().Add(-p.config.Retention))
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("delete_processed_events", "error").Inc()
		return err
	}
	p.metrics.DatabaseOperations.WithLabelValues("delete_processed_events", "success").Inc()
	if n > 0 {
		p.logger.Info("Removed processed outbox events", "count", n)
	}
	return nil
}
