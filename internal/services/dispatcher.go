package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"atende-relay/internal/evolution"
	"atende-relay/internal/models"
	"atende-relay/internal/repositories"
)

// DispatchPayload is the stored form of one outbound queue entry. Exactly one
// of EmpresaID/InstanceName routes the send to a tenant's Evolution config.
type DispatchPayload struct {
	EmpresaID    string                    `json:"empresaId,omitempty"`
	InstanceName string                    `json:"instanceName,omitempty"`
	Message      evolution.OutboundMessage `json:"message"`
}

// Sender is the provider call the dispatcher needs; satisfied by
// *evolution.Client.
type Sender interface {
	Send(ctx context.Context, inst evolution.Instance, msg *evolution.OutboundMessage) (map[string]interface{}, error)
}

// Dispatcher is the queue's single consumer: it claims pending entries and
// performs provider dispatch with bounded, backoff-delayed retries.
type Dispatcher struct {
	queue   *repositories.QueueRepository
	configs *repositories.ConfigRepository
	sender  Sender
	backoff BackoffPolicy
	timeout time.Duration
}

func NewDispatcher(
	queue *repositories.QueueRepository,
	configs *repositories.ConfigRepository,
	sender Sender,
	backoff BackoffPolicy,
	timeout time.Duration,
) *Dispatcher {
	if backoff == nil {
		backoff = DefaultBackoff
	}
	return &Dispatcher{
		queue:   queue,
		configs: configs,
		sender:  sender,
		backoff: backoff,
		timeout: timeout,
	}
}

// Run drains the queue on every tick until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	log.Info().Dur("tick", tick).Msg("Queue dispatcher started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Queue dispatcher stopped")
			return
		case <-ticker.C:
			for {
				processed, err := d.ProcessOne(ctx)
				if err != nil {
					log.Error().Err(err).Msg("Queue processing error")
					break
				}
				if !processed {
					break
				}
			}
		}
	}
}

// ProcessOne claims and dispatches a single entry. It reports whether an
// entry was claimed; dispatch failures are handled through the retry path
// and are not returned as errors.
func (d *Dispatcher) ProcessOne(ctx context.Context) (bool, error) {
	entry, err := d.queue.DequeueNext()
	if err != nil {
		return false, err
	}
	if entry == nil {
		return false, nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.dispatch(sendCtx, entry); err != nil {
		d.handleFailure(entry, err)
		return true, nil
	}

	if err := d.queue.MarkDone(entry.ID); err != nil {
		return true, err
	}
	log.Info().
		Str("entryId", entry.ID).
		Str("correlationId", entry.CorrelationID).
		Str("messageType", entry.MessageType).
		Msg("Outbound message dispatched")
	return true, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, entry *models.QueueEntry) error {
	var payload DispatchPayload
	if err := json.Unmarshal([]byte(entry.Payload), &payload); err != nil {
		return fmt.Errorf("invalid dispatch payload: %w", err)
	}

	var cfg *models.EvolutionConfig
	var err error
	switch {
	case payload.InstanceName != "":
		cfg, err = d.configs.ByInstanceName(payload.InstanceName)
	case payload.EmpresaID != "":
		cfg, err = d.configs.ByEmpresaID(payload.EmpresaID)
	default:
		return fmt.Errorf("dispatch payload has neither empresaId nor instanceName")
	}
	if err != nil {
		return err
	}
	if cfg == nil {
		return fmt.Errorf("no active evolution config for payload (empresaId=%q instance=%q)", payload.EmpresaID, payload.InstanceName)
	}

	inst := evolution.Instance{
		ServerURL:    cfg.ServerURL,
		InstanceName: cfg.InstanceName,
		APIKey:       cfg.APIKey,
	}
	_, err = d.sender.Send(ctx, inst, &payload.Message)
	return err
}

// handleFailure applies the bounded retry budget: requeue with backoff while
// retries remain, dead-letter afterwards.
func (d *Dispatcher) handleFailure(entry *models.QueueEntry, dispatchErr error) {
	attempts := entry.RetryCount + 1
	if attempts < entry.MaxRetries {
		delay := d.backoff(entry.RetryCount)
		if err := d.queue.Requeue(entry, dispatchErr.Error(), delay); err != nil {
			log.Error().Err(err).Str("entryId", entry.ID).Msg("Failed to requeue entry")
			return
		}
		log.Warn().
			Str("entryId", entry.ID).
			Int("retryCount", attempts).
			Int("maxRetries", entry.MaxRetries).
			Dur("delay", delay).
			Str("error", dispatchErr.Error()).
			Msg("Dispatch failed, will retry")
		return
	}

	if err := d.queue.MoveToDeadLetter(entry, dispatchErr.Error()); err != nil {
		log.Error().Err(err).Str("entryId", entry.ID).Msg("Failed to dead-letter entry")
		return
	}
	log.Error().
		Str("entryId", entry.ID).
		Str("correlationId", entry.CorrelationID).
		Int("failureCount", attempts).
		Str("error", dispatchErr.Error()).
		Msg("Dispatch retries exhausted, entry moved to dead letter")
}
