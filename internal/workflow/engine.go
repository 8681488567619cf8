package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"leadflow/internal/metrics"
	"leadflow/internal/models"
)

const (
	defaultMaxAttempts = 3

	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// TransitionInput is a caller's request to move a lead.
type TransitionInput struct {
	LeadID    int64
	To        models.Stage
	Reason    *string
	Actor     models.Actor
	Automated bool
}

// Engine validates, commits and propagates lead stage transitions.
// It holds no transition rules of its own: legality is decided by the Validator.
type Engine struct {
	registry    *Registry
	validator   *Validator
	store       Store
	publisher   Publisher
	locker      LeadLocker
	metrics     *metrics.Metrics
	logger      *slog.Logger
	maxAttempts int
	now         func() time.Time
	newID       func() string
}

type EngineOption func(*Engine)

func WithPublisher(p Publisher) EngineOption {
	return func(e *Engine) { e.publisher = p }
}

// WithLocker serializes transitions of the same lead through l on top of the
// optimistic version check.
func WithLocker(l LeadLocker) EngineOption {
	return func(e *Engine) { e.locker = l }
}

func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithMaxAttempts bounds the validate+commit retries on version conflicts.
func WithMaxAttempts(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithClock is used by tests to control OccurredAt.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func NewEngine(validator *Validator, store Store, opts ...EngineOption) *Engine {
	e := &Engine{
		registry:    validator.registry,
		validator:   validator,
		store:       store,
		publisher:   nopPublisher{},
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
		newID:       func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry exposes the stage graph the engine validates against.
func (e *Engine) Registry() *Registry { return e.registry }

// TransitionStage moves a lead along a regular graph edge.
func (e *Engine) TransitionStage(ctx context.Context, in TransitionInput) (models.TransitionRecord, error) {
	return e.transition(ctx, in, ClassRegular)
}

// Reactivate reopens a closed lead. Callers must check the actor is allowed to do so.
func (e *Engine) Reactivate(ctx context.Context, in TransitionInput) (models.TransitionRecord, error) {
	return e.transition(ctx, in, ClassReactivation)
}

func (e *Engine) transition(ctx context.Context, in TransitionInput, class TransitionClass) (models.TransitionRecord, error) {
	started := e.now()
	if !in.To.Valid() {
		return models.TransitionRecord{}, &models.UnknownStageError{Value: string(in.To)}
	}

	if e.locker != nil {
		unlock, err := e.locker.Lock(ctx, in.LeadID)
		if err != nil {
			return models.TransitionRecord{}, fmt.Errorf("lock lead %d: %w", in.LeadID, err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				e.logger.Warn("unlock lead", slog.Int64("lead_id", in.LeadID), slog.Any("error", err))
			}
		}()
	}

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		current, err := e.store.GetCurrentStage(ctx, in.LeadID)
		if err != nil {
			return models.TransitionRecord{}, err
		}

		intent, err := e.validator.Validate(TransitionRequest{
			From:   current.Stage,
			To:     in.To,
			Reason: in.Reason,
			Class:  class,
		})
		if err != nil {
			e.rejected(err)
			return models.TransitionRecord{}, err
		}

		rec := models.TransitionRecord{
			ID:           e.newID(),
			LeadID:       in.LeadID,
			FromStage:    intent.From,
			ToStage:      intent.To,
			Reason:       intent.Reason,
			Actor:        in.Actor,
			Automated:    in.Automated,
			Reactivation: intent.Class == ClassReactivation,
			OccurredAt:   e.stamp(current.ChangedAt),
		}

		err = e.store.SetCurrentStageAtomically(ctx, rec, current.Version)
		if errors.Is(err, ErrVersionConflict) {
			e.metrics.Conflict()
			e.logger.Debug("stage changed during transition, retrying",
				slog.Int64("lead_id", in.LeadID),
				slog.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return models.TransitionRecord{}, fmt.Errorf("commit transition for lead %d: %w", in.LeadID, err)
		}

		e.metrics.TransitionCommitted(string(rec.FromStage), string(rec.ToStage), rec.Automated, e.now().Sub(started).Seconds())
		e.logger.Info("lead stage changed",
			slog.Int64("lead_id", rec.LeadID),
			slog.String("from", string(rec.FromStage)),
			slog.String("to", string(rec.ToStage)),
			slog.String("actor", rec.Actor.String()),
			slog.Bool("automated", rec.Automated),
			slog.String("class", class.String()),
		)
		e.publisher.Publish(models.EventFromRecord(rec))
		return rec, nil
	}

	e.metrics.TransitionRejected("conflict")
	return models.TransitionRecord{}, &ConcurrencyConflictError{LeadID: in.LeadID, Attempts: e.maxAttempts}
}

func (e *Engine) rejected(err error) {
	var invalid *InvalidTransitionError
	var reason *ReasonPolicyError
	switch {
	case errors.As(err, &invalid):
		e.metrics.TransitionRejected(invalid.Reason)
	case errors.As(err, &reason):
		e.metrics.TransitionRejected(reason.Rule)
	default:
		e.metrics.TransitionRejected("unknown_stage")
	}
}

// stamp keeps OccurredAt strictly increasing per lead at microsecond precision,
// which is what Postgres stores.
func (e *Engine) stamp(last time.Time) time.Time {
	t := e.now().UTC().Truncate(time.Microsecond)
	last = last.UTC().Truncate(time.Microsecond)
	if !t.After(last) {
		t = last.Add(time.Microsecond)
	}
	return t
}

// GetStageHistory returns committed transitions of a lead, newest first.
func (e *Engine) GetStageHistory(ctx context.Context, leadID int64, limit int, before *time.Time) ([]models.TransitionRecord, error) {
	if _, err := e.store.GetCurrentStage(ctx, leadID); err != nil {
		return nil, err
	}
	return e.store.ListByLead(ctx, leadID, ClampLimit(limit), before)
}

// ClampLimit maps a requested page size into [1, MaxHistoryLimit]; zero or
// negative means DefaultHistoryLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	}
	return limit
}

// CountTransitions returns how many transitions the lead has committed.
func (e *Engine) CountTransitions(ctx context.Context, leadID int64) (int, error) {
	if _, err := e.store.GetCurrentStage(ctx, leadID); err != nil {
		return 0, err
	}
	return e.store.CountByLead(ctx, leadID)
}

// GetAvailableTransitions lists the regular targets from the lead's actual current stage.
func (e *Engine) GetAvailableTransitions(ctx context.Context, leadID int64) ([]models.Stage, error) {
	current, err := e.store.GetCurrentStage(ctx, leadID)
	if err != nil {
		return nil, err
	}
	return e.validator.Allowed(current.Stage, ClassRegular)
}

// GetCurrentStage returns the lead's stage and version.
func (e *Engine) GetCurrentStage(ctx context.Context, leadID int64) (models.LeadStage, error) {
	return e.store.GetCurrentStage(ctx, leadID)
}
