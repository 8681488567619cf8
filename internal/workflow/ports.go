package workflow

import (
	"context"
	"time"

	"leadflow/internal/models"
)

// StageStore owns the lead's current stage. SetCurrentStageAtomically must
// move the stage from rec.FromStage to rec.ToStage only if the stored version
// still equals version, and append rec to the history in the same transaction.
// On a version mismatch it returns ErrVersionConflict and writes nothing.
type StageStore interface {
	GetCurrentStage(ctx context.Context, leadID int64) (models.LeadStage, error)
	SetCurrentStageAtomically(ctx context.Context, rec models.TransitionRecord, version int64) error
}

// HistoryStore is the read side of the append-only transition ledger.
type HistoryStore interface {
	// ListByLead returns up to limit records older than before (all when nil),
	// newest first.
	ListByLead(ctx context.Context, leadID int64, limit int, before *time.Time) ([]models.TransitionRecord, error)
	CountByLead(ctx context.Context, leadID int64) (int, error)
}

type Store interface {
	StageStore
	HistoryStore
}

// Publisher receives committed transitions. Publish must not block.
type Publisher interface {
	Publish(event models.StageEvent)
}

// UnlockFunc releases a lock obtained from a LeadLocker.
type UnlockFunc func(ctx context.Context) error

// LeadLocker serializes validate+commit for a single lead.
type LeadLocker interface {
	Lock(ctx context.Context, leadID int64) (UnlockFunc, error)
}

type nopPublisher struct{}

func (nopPublisher) Publish(models.StageEvent) {}
