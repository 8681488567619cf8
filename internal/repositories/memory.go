package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"leadflow/internal/models"
	"leadflow/internal/workflow"
)

// MemoryLeadRepository is an in-memory workflow.Store for tests and the
// `storage: memory` dev mode. Commit semantics match LeadRepository.
type MemoryLeadRepository struct {
	mu      sync.RWMutex
	leads   map[int64]models.Leads
	history map[int64][]models.TransitionRecord
	nextID  int64
}

var _ workflow.Store = (*MemoryLeadRepository)(nil)

func NewMemoryLeadRepository() *MemoryLeadRepository {
	return &MemoryLeadRepository{
		leads:   make(map[int64]models.Leads),
		history: make(map[int64][]models.TransitionRecord),
	}
}

func (s *MemoryLeadRepository) Create(_ context.Context, title string, ownerID int64) (*models.Leads, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	now := time.Now().UTC().Truncate(time.Microsecond)
	lead := models.Leads{
		ID:             s.nextID,
		Title:          title,
		OwnerID:        ownerID,
		Stage:          models.StageNew,
		StageChangedAt: now,
		CreatedAt:      now,
	}
	s.leads[lead.ID] = lead
	return &lead, nil
}

func (s *MemoryLeadRepository) GetCurrentStage(_ context.Context, leadID int64) (models.LeadStage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lead, ok := s.leads[leadID]
	if !ok {
		return models.LeadStage{}, fmt.Errorf("lead %d: %w", leadID, workflow.ErrLeadNotFound)
	}
	return models.LeadStage{
		LeadID:    lead.ID,
		Stage:     lead.Stage,
		Version:   lead.StageVersion,
		ChangedAt: lead.StageChangedAt,
	}, nil
}

func (s *MemoryLeadRepository) SetCurrentStageAtomically(_ context.Context, rec models.TransitionRecord, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lead, ok := s.leads[rec.LeadID]
	if !ok {
		return fmt.Errorf("lead %d: %w", rec.LeadID, workflow.ErrLeadNotFound)
	}
	if lead.StageVersion != version || lead.Stage != rec.FromStage {
		return workflow.ErrVersionConflict
	}
	if h := s.history[rec.LeadID]; len(h) > 0 && !rec.OccurredAt.After(h[len(h)-1].OccurredAt) {
		return fmt.Errorf("lead %d: transition time %s is not after the last one", rec.LeadID, rec.OccurredAt)
	}

	lead.Stage = rec.ToStage
	lead.StageVersion++
	lead.StageChangedAt = rec.OccurredAt
	s.leads[rec.LeadID] = lead
	s.history[rec.LeadID] = append(s.history[rec.LeadID], rec)
	return nil
}

func (s *MemoryLeadRepository) ListByLead(_ context.Context, leadID int64, limit int, before *time.Time) ([]models.TransitionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit = workflow.ClampLimit(limit)
	h := s.history[leadID]
	out := make([]models.TransitionRecord, 0, min(limit, len(h)))
	for i := len(h) - 1; i >= 0 && len(out) < limit; i-- {
		if before != nil && !h[i].OccurredAt.Before(*before) {
			continue
		}
		out = append(out, h[i])
	}
	return out, nil
}

func (s *MemoryLeadRepository) CountByLead(_ context.Context, leadID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history[leadID]), nil
}

// MemoryActivityRepository keeps activities in a slice.
type MemoryActivityRepository struct {
	mu     sync.Mutex
	items  []models.Activity
	nextID int64
}

var _ ActivityRepository = (*MemoryActivityRepository)(nil)

func NewMemoryActivityRepository() *MemoryActivityRepository {
	return &MemoryActivityRepository{}
}

func (r *MemoryActivityRepository) Store(_ context.Context, a *models.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	a.ID = r.nextID
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	r.items = append(r.items, *a)
	return nil
}

func (r *MemoryActivityRepository) ListByLead(_ context.Context, leadID int64, limit int) ([]models.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Activity
	for _, a := range r.items {
		if a.LeadID == leadID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
