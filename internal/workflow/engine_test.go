package workflow_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadflow/internal/locking"
	"leadflow/internal/models"
	"leadflow/internal/repositories"
	"leadflow/internal/workflow"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.StageEvent
}

func (p *recordingPublisher) Publish(e models.StageEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) Events() []models.StageEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.StageEvent(nil), p.events...)
}

// conflictingStore fails the first n commits with a version conflict.
type conflictingStore struct {
	*repositories.MemoryLeadRepository
	remaining atomic.Int32
}

func (s *conflictingStore) SetCurrentStageAtomically(ctx context.Context, rec models.TransitionRecord, version int64) error {
	if s.remaining.Add(-1) >= 0 {
		return workflow.ErrVersionConflict
	}
	return s.MemoryLeadRepository.SetCurrentStageAtomically(ctx, rec, version)
}

func newEngine(t *testing.T, opts ...workflow.EngineOption) (*workflow.Engine, *repositories.MemoryLeadRepository, *recordingPublisher) {
	t.Helper()
	store := repositories.NewMemoryLeadRepository()
	pub := &recordingPublisher{}
	opts = append([]workflow.EngineOption{workflow.WithPublisher(pub)}, opts...)
	eng := workflow.NewEngine(workflow.NewValidator(workflow.NewRegistry()), store, opts...)
	return eng, store, pub
}

func move(t *testing.T, eng *workflow.Engine, leadID int64, to models.Stage) (models.TransitionRecord, error) {
	t.Helper()
	return eng.TransitionStage(context.Background(), workflow.TransitionInput{
		LeadID: leadID,
		To:     to,
		Actor:  models.UserActor(11),
	})
}

func TestLeadLifecycleScenario(t *testing.T) {
	ctx := context.Background()
	eng, store, pub := newEngine(t)
	lead, err := store.Create(ctx, "L1", 11)
	require.NoError(t, err)

	rec, err := move(t, eng, lead.ID, models.StageQualifying)
	require.NoError(t, err)
	assert.Equal(t, models.StageNew, rec.FromStage)
	assert.Equal(t, models.StageQualifying, rec.ToStage)
	assert.NotEmpty(t, rec.ID)

	// self loop
	_, err = move(t, eng, lead.ID, models.StageQualifying)
	var invalid *workflow.InvalidTransitionError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, workflow.RejectSelfTransition, invalid.Reason)

	// not reachable from QUALIFYING
	_, err = move(t, eng, lead.ID, models.StageClosedWon)
	require.True(t, errors.As(err, &invalid))
	fromQualifying, _ := eng.Registry().AllowedTransitions(models.StageQualifying)
	assert.ElementsMatch(t, fromQualifying, invalid.Allowed)

	for _, to := range []models.Stage{models.StageHotEngaged, models.StageProposalSent, models.StageClosedWon} {
		_, err = move(t, eng, lead.ID, to)
		require.NoError(t, err, to)
	}

	history, err := eng.GetStageHistory(ctx, lead.ID, 0, nil)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, models.StageClosedWon, history[0].ToStage)
	assert.Equal(t, models.StageQualifying, history[3].ToStage)

	cur, err := eng.GetCurrentStage(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageClosedWon, cur.Stage)

	// terminal lock
	for _, to := range models.Stages {
		_, err = move(t, eng, lead.ID, to)
		require.True(t, errors.As(err, &invalid), to)
		assert.Empty(t, invalid.Allowed)
	}

	available, err := eng.GetAvailableTransitions(ctx, lead.ID)
	require.NoError(t, err)
	assert.Empty(t, available)

	assert.Len(t, pub.Events(), 4)
}

func TestHistoryCompletenessAndOrder(t *testing.T) {
	ctx := context.Background()
	// frozen clock: the engine must still produce strictly increasing times
	frozen := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	eng, store, _ := newEngine(t, workflow.WithClock(func() time.Time { return frozen }))
	lead, err := store.Create(ctx, "ordered", 1)
	require.NoError(t, err)

	path := []models.Stage{
		models.StageQualifying, models.StageWarmNurturing, models.StageHotEngaged,
		models.StageMeetingScheduled, models.StageDiscoveryComplete, models.StageProposalSent,
		models.StageNegotiation, models.StageContractStage, models.StageClosedLost,
	}
	for _, to := range path {
		_, err := move(t, eng, lead.ID, to)
		require.NoError(t, err, to)
	}

	history, err := eng.GetStageHistory(ctx, lead.ID, 100, nil)
	require.NoError(t, err)
	require.Len(t, history, len(path))
	for i := 1; i < len(history); i++ {
		assert.True(t, history[i-1].OccurredAt.After(history[i].OccurredAt), "records %d and %d are not strictly ordered", i-1, i)
		assert.Equal(t, history[i].ToStage, history[i-1].FromStage, "chain broken at %d", i)
	}
	assert.Equal(t, models.StageNew, history[len(history)-1].FromStage)

	cur, err := eng.GetCurrentStage(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, history[0].ToStage, cur.Stage)

	count, err := eng.CountTransitions(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, len(path), count)

	// restartable pagination
	page1, err := eng.GetStageHistory(ctx, lead.ID, 4, nil)
	require.NoError(t, err)
	require.Len(t, page1, 4)
	cursor := page1[len(page1)-1].OccurredAt
	page2, err := eng.GetStageHistory(ctx, lead.ID, 4, &cursor)
	require.NoError(t, err)
	require.Len(t, page2, 4)
	assert.Equal(t, history[4].ID, page2[0].ID)
	again, err := eng.GetStageHistory(ctx, lead.ID, 4, &cursor)
	require.NoError(t, err)
	assert.Equal(t, page2, again)
}

func TestConcurrentRequestsOnSameLead(t *testing.T) {
	for name, opts := range map[string][]workflow.EngineOption{
		"optimistic": {workflow.WithMaxAttempts(50)},
		"locked":     {workflow.WithLocker(locking.NewKeyedMutex())},
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			eng, store, pub := newEngine(t, opts...)
			lead, err := store.Create(ctx, "contended", 1)
			require.NoError(t, err)

			const callers = 32
			targets := []models.Stage{models.StageQualifying, models.StageDisqualified, models.StageUnsubscribed}
			var (
				wg        sync.WaitGroup
				successes atomic.Int32
			)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func(to models.Stage) {
					defer wg.Done()
					_, err := move(t, eng, lead.ID, to)
					if err == nil {
						successes.Add(1)
						return
					}
					var invalid *workflow.InvalidTransitionError
					if !errors.As(err, &invalid) && !errors.Is(err, workflow.ErrConcurrencyConflict) {
						t.Errorf("unexpected error: %v", err)
					}
				}(targets[i%len(targets)])
			}
			wg.Wait()

			history, err := eng.GetStageHistory(ctx, lead.ID, 100, nil)
			require.NoError(t, err)
			assert.Equal(t, int(successes.Load()), len(history))
			assert.Len(t, pub.Events(), len(history))

			// history must be a valid walk through the graph starting at NEW
			from := models.StageNew
			for i := len(history) - 1; i >= 0; i-- {
				rec := history[i]
				require.Equal(t, from, rec.FromStage)
				edges, err := eng.Registry().AllowedTransitions(rec.FromStage)
				require.NoError(t, err)
				assert.Contains(t, edges, rec.ToStage)
				from = rec.ToStage
			}
			cur, err := eng.GetCurrentStage(ctx, lead.ID)
			require.NoError(t, err)
			assert.Equal(t, from, cur.Stage)
		})
	}
}

func TestConcurrencyConflictAfterRetries(t *testing.T) {
	ctx := context.Background()
	mem := repositories.NewMemoryLeadRepository()
	store := &conflictingStore{MemoryLeadRepository: mem}
	store.remaining.Store(100)
	lead, err := mem.Create(ctx, "busy", 1)
	require.NoError(t, err)

	eng := workflow.NewEngine(workflow.NewValidator(workflow.NewRegistry()), store, workflow.WithMaxAttempts(3))
	_, err = eng.TransitionStage(ctx, workflow.TransitionInput{LeadID: lead.ID, To: models.StageQualifying})
	require.ErrorIs(t, err, workflow.ErrConcurrencyConflict)
	var conflict *workflow.ConcurrencyConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, 3, conflict.Attempts)

	count, _ := mem.CountByLead(ctx, lead.ID)
	assert.Zero(t, count)

	// two conflicts, then success within the budget
	store.remaining.Store(2)
	rec, err := eng.TransitionStage(ctx, workflow.TransitionInput{LeadID: lead.ID, To: models.StageQualifying})
	require.NoError(t, err)
	assert.Equal(t, models.StageQualifying, rec.ToStage)
}

func TestUnknownLeadAndStage(t *testing.T) {
	ctx := context.Background()
	eng, store, pub := newEngine(t)

	_, err := move(t, eng, 999, models.StageQualifying)
	assert.ErrorIs(t, err, workflow.ErrLeadNotFound)
	_, err = eng.GetStageHistory(ctx, 999, 10, nil)
	assert.ErrorIs(t, err, workflow.ErrLeadNotFound)
	_, err = eng.GetAvailableTransitions(ctx, 999)
	assert.ErrorIs(t, err, workflow.ErrLeadNotFound)

	lead, err := store.Create(ctx, "x", 1)
	require.NoError(t, err)
	_, err = move(t, eng, lead.ID, "LIMBO")
	var unknown *models.UnknownStageError
	assert.True(t, errors.As(err, &unknown))
	assert.Empty(t, pub.Events())
}

func TestAvailableTransitionsFollowCurrentStage(t *testing.T) {
	ctx := context.Background()
	eng, store, _ := newEngine(t)
	lead, err := store.Create(ctx, "x", 1)
	require.NoError(t, err)

	_, err = move(t, eng, lead.ID, models.StageQualifying)
	require.NoError(t, err)
	_, err = move(t, eng, lead.ID, models.StageHotEngaged)
	require.NoError(t, err)

	available, err := eng.GetAvailableTransitions(ctx, lead.ID)
	require.NoError(t, err)
	want, _ := eng.Registry().AllowedTransitions(models.StageHotEngaged)
	assert.Equal(t, want, available)
	fromNew, _ := eng.Registry().AllowedTransitions(models.StageNew)
	assert.NotEqual(t, fromNew, available)
}

func TestReactivateClosedLead(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryLeadRepository()
	pub := &recordingPublisher{}
	eng := workflow.NewEngine(
		workflow.NewValidator(workflow.NewRegistry(workflow.WithReactivation(true))),
		store,
		workflow.WithPublisher(pub),
	)
	lead, err := store.Create(ctx, "comeback", 1)
	require.NoError(t, err)
	_, err = move(t, eng, lead.ID, models.StageQualifying)
	require.NoError(t, err)
	_, err = move(t, eng, lead.ID, models.StageDisqualified)
	require.NoError(t, err)

	reason := "budget approved after all"
	rec, err := eng.Reactivate(ctx, workflow.TransitionInput{
		LeadID: lead.ID, To: models.StageQualifying, Reason: &reason, Actor: models.UserActor(2),
	})
	require.NoError(t, err)
	assert.True(t, rec.Reactivation)
	assert.Equal(t, models.StageDisqualified, rec.FromStage)

	// reactivation on an open lead is rejected
	_, err = eng.Reactivate(ctx, workflow.TransitionInput{LeadID: lead.ID, To: models.StageHotEngaged})
	var invalid *workflow.InvalidTransitionError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, workflow.RejectReactivation, invalid.Reason)
}

func TestAutomatedTransitionIsRecorded(t *testing.T) {
	ctx := context.Background()
	eng, store, pub := newEngine(t)
	lead, err := store.Create(ctx, "bot", 1)
	require.NoError(t, err)

	rec, err := eng.TransitionStage(ctx, workflow.TransitionInput{
		LeadID: lead.ID, To: models.StageQualifying, Actor: models.SystemActor, Automated: true,
	})
	require.NoError(t, err)
	assert.True(t, rec.Automated)
	assert.True(t, rec.Actor.IsSystem())

	events := pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, rec.ID, events[0].TransitionID)
	assert.True(t, events[0].Automated)
}
