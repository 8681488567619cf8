package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"leadflow/internal/models"
)

// ActivitySink persists activity log entries.
type ActivitySink interface {
	Store(ctx context.Context, a *models.Activity) error
}

// ActivitySubscriber writes a stage_change activity for every transition.
type ActivitySubscriber struct {
	sink ActivitySink
}

func NewActivitySubscriber(sink ActivitySink) *ActivitySubscriber {
	return &ActivitySubscriber{sink: sink}
}

func (s *ActivitySubscriber) Name() string                 { return "activity" }
func (s *ActivitySubscriber) Wants(models.StageEvent) bool { return true }

func (s *ActivitySubscriber) Handle(ctx context.Context, e models.StageEvent) error {
	meta := models.StageChangeMetadata{
		TransitionID: e.TransitionID,
		From:         e.FromStage,
		To:           e.ToStage,
		Actor:        e.Actor.String(),
	}
	if e.Reason != nil {
		meta.Reason = *e.Reason
	}
	return s.sink.Store(ctx, &models.Activity{
		LeadID:    e.LeadID,
		Type:      models.ActivityStageChange,
		Automated: e.Automated,
		Metadata:  meta,
		CreatedAt: e.OccurredAt,
	})
}

// Notifier is one real-time notification channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, n models.Notification) error
}

// NotificationSubscriber pushes a notification to one channel when a lead
// enters a high-salience stage. Register one per channel so a failing
// channel is retried alone.
type NotificationSubscriber struct {
	stages   models.StageSet
	notifier Notifier
}

func NewNotificationSubscriber(stages []models.Stage, n Notifier) *NotificationSubscriber {
	return &NotificationSubscriber{stages: models.NewStageSet(stages...), notifier: n}
}

func (s *NotificationSubscriber) Name() string { return "notify:" + s.notifier.Name() }

func (s *NotificationSubscriber) Wants(e models.StageEvent) bool { return s.stages.Has(e.ToStage) }

func (s *NotificationSubscriber) Handle(ctx context.Context, e models.StageEvent) error {
	return s.notifier.Notify(ctx, NotificationFor(e))
}

// NotificationFor renders the human-facing notification of a transition.
func NotificationFor(e models.StageEvent) models.Notification {
	priority := models.PriorityHigh
	if e.ToStage == models.StageClosedWon {
		priority = models.PriorityUrgent
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "%s → %s", e.FromStage.Label(), e.ToStage.Label())
	if e.Reason != nil && *e.Reason != "" {
		fmt.Fprintf(&msg, ": %s", *e.Reason)
	}
	if e.Automated {
		msg.WriteString(" (auto)")
	}

	return models.Notification{
		LeadID:   e.LeadID,
		Title:    fmt.Sprintf("Lead #%d: %s", e.LeadID, e.ToStage.Label()),
		Message:  msg.String(),
		Priority: priority,
		SentAt:   time.Now().UTC(),
	}
}

// JobQueue receives automation jobs.
type JobQueue interface {
	Enqueue(ctx context.Context, job models.AutomationJob) error
}

// AutomationSubscriber enqueues a job for the automation agent when a lead
// enters one of its stages. The job id is the transition id, so retries
// and replays do not enqueue twice.
type AutomationSubscriber struct {
	stages models.StageSet
	queue  JobQueue
}

func NewAutomationSubscriber(stages []models.Stage, q JobQueue) *AutomationSubscriber {
	return &AutomationSubscriber{stages: models.NewStageSet(stages...), queue: q}
}

func (s *AutomationSubscriber) Name() string { return "automation" }

func (s *AutomationSubscriber) Wants(e models.StageEvent) bool { return s.stages.Has(e.ToStage) }

func (s *AutomationSubscriber) Handle(ctx context.Context, e models.StageEvent) error {
	return s.queue.Enqueue(ctx, models.AutomationJob{
		ID:           e.TransitionID,
		LeadID:       e.LeadID,
		Stage:        e.ToStage,
		TransitionID: e.TransitionID,
	})
}
