// internal/models/activity.go
package models

import (
	"encoding/json"
	"time"
)

type ActivityType string

const (
	ActivityStageChange ActivityType = "stage_change"
)

// StageChangeMetadata is the typed payload of a stage_change activity.
type StageChangeMetadata struct {
	TransitionID string `json:"transition_id"`
	From         Stage  `json:"from,omitempty"`
	To           Stage  `json:"to,omitempty"`
	Reason       string `json:"reason,omitempty"`
	Actor        string `json:"actor"`

	// Extra is application-defined and not validated.
	Extra json.RawMessage `json:"extra,omitempty"`
}

// Activity is one entry of the lead activity log.
type Activity struct {
	ID        int64               `json:"id"`
	LeadID    int64               `json:"lead_id"`
	Type      ActivityType        `json:"type"`
	Automated bool                `json:"automated"`
	Metadata  StageChangeMetadata `json:"metadata"`
	CreatedAt time.Time           `json:"created_at"`
}

// NotificationPriority orders channel delivery urgency.
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

// Notification is pushed to people watching the pipeline in real time.
type Notification struct {
	LeadID   int64                `json:"lead_id"`
	Title    string               `json:"title"`
	Message  string               `json:"message"`
	Priority NotificationPriority `json:"priority"`
	SentAt   time.Time            `json:"sent_at"`
}

// AutomationJob asks the automation agent to act on a lead that entered Stage.
type AutomationJob struct {
	ID           string    `json:"id"`
	LeadID       int64     `json:"lead_id"`
	Stage        Stage     `json:"stage"`
	TransitionID string    `json:"transition_id"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
}
