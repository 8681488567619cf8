package models

import "time"

// Leads holds only the columns the workflow service touches.
type Leads struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	OwnerID        int64     `json:"owner_id"`
	Stage          Stage     `json:"stage"`
	StageVersion   int64     `json:"stage_version"`
	StageChangedAt time.Time `json:"stage_changed_at"`
	CreatedAt      time.Time `json:"created_at"`
}
