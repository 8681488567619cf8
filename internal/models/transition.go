// internal/models/transition.go
package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

const actorSystem = "system"

// Actor is whoever requested a transition: the system (automation agent) or a user.
type Actor struct {
	UserID int64 // 0 = system
}

// SystemActor is used for transitions requested by the automation agent.
var SystemActor = Actor{}

func UserActor(userID int64) Actor { return Actor{UserID: userID} }

func (a Actor) IsSystem() bool { return a.UserID == 0 }

// String renders "system" or the decimal user id, the same form stored in the DB.
func (a Actor) String() string {
	if a.IsSystem() {
		return actorSystem
	}
	return strconv.FormatInt(a.UserID, 10)
}

// ParseActor is the inverse of String.
func ParseActor(s string) (Actor, error) {
	if s == actorSystem || s == "" {
		return SystemActor, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return Actor{}, fmt.Errorf("invalid actor %q", s)
	}
	return UserActor(id), nil
}

func (a Actor) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Actor) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseActor(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// TransitionRecord is an immutable audit entry of one committed stage change.
type TransitionRecord struct {
	ID           string    `json:"id"`
	LeadID       int64     `json:"lead_id"`
	FromStage    Stage     `json:"from_stage"`
	ToStage      Stage     `json:"to_stage"`
	Reason       *string   `json:"reason,omitempty"`
	Actor        Actor     `json:"actor"`
	Automated    bool      `json:"automated"`
	Reactivation bool      `json:"reactivation,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// LeadStage is the stage part of a lead together with its optimistic-lock token.
type LeadStage struct {
	LeadID    int64     `json:"lead_id"`
	Stage     Stage     `json:"stage"`
	Version   int64     `json:"version"`
	ChangedAt time.Time `json:"changed_at"`
}

// StageEvent is handed to the side-effect dispatcher after a transition commits.
type StageEvent struct {
	TransitionID string
	LeadID       int64
	FromStage    Stage
	ToStage      Stage
	Reason       *string
	Actor        Actor
	Automated    bool
	OccurredAt   time.Time
}

// EventFromRecord builds the dispatcher event for a committed record.
func EventFromRecord(rec TransitionRecord) StageEvent {
	return StageEvent{
		TransitionID: rec.ID,
		LeadID:       rec.LeadID,
		FromStage:    rec.FromStage,
		ToStage:      rec.ToStage,
		Reason:       rec.Reason,
		Actor:        rec.Actor,
		Automated:    rec.Automated,
		OccurredAt:   rec.OccurredAt,
	}
}
