package workflow

import (
	"errors"
	"fmt"
	"strings"

	"leadflow/internal/models"
)

var (
	// ErrLeadNotFound is returned when no lead has the given id.
	ErrLeadNotFound = errors.New("lead not found")
	// ErrVersionConflict is returned by stores when the compare-and-swap on the
	// lead's stage version fails.
	ErrVersionConflict = errors.New("lead stage version conflict")
	// ErrConcurrencyConflict matches *ConcurrencyConflictError via errors.Is.
	ErrConcurrencyConflict = errors.New("concurrent stage change")
)

// Rejection reasons reported by the validator.
const (
	RejectSelfTransition = "self_transition"
	RejectTerminalStage  = "terminal_stage"
	RejectNotAllowed     = "not_allowed"
	RejectReactivation   = "reactivation_not_allowed"
)

// InvalidTransitionError carries the set of stages that are legal right now
// so the caller can offer them instead of guessing.
type InvalidTransitionError struct {
	From    models.Stage
	To      models.Stage
	Reason  string
	Allowed []models.Stage
}

func (e *InvalidTransitionError) Error() string {
	names := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		names[i] = string(s)
	}
	return fmt.Sprintf("invalid transition %s -> %s (%s); allowed: [%s]",
		e.From, e.To, e.Reason, strings.Join(names, ", "))
}

// Reason policy rules.
const (
	ReasonMissing = "reason_required"
	ReasonTooLong = "reason_too_long"
)

// ReasonPolicyError rejects a transition whose reason breaks the policy:
// missing for a stage that demands one, or longer than the limit.
type ReasonPolicyError struct {
	To   models.Stage
	Rule string
}

func (e *ReasonPolicyError) Error() string {
	if e.Rule == ReasonTooLong {
		return fmt.Sprintf("transition to %s: reason is longer than %d characters", e.To, maxReasonLength)
	}
	return fmt.Sprintf("transition to %s: reason is required", e.To)
}

// ConcurrencyConflictError means the lead kept changing under us until the
// attempts ran out. The client should re-fetch and retry.
type ConcurrencyConflictError struct {
	LeadID   int64
	Attempts int
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("lead %d: stage changed concurrently, gave up after %d attempts", e.LeadID, e.Attempts)
}

func (e *ConcurrencyConflictError) Is(target error) bool {
	return target == ErrConcurrencyConflict
}
