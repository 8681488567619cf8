package workflow

import (
	"slices"
	"strings"
	"unicode/utf8"

	"leadflow/internal/models"
)

const maxReasonLength = 1000

// TransitionClass separates ordinary graph edges from reopening a closed lead.
type TransitionClass int

const (
	ClassRegular TransitionClass = iota
	ClassReactivation
)

func (c TransitionClass) String() string {
	if c == ClassReactivation {
		return "reactivation"
	}
	return "regular"
}

// TransitionRequest is what the validator judges.
type TransitionRequest struct {
	From   models.Stage
	To     models.Stage
	Reason *string
	Class  TransitionClass
}

// TransitionIntent is an accepted request. Reason is normalized (trimmed, nil when blank).
type TransitionIntent struct {
	From   models.Stage
	To     models.Stage
	Reason *string
	Class  TransitionClass
}

// Validator decides whether a transition is legal. It does no I/O.
type Validator struct {
	registry     *Registry
	reasonStages models.StageSet
}

type ValidatorOption func(*Validator)

// WithRequiredReason makes a non-empty reason mandatory when entering any of stages.
func WithRequiredReason(stages ...models.Stage) ValidatorOption {
	return func(v *Validator) {
		for _, s := range stages {
			v.reasonStages[s] = struct{}{}
		}
	}
}

func NewValidator(registry *Registry, opts ...ValidatorOption) *Validator {
	v := &Validator{registry: registry, reasonStages: models.NewStageSet()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate applies, in order: stage recognition, no self-loop, terminal lock
// (reactivation excepted), graph membership, reason policy.
func (v *Validator) Validate(req TransitionRequest) (TransitionIntent, error) {
	if !req.From.Valid() {
		return TransitionIntent{}, &models.UnknownStageError{Value: string(req.From)}
	}
	if !req.To.Valid() {
		return TransitionIntent{}, &models.UnknownStageError{Value: string(req.To)}
	}

	allowed, err := v.Allowed(req.From, req.Class)
	if err != nil {
		return TransitionIntent{}, err
	}
	reject := func(reason string) (TransitionIntent, error) {
		return TransitionIntent{}, &InvalidTransitionError{
			From: req.From, To: req.To, Reason: reason, Allowed: allowed,
		}
	}

	if req.To == req.From {
		return reject(RejectSelfTransition)
	}
	switch req.Class {
	case ClassReactivation:
		if !v.registry.IsTerminal(req.From) || !slices.Contains(allowed, req.To) {
			return reject(RejectReactivation)
		}
	default:
		if v.registry.IsTerminal(req.From) {
			return reject(RejectTerminalStage)
		}
		if !slices.Contains(allowed, req.To) {
			return reject(RejectNotAllowed)
		}
	}

	reason, err := v.checkReason(req.To, req.Reason)
	if err != nil {
		return TransitionIntent{}, err
	}
	return TransitionIntent{From: req.From, To: req.To, Reason: reason, Class: req.Class}, nil
}

// Allowed is the set of targets legal from `from` for the given class.
func (v *Validator) Allowed(from models.Stage, class TransitionClass) ([]models.Stage, error) {
	if class == ClassReactivation {
		return v.registry.ReactivationTargets(from)
	}
	return v.registry.AllowedTransitions(from)
}

func (v *Validator) checkReason(to models.Stage, reason *string) (*string, error) {
	var text string
	if reason != nil {
		text = strings.TrimSpace(*reason)
	}
	if utf8.RuneCountInString(text) > maxReasonLength {
		return nil, &ReasonPolicyError{To: to, Rule: ReasonTooLong}
	}
	if text == "" {
		if v.reasonStages.Has(to) {
			return nil, &ReasonPolicyError{To: to, Rule: ReasonMissing}
		}
		return nil, nil
	}
	return &text, nil
}
