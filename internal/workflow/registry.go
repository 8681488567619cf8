package workflow

import (
	"fmt"

	"leadflow/internal/models"
)

// Допустимые переходы стадий лида.
var defaultTransitions = map[models.Stage][]models.Stage{
	models.StageNew: {
		models.StageQualifying, models.StageDisqualified, models.StageUnsubscribed,
	},
	models.StageQualifying: {
		models.StageHotEngaged, models.StageWarmNurturing, models.StageColdArchived,
		models.StageDisqualified, models.StageUnsubscribed,
	},
	models.StageHotEngaged: {
		models.StageMeetingScheduled, models.StageProposalSent, models.StageWarmNurturing,
		models.StageClosedLost, models.StageUnsubscribed,
	},
	models.StageWarmNurturing: {
		models.StageHotEngaged, models.StageMeetingScheduled, models.StageColdArchived,
		models.StageClosedLost, models.StageUnsubscribed,
	},
	models.StageColdArchived: {
		models.StageQualifying, models.StageWarmNurturing, models.StageClosedLost, models.StageUnsubscribed,
	},
	models.StageMeetingScheduled: {
		models.StageDiscoveryComplete, models.StageHotEngaged, models.StageWarmNurturing,
		models.StageClosedLost, models.StageUnsubscribed,
	},
	models.StageDiscoveryComplete: {
		models.StageProposalSent, models.StageWarmNurturing, models.StageClosedLost, models.StageUnsubscribed,
	},
	models.StageProposalSent: {
		models.StageNegotiation, models.StageContractStage, models.StageClosedWon,
		models.StageClosedLost, models.StageUnsubscribed,
	},
	models.StageNegotiation: {
		models.StageContractStage, models.StageProposalSent, models.StageClosedWon,
		models.StageClosedLost, models.StageUnsubscribed,
	},
	models.StageContractStage: {
		models.StageClosedWon, models.StageClosedLost, models.StageNegotiation,
	},
	// финальные стадии
	models.StageClosedWon:    {},
	models.StageClosedLost:   {},
	models.StageDisqualified: {},
	models.StageUnsubscribed: {},
}

// Reopening a closed lead is a separate transition class and never a graph edge.
// CLOSED_WON and UNSUBSCRIBED are never reopened.
var defaultReactivations = map[models.Stage][]models.Stage{
	models.StageClosedLost:   {models.StageQualifying, models.StageWarmNurturing},
	models.StageDisqualified: {models.StageQualifying},
}

// Registry is the immutable stage graph. It is safe for concurrent use without locking.
type Registry struct {
	edges        map[models.Stage][]models.Stage
	reactivation map[models.Stage][]models.Stage
	reactivate   bool
}

type RegistryOption func(*Registry)

// WithReactivation enables the reactivation class of transitions.
func WithReactivation(enabled bool) RegistryOption {
	return func(r *Registry) { r.reactivate = enabled }
}

// NewRegistry builds the default pipeline graph.
func NewRegistry(opts ...RegistryOption) *Registry {
	r, err := newRegistry(defaultTransitions, defaultReactivations, opts...)
	if err != nil {
		// the default tables are covered by tests
		panic(err)
	}
	return r
}

func newRegistry(edges, reactivation map[models.Stage][]models.Stage, opts ...RegistryOption) (*Registry, error) {
	r := &Registry{
		edges:        make(map[models.Stage][]models.Stage, len(edges)),
		reactivation: make(map[models.Stage][]models.Stage, len(reactivation)),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, st := range models.Stages {
		nexts, ok := edges[st]
		if !ok {
			return nil, fmt.Errorf("stage %s has no transition entry", st)
		}
		for _, to := range nexts {
			if !to.Valid() {
				return nil, fmt.Errorf("stage %s: edge to unknown stage %q", st, to)
			}
		}
		if isTerminal(st) && len(nexts) > 0 {
			return nil, fmt.Errorf("terminal stage %s must not have outgoing edges", st)
		}
		r.edges[st] = append([]models.Stage(nil), nexts...)
	}
	if len(edges) != len(models.Stages) {
		return nil, fmt.Errorf("transition table has %d entries, expected %d", len(edges), len(models.Stages))
	}
	for from, targets := range reactivation {
		if !isTerminal(from) {
			return nil, fmt.Errorf("reactivation from non-terminal stage %s", from)
		}
		for _, to := range targets {
			if !to.Valid() || isTerminal(to) {
				return nil, fmt.Errorf("reactivation %s -> %q: target must be an open stage", from, to)
			}
		}
		r.reactivation[from] = append([]models.Stage(nil), targets...)
	}
	return r, nil
}

func isTerminal(st models.Stage) bool {
	switch st {
	case models.StageClosedWon, models.StageClosedLost, models.StageDisqualified, models.StageUnsubscribed:
		return true
	}
	return false
}

// AllStages returns every stage in pipeline order.
func (r *Registry) AllStages() []models.Stage {
	return append([]models.Stage(nil), models.Stages...)
}

func (r *Registry) IsTerminal(st models.Stage) bool {
	return isTerminal(st)
}

// AllowedTransitions returns a copy of the regular edges out of st.
func (r *Registry) AllowedTransitions(st models.Stage) ([]models.Stage, error) {
	nexts, ok := r.edges[st]
	if !ok {
		return nil, &models.UnknownStageError{Value: string(st)}
	}
	return append([]models.Stage{}, nexts...), nil
}

// ReactivationEnabled reports whether closed leads may be reopened at all.
func (r *Registry) ReactivationEnabled() bool { return r.reactivate }

// ReactivationTargets returns the stages a closed lead may be reopened into,
// or nothing when reactivation is disabled.
func (r *Registry) ReactivationTargets(st models.Stage) ([]models.Stage, error) {
	if !st.Valid() {
		return nil, &models.UnknownStageError{Value: string(st)}
	}
	if !r.reactivate {
		return []models.Stage{}, nil
	}
	return append([]models.Stage{}, r.reactivation[st]...), nil
}
