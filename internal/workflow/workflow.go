// Package workflow holds the status transition tables shared by the labyard
// entity services, together with the error taxonomy they report.
package workflow

import (
	"slices"
	"time"

	"github.com/zulandar/labyard/internal/models"
)

// Entity names a workflow-bearing entity type.
type Entity string

const (
	Requirement Entity = "requirement"
	Sample      Entity = "sample"
	Analysis    Entity = "analysis"
	Storage     Entity = "storage"
	QREvent     Entity = "qr_event"

	User         Entity = "user"
	Plant        Entity = "plant"
	AnalysisType Entity = "analysis_type"
	Attachment   Entity = "attachment"
)

// Transitions maps each entity to its status graph. Terminal states map to an
// empty successor list.
var Transitions = map[Entity]map[string][]string{
	Requirement: {
		models.RequirementDraft:      {models.RequirementSubmitted, models.RequirementCancelled},
		models.RequirementSubmitted:  {models.RequirementInProgress, models.RequirementCancelled},
		models.RequirementInProgress: {models.RequirementCompleted, models.RequirementCancelled},
		models.RequirementCompleted:  {},
		models.RequirementCancelled:  {},
	},
	Sample: {
		models.SampleExpected:         {models.SampleReceived, models.SampleDeleted},
		models.SampleReceived:         {models.SampleInAnalysis, models.SampleStored, models.SampleDeleted},
		models.SampleInAnalysis:       {models.SampleAnalysisComplete, models.SampleDeleted},
		models.SampleAnalysisComplete: {models.SampleStored, models.SampleDeleted},
		models.SampleStored:           {models.SampleDeleted},
		models.SampleDeleted:          {},
	},
	Analysis: {
		models.AnalysisPending:    {models.AnalysisInProgress, models.AnalysisCancelled},
		models.AnalysisInProgress: {models.AnalysisCompleted, models.AnalysisCancelled},
		models.AnalysisCompleted:  {},
		models.AnalysisCancelled:  {},
	},
}

// Successors returns the statuses reachable in one step from status.
func Successors(entity Entity, status string) []string {
	return Transitions[entity][status]
}

// Known reports whether status belongs to the entity's status set.
func Known(entity Entity, status string) bool {
	_, ok := Transitions[entity][status]
	return ok
}

// IsTerminal reports whether status has no successors.
func IsTerminal(entity Entity, status string) bool {
	succ, ok := Transitions[entity][status]
	return ok && len(succ) == 0
}

// CanTransition reports whether to is an allowed successor of from.
func CanTransition(entity Entity, from, to string) bool {
	return slices.Contains(Transitions[entity][from], to)
}

// Check returns an *InvalidTransitionError when from → to is not allowed.
func Check(entity Entity, from, to string) error {
	if CanTransition(entity, from, to) {
		return nil
	}
	return &InvalidTransitionError{
		Entity:  entity,
		From:    from,
		To:      to,
		Allowed: Successors(entity, from),
	}
}

// Stamp resolves a transition timestamp. An explicit override always wins,
// otherwise an already-set value is kept and only an unset one becomes now.
func Stamp(current, override *time.Time, now time.Time) *time.Time {
	if override != nil {
		t := *override
		return &t
	}
	if current != nil {
		return current
	}
	return &now
}
