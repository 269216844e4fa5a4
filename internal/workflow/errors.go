package workflow

import (
	"fmt"
	"strings"
)

// NotFoundError reports a referenced entity id that does not exist.
type NotFoundError struct {
	Entity Entity
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// ConflictError reports an entity that exists but violates a uniqueness or
// relational precondition.
type ConflictError struct {
	Entity Entity
	ID     string
	Reason string
}

func (e *ConflictError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s conflict: %s", e.Entity, e.Reason)
	}
	return fmt.Sprintf("%s %s conflict: %s", e.Entity, e.ID, e.Reason)
}

// ValidationError reports an inactive related entity or a payload that fails
// semantic checks.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidTransitionError reports a requested status that is not a successor of
// the current one.
type InvalidTransitionError struct {
	Entity  Entity
	From    string
	To      string
	Allowed []string
}

func (e *InvalidTransitionError) Error() string {
	allowed := "none"
	if len(e.Allowed) > 0 {
		allowed = strings.Join(e.Allowed, ", ")
	}
	return fmt.Sprintf("%s: cannot change status from %s to %s (allowed: %s)", e.Entity, e.From, e.To, allowed)
}

// ForbiddenError reports an operation that the entity's current status does not permit.
type ForbiddenError struct {
	Entity Entity
	ID     string
	Status string
	Action string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("%s %s: cannot %s while %s", e.Entity, e.ID, e.Action, e.Status)
}
