package alerting

import (
	"fmt"

	"pharmacy-stock-alerts/pkg/models"
)

// ValidationError rejects malformed rule/settings input before persistence.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an operation on a nonexistent id.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// StateError reports a lifecycle transition attempted from the wrong state.
type StateError struct {
	AlertID string
	From    models.AlertStatus
	Op      string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s alert %s in state %s", e.Op, e.AlertID, e.From)
}

// ProviderError records a notification channel failure. It is carried inside
// a DispatchResult and never returned from Dispatch itself.
type ProviderError struct {
	Channel models.Channel
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("channel %s: %v", e.Channel, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// LockContentionError means an evaluator tick was skipped because a prior run
// for the same tenant is still in flight. Logged as info, not an alarm.
type LockContentionError struct {
	TenantID string
}

func (e *LockContentionError) Error() string {
	return fmt.Sprintf("evaluation already running for tenant %s", e.TenantID)
}
