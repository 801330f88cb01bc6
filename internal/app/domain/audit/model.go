package audit

import "time"

// Outcome is the lifecycle state of an audit event. Events are written
// PENDING before the mutation executes and completed afterwards.
type Outcome string

const (
	OutcomePending Outcome = "PENDING"
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
)

// Event is an immutable, denormalised record of who did what to which
// entity. Context fields (RCName, FiscalYear) are copied at write time so
// the trail survives renames and deletions.
type Event struct {
	ID          string     `json:"id"`
	OccurredAt  time.Time  `json:"occurred_at"`
	UserID      string     `json:"user_id"`
	Username    string     `json:"username"`
	Action      string     `json:"action"`
	EntityType  string     `json:"entity_type"`
	EntityID    string     `json:"entity_id,omitempty"`
	RCID        string     `json:"rc_id,omitempty"`
	RCName      string     `json:"rc_name,omitempty"`
	FiscalYear  string     `json:"fiscal_year,omitempty"`
	Detail      string     `json:"detail,omitempty"`
	Outcome     Outcome    `json:"outcome"`
	Error       string     `json:"error,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
