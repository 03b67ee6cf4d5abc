package record

import "fmt"

// Status is a record's position in the review pipeline lifecycle.
type Status string

const (
	StatusImported               Status = "imported"
	StatusNeedsManualPreparation Status = "needs_manual_preparation"
	StatusPrepared               Status = "prepared"
	StatusProcessed              Status = "processed"
)

// statusRank orders statuses along the pipeline. Transitions are
// forward-only: a record never moves to a lower rank.
var statusRank = map[Status]int{
	StatusImported:               1,
	StatusNeedsManualPreparation: 2,
	StatusPrepared:               3,
	StatusProcessed:              4,
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// InvalidTransitionError reports a rejected lifecycle transition.
// It is a data-integrity defect and is never silently ignored.
type InvalidTransitionError struct {
	ID   string
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("record %s: invalid transition %s -> %s", e.ID, e.From, e.To)
}

// EligibleForDedup reports whether the record may enter duplicate
// identification: only imported or prepared records qualify. Records in
// later stages are fixed context and are never reclassified.
func (r *Record) EligibleForDedup() bool {
	return r.Status == StatusImported || r.Status == StatusPrepared
}

// BeyondDedup reports whether the record has already passed duplicate
// identification and serves only as comparison context.
func (r *Record) BeyondDedup() bool {
	switch r.Status {
	case StatusImported, StatusNeedsManualPreparation, StatusPrepared:
		return false
	}
	return r.Status.Valid()
}

// Advance moves the record to newStatus, enforcing the forward-only rule.
func (r *Record) Advance(newStatus Status) error {
	from, ok := statusRank[r.Status]
	if !ok {
		return &InvalidTransitionError{ID: r.ID, From: r.Status, To: newStatus}
	}
	to, ok := statusRank[newStatus]
	if !ok || to < from {
		return &InvalidTransitionError{ID: r.ID, From: r.Status, To: newStatus}
	}
	r.Status = newStatus
	return nil
}

// ContextSet returns the records already beyond the dedup stage. They are
// compared against but never reclassified.
func ContextSet(records map[string]*Record) map[string]*Record {
	ctx := make(map[string]*Record)
	for id, r := range records {
		if r.BeyondDedup() {
			ctx[id] = r
		}
	}
	return ctx
}
