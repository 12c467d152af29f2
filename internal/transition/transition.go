// Package transition holds the single source of truth for legal status changes.
//
// A Rules value is built once per status domain from a table of forbidden pairs. Every pair
// not in the table is legal, including same-status updates. Rules only know about the
// locally fetched status; the backend stays the final arbiter.
package transition

import (
	"fmt"

	"github.com/jwalitptl/schoolhealth/internal/model"
	"github.com/jwalitptl/schoolhealth/pkg/errors"
)

// Status is a closed status enum.
type Status interface {
	comparable
	fmt.Stringer
	Valid() bool
}

type pair[S Status] struct {
	from, to S
}

// Rules is immutable after construction and safe for concurrent use.
type Rules[S Status] struct {
	domain      string
	forbidden   map[pair[S]]struct{}
	destructive map[S]struct{}
}

// Forbid is one row of a forbidden-transition table.
type Forbid[S Status] struct {
	From S
	To   []S
}

func NewRules[S Status](domain string, table []Forbid[S], destructive ...S) *Rules[S] {
	r := &Rules[S]{
		domain:      domain,
		forbidden:   make(map[pair[S]]struct{}),
		destructive: make(map[S]struct{}, len(destructive)),
	}
	for _, row := range table {
		for _, to := range row.To {
			r.forbidden[pair[S]{row.From, to}] = struct{}{}
		}
	}
	for _, s := range destructive {
		r.destructive[s] = struct{}{}
	}
	return r
}

func (r *Rules[S]) Domain() string { return r.domain }

// IsValidTransition reports whether moving from current to target is allowed.
// Statuses outside the enum domain are never valid.
func (r *Rules[S]) IsValidTransition(current, target S) bool {
	if !current.Valid() || !target.Valid() {
		return false
	}
	_, bad := r.forbidden[pair[S]{current, target}]
	return !bad
}

// Check is IsValidTransition with a user-facing error.
func (r *Rules[S]) Check(current, target S) error {
	if !target.Valid() {
		return errors.Validation(fmt.Sprintf("unknown %s status %q", r.domain, target.String()))
	}
	if !r.IsValidTransition(current, target) {
		return errors.InvalidTransition(current, target)
	}
	return nil
}

// Destructive reports whether target needs an explicit confirmation before it is sent.
func (r *Rules[S]) Destructive(target S) bool {
	_, ok := r.destructive[target]
	return ok
}

var (
	// Confirmation governs the nurse's overall disposition of a submission.
	Confirmation = NewRules("confirmation", []Forbid[model.ConfirmationStatus]{
		{From: model.ConfirmationCompleted, To: []model.ConfirmationStatus{model.ConfirmationCancelled}},
		{From: model.ConfirmationCancelled, To: []model.ConfirmationStatus{model.ConfirmationProcessing, model.ConfirmationCompleted}},
	}, model.ConfirmationCancelled)

	// Schedule governs individual schedule slots. A rejected slot may be reopened or
	// dispensed; only a dispensed one can no longer be rejected.
	Schedule = NewRules("schedule", []Forbid[model.ScheduleStatus]{
		{From: model.ScheduleDispensed, To: []model.ScheduleStatus{model.ScheduleRejected}},
	}, model.ScheduleRejected)

	// Batch governs vaccination and health-check batch approvals, with the same shape
	// as Schedule: a completed batch cannot be rejected.
	Batch = NewRules("batch", []Forbid[model.BatchStatus]{
		{From: model.BatchCompleted, To: []model.BatchStatus{model.BatchRejected}},
	}, model.BatchRejected)
)
