package transition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/schoolhealth/internal/model"
	"github.com/jwalitptl/schoolhealth/pkg/errors"
)

func TestConfirmationRules_FullDomain(t *testing.T) {
	forbidden := map[[2]model.ConfirmationStatus]bool{
		{model.ConfirmationCompleted, model.ConfirmationCancelled}:  true,
		{model.ConfirmationCancelled, model.ConfirmationProcessing}: true,
		{model.ConfirmationCancelled, model.ConfirmationCompleted}:  true,
	}

	for _, from := range model.ConfirmationStatuses {
		for _, to := range model.ConfirmationStatuses {
			want := !forbidden[[2]model.ConfirmationStatus{from, to}]
			assert.Equal(t, want, Confirmation.IsValidTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestScheduleRules_FullDomain(t *testing.T) {
	forbidden := map[[2]model.ScheduleStatus]bool{
		{model.ScheduleDispensed, model.ScheduleRejected}: true,
	}

	for _, from := range model.ScheduleStatuses {
		for _, to := range model.ScheduleStatuses {
			want := !forbidden[[2]model.ScheduleStatus{from, to}]
			assert.Equal(t, want, Schedule.IsValidTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestBatchRules_FullDomain(t *testing.T) {
	forbidden := map[[2]model.BatchStatus]bool{
		{model.BatchCompleted, model.BatchRejected}: true,
	}

	for _, from := range model.BatchStatuses {
		for _, to := range model.BatchStatuses {
			want := !forbidden[[2]model.BatchStatus{from, to}]
			assert.Equal(t, want, Batch.IsValidTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestScheduleRules_CorrectionsAllowed(t *testing.T) {
	assert.True(t, Schedule.IsValidTransition(model.ScheduleRejected, model.ScheduleAwaitingPickup))
	assert.True(t, Schedule.IsValidTransition(model.ScheduleRejected, model.ScheduleDispensed))
	assert.True(t, Schedule.IsValidTransition(model.ScheduleDispensed, model.ScheduleAwaitingPickup))
	assert.True(t, Batch.IsValidTransition(model.BatchRejected, model.BatchPending))
	assert.False(t, Batch.IsValidTransition(model.BatchCompleted, model.BatchRejected))
}

func TestIsValidTransition_Pure(t *testing.T) {
	for i := 0; i < 3; i++ {
		assert.False(t, Schedule.IsValidTransition(model.ScheduleDispensed, model.ScheduleRejected))
		assert.True(t, Schedule.IsValidTransition(model.ScheduleAwaitingPickup, model.ScheduleDispensed))
	}
}

func TestIsValidTransition_UnknownStatus(t *testing.T) {
	assert.False(t, Confirmation.IsValidTransition(model.ConfirmationProcessing, model.ConfirmationStatus("Done")))
	assert.False(t, Confirmation.IsValidTransition(model.ConfirmationStatus(""), model.ConfirmationCompleted))
}

func TestCheck_Message(t *testing.T) {
	err := Confirmation.Check(model.ConfirmationCompleted, model.ConfirmationCancelled)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidTransition))
	assert.Equal(t, "cannot move from Completed to Cancelled", err.Error())

	assert.NoError(t, Confirmation.Check(model.ConfirmationProcessing, model.ConfirmationCancelled))
	assert.NoError(t, Confirmation.Check(model.ConfirmationCompleted, model.ConfirmationCompleted))
}

func TestDestructive(t *testing.T) {
	assert.True(t, Confirmation.Destructive(model.ConfirmationCancelled))
	assert.False(t, Confirmation.Destructive(model.ConfirmationCompleted))
	assert.True(t, Schedule.Destructive(model.ScheduleRejected))
	assert.False(t, Schedule.Destructive(model.ScheduleDispensed))
	assert.True(t, Batch.Destructive(model.BatchRejected))
}
