package appointment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppointmentStateMachine(t *testing.T) {
	tests := []struct {
		from    Status
		allowed []Status
	}{
		{StatusPending, []Status{StatusConfirmed, StatusCancelled}},
		{StatusConfirmed, []Status{StatusCompleted, StatusCancelled, StatusNoShow}},
		{StatusCompleted, nil},
		{StatusCancelled, nil},
		{StatusNoShow, nil},
	}

	all := []Status{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow}

	for _, tt := range tests {
		a := &Appointment{Status: tt.from}
		for _, next := range all {
			want := false
			for _, s := range tt.allowed {
				if s == next {
					want = true
				}
			}
			assert.Equal(t, want, a.CanTransitionTo(next), "%s -> %s", tt.from, next)
		}
	}
}

func TestAppointmentTypeIsValid(t *testing.T) {
	for _, typ := range []AppointmentType{TypeConsultation, TypeLesson, TypeAssessment, TypeFollowUp} {
		assert.True(t, typ.IsValid())
	}
	assert.False(t, AppointmentType("surgery").IsValid())
	assert.False(t, AppointmentType("").IsValid())
}
