package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"equipahub-backend/internal/platform/apperr"
)

func TestCan(t *testing.T) {
	tests := []struct {
		role   Role
		action Action
		want   bool
	}{
		{RoleCoordinator, ActionRequestApprove, true},
		{RoleTechnician, ActionRequestApprove, false},
		{RoleLecturer, ActionRequestReject, false},
		{RoleTechnician, ActionLoanConfirmPickup, true},
		{RoleSecretary, ActionLoanConfirmPickup, false},
		{RoleTechnician, ActionRequestConfirmPickup, true},
		{RoleCoordinator, ActionRequestConfirmPickup, false},
		{RoleLecturer, ActionReservationCreate, true},
		{RoleLecturer, ActionReservationCancelAny, false},
		{RoleLecturer, ActionLoanCreateForUser, false},
		{RoleTechnician, Action("loan.teleport"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.action), func(t *testing.T) {
			assert.Equal(t, tt.want, Can(tt.role, tt.action))
		})
	}
}

func TestAuthorize(t *testing.T) {
	assert.NoError(t, Authorize(Actor{ID: "u1", Role: RoleCoordinator}, ActionRequestApprove))

	err := Authorize(Actor{ID: "u1", Role: RoleLecturer}, ActionRequestApprove)
	assert.True(t, apperr.IsCode(err, apperr.CodePermissionDenied))

	err = Authorize(Actor{Role: RoleCoordinator}, ActionRequestApprove)
	assert.True(t, apperr.IsCode(err, apperr.CodePermissionDenied))
}

func TestEveryActionHasARole(t *testing.T) {
	for action, roles := range capabilities {
		assert.NotEmpty(t, roles, action)
		for _, r := range roles {
			assert.True(t, r.Valid(), "%s grants unknown role %q", action, r)
		}
	}
}
