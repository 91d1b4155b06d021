package auth

import (
	"equipahub-backend/internal/platform/apperr"
)

type Role string

const (
	RoleTechnician  Role = "technician"
	RoleLecturer    Role = "lecturer"
	RoleSecretary   Role = "secretary"
	RoleCoordinator Role = "coordinator"
)

func (r Role) Valid() bool {
	switch r {
	case RoleTechnician, RoleLecturer, RoleSecretary, RoleCoordinator:
		return true
	}
	return false
}

// Actor is the already-authenticated caller of a booking operation.
type Actor struct {
	ID   string
	Role Role
}

type Action string

const (
	ActionEquipmentRead   Action = "equipment.read"
	ActionEquipmentManage Action = "equipment.manage"

	ActionLoanRead          Action = "loan.read"
	ActionLoanCreate        Action = "loan.create"
	ActionLoanCreateForUser Action = "loan.create_for_user"
	ActionLoanConfirmPickup Action = "loan.confirm_pickup"
	ActionLoanReturn        Action = "loan.return"
	ActionLoanCancel        Action = "loan.cancel"

	ActionReservationRead      Action = "reservation.read"
	ActionReservationCreate    Action = "reservation.create"
	ActionReservationConfirm   Action = "reservation.confirm"
	ActionReservationCancel    Action = "reservation.cancel"
	ActionReservationCancelAny Action = "reservation.cancel_any"
	ActionReservationConvert   Action = "reservation.convert"

	ActionRequestRead          Action = "request.read"
	ActionRequestCreate        Action = "request.create"
	ActionRequestSetEquipment  Action = "request.set_equipment"
	ActionRequestApprove       Action = "request.approve"
	ActionRequestReject        Action = "request.reject"
	ActionRequestConfirmPickup Action = "request.confirm_pickup"

	ActionSchedulerRun     Action = "scheduler.run"
	ActionNotificationRead Action = "notification.read"
)

var everyone = []Role{RoleTechnician, RoleLecturer, RoleSecretary, RoleCoordinator}

// capabilities is the single source of truth for who may trigger which transition.
var capabilities = map[Action][]Role{
	ActionEquipmentRead:   everyone,
	ActionEquipmentManage: {RoleTechnician, RoleCoordinator},

	ActionLoanRead:          everyone,
	ActionLoanCreate:        everyone,
	ActionLoanCreateForUser: {RoleTechnician, RoleSecretary, RoleCoordinator},
	ActionLoanConfirmPickup: {RoleTechnician},
	ActionLoanReturn:        {RoleTechnician},
	ActionLoanCancel:        {RoleTechnician, RoleCoordinator},

	ActionReservationRead:      everyone,
	ActionReservationCreate:    everyone,
	ActionReservationConfirm:   {RoleTechnician, RoleCoordinator},
	ActionReservationCancel:    everyone,
	ActionReservationCancelAny: {RoleTechnician, RoleSecretary, RoleCoordinator},
	ActionReservationConvert:   {RoleTechnician},

	ActionRequestRead:          everyone,
	ActionRequestCreate:        everyone,
	ActionRequestSetEquipment:  {RoleTechnician, RoleCoordinator},
	ActionRequestApprove:       {RoleCoordinator},
	ActionRequestReject:        {RoleCoordinator},
	ActionRequestConfirmPickup: {RoleTechnician},

	ActionSchedulerRun:     {RoleTechnician, RoleCoordinator},
	ActionNotificationRead: everyone,
}

// Can reports whether role may perform action. Unknown actions are denied.
func Can(role Role, action Action) bool {
	for _, r := range capabilities[action] {
		if r == role {
			return true
		}
	}
	return false
}

// Authorize is the gate placed ahead of every booking operation.
func Authorize(a Actor, action Action) error {
	if a.ID == "" {
		return apperr.PermissionDenied("unauthenticated actor")
	}
	if !Can(a.Role, action) {
		return apperr.PermissionDenied("role %q may not %s", a.Role, action)
	}
	return nil
}
