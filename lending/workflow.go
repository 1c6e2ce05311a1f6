/*
workflow.go - Approval state machine

PURPOSE:
  A closed, enumerable edge table governs every status change:
  (current state, action, actor role) → next state. Nothing advances a
  loan by any other path, with one exception: a SuperAdmin override,
  which bypasses the table but is itself audited and fenced off from
  post-disbursement states.

STATE CHART:
  pending ──approve(hod)──▶ hod_approved ──approve(hr)──▶ approved
     │                          │                            │
     │ reject(hod)              │ reject(hr)                 │ disburse
     ▼                          ▼                            ▼
  hod_rejected              hr_rejected                  disbursed ──▶ active ──▶ completed

  forward re-routes to the next approver without deciding.
  cancelled is reachable from any pre-disbursement state.

AUDIT:
  Every transition appends exactly one ChangeEntry with Field "status"
  and appends nothing to the money ledger; transactions are reserved for
  money movement.
*/
package lending

import (
	"time"
)

// =============================================================================
// EDGE TABLE
// =============================================================================

type edge struct {
	from   Status
	action Action
	role   Role
}

// transitions is the complete set of legal workflow edges. Sub- and
// super-admins may stand in for either approval gate, mirroring the
// department hierarchy: HOD clears the first gate, HR
// (or the final authority) clears the second and finalizes.
var transitions = map[edge]Status{
	// HOD gate
	{StatusPending, ActionApprove, RoleHOD}: StatusHODApproved,
	{StatusPending, ActionReject, RoleHOD}:  StatusHODRejected,
	{StatusPending, ActionForward, RoleHOD}: StatusHODApproved,

	// HR gate
	{StatusHODApproved, ActionApprove, RoleHR}: StatusApproved,
	{StatusHODApproved, ActionReject, RoleHR}:  StatusHRRejected,
	{StatusHODApproved, ActionForward, RoleHR}: StatusHRApproved,

	// Final authority (when HR deferred)
	{StatusHRApproved, ActionApprove, RoleHR}: StatusApproved,
	{StatusHRApproved, ActionReject, RoleHR}:  StatusRejected,
}

// cancellable lists the pre-disbursement states from which the applicant
// or an admin may withdraw the request.
var cancellable = map[Status]bool{
	StatusPending:     true,
	StatusHODApproved: true,
	StatusHRApproved:  true,
	StatusApproved:    true,
}

// actingRole collapses the admin roles onto the gate they are clearing:
// a sub/super admin processing a pending loan acts as the HOD gate, and
// as the HR gate anywhere later.
func actingRole(current Status, r Role) Role {
	if r != RoleSubAdmin && r != RoleSuperAdmin {
		return r
	}
	if current == StatusPending {
		return RoleHOD
	}
	return RoleHR
}

// NextStatus resolves the edge table without mutating anything.
// It returns the target state, or an IllegalTransitionError when the
// edge does not exist.
func NextStatus(current Status, action Action, role Role) (Status, error) {
	if action == ActionCancel {
		if cancellable[current] {
			return StatusCancelled, nil
		}
		return "", &IllegalTransitionError{From: current, Action: action, Role: role}
	}
	if next, ok := transitions[edge{current, action, actingRole(current, role)}]; ok {
		return next, nil
	}
	return "", &IllegalTransitionError{From: current, Action: action, Role: role}
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// ApplyAction advances the loan along the edge table and records the
// status change in the audit trail. The comment is optional. The loan is
// mutated in place; callers pass a clone and persist on success.
func ApplyAction(loan *Loan, action Action, actor Actor, comment string, at time.Time) error {
	next, err := NextStatus(loan.Status, action, actor.Role)
	if err != nil {
		return err
	}

	recordChange(loan, "status", string(loan.Status), string(next), actor, comment, at)
	loan.Status = next
	return nil
}

// OverrideStatus lets a SuperAdmin set the status directly, bypassing the
// edge table. Both the current and the target state must be
// pre-disbursement: once money has moved, the frozen loan config and the
// ledger would become inconsistent with any rewound state. A reason is
// mandatory and the override is recorded like any other status change.
func OverrideStatus(loan *Loan, target Status, actor Actor, reason string, at time.Time) error {
	if actor.Role != RoleSuperAdmin {
		return ErrNotAuthorized
	}
	if reason == "" {
		return ErrReasonRequired
	}
	if loan.IsDisbursed() {
		return ErrIllegalState
	}
	switch target {
	case StatusDisbursed, StatusActive, StatusCompleted:
		return ErrIllegalState
	case StatusPending, StatusHODApproved, StatusHODRejected, StatusHRApproved,
		StatusHRRejected, StatusApproved, StatusRejected, StatusCancelled:
		// allowed
	default:
		return ErrIllegalState
	}
	if target == loan.Status {
		return nil
	}

	recordChange(loan, "status", string(loan.Status), string(target), actor, reason, at)
	loan.Status = target
	return nil
}

// PendingStatusesForRole returns the states from which the given role has
// at least one outgoing edge, i.e. the loans that sit in that role's
// approval queue.
func PendingStatusesForRole(role Role) []Status {
	switch role {
	case RoleHOD:
		return []Status{StatusPending}
	case RoleHR:
		return []Status{StatusHODApproved, StatusHRApproved}
	case RoleSubAdmin, RoleSuperAdmin:
		return []Status{StatusPending, StatusHODApproved, StatusHRApproved}
	}
	return nil
}
