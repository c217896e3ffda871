// Package lifecycle is the single authority over a complaint's status,
// priority and assignee. Guards are pure functions that evaluate
// preconditions without side effects; the Machine applies allowed changes.
package lifecycle

import (
	"complaintdesk/backend/internal/apperr"
	"complaintdesk/backend/internal/models"
	"fmt"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
	// Kind is the apperr sentinel describing why the guard refused.
	Kind error
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s: %w", r.Reason, r.Kind)
}

func allow() GuardResult { return GuardResult{Allowed: true} }

func deny(kind error, format string, args ...any) GuardResult {
	return GuardResult{Allowed: false, Reason: fmt.Sprintf(format, args...), Kind: kind}
}

// Policy holds the product decisions the transition table depends on.
type Policy struct {
	// ClosedTerminal forbids reopening a Closed complaint.
	ClosedTerminal bool
}

// transitions lists the statuses reachable from each status. Staying in
// the same status is always allowed and handled separately.
var transitions = map[models.Status][]models.Status{
	models.StatusOpen:       {models.StatusInProgress, models.StatusResolved, models.StatusClosed},
	models.StatusInProgress: {models.StatusOpen, models.StatusResolved, models.StatusClosed},
	models.StatusResolved:   {models.StatusClosed, models.StatusOpen},
	models.StatusClosed:     {models.StatusOpen},
}

// StatusContext provides context for status change guards.
type StatusContext struct {
	ComplaintID string
	Current     models.Status
	Next        models.Status
	ActorRole   models.Role
	Policy      Policy
}

// CanSetStatus evaluates whether a status change is allowed.
// Rules:
// - Actor must be staff or admin
// - Next must be a known status
// - Next must be reachable from Current (Closed reopens unless the policy says otherwise)
func CanSetStatus(ctx StatusContext) GuardResult {
	if !ctx.ActorRole.IsStaff() {
		return deny(apperr.ErrPermissionDenied, "role %q cannot change the status of complaint %s", ctx.ActorRole, ctx.ComplaintID)
	}
	if !ctx.Next.Valid() {
		return deny(apperr.ErrInvalidEnumValue, "unknown status %q", ctx.Next)
	}
	if ctx.Current == ctx.Next {
		return allow()
	}
	if ctx.Current == models.StatusClosed && ctx.Policy.ClosedTerminal {
		return deny(apperr.ErrInvalidTransition, "complaint %s is closed", ctx.ComplaintID)
	}
	for _, s := range transitions[ctx.Current] {
		if s == ctx.Next {
			return allow()
		}
	}
	return deny(apperr.ErrInvalidTransition, "cannot move complaint %s from %s to %s", ctx.ComplaintID, ctx.Current, ctx.Next)
}

// PriorityContext provides context for priority change guards.
type PriorityContext struct {
	ComplaintID string
	Next        models.Priority
	ActorRole   models.Role
}

// CanSetPriority evaluates whether a priority change is allowed.
// Priority may move in any direction.
func CanSetPriority(ctx PriorityContext) GuardResult {
	if !ctx.ActorRole.IsStaff() {
		return deny(apperr.ErrPermissionDenied, "role %q cannot change the priority of complaint %s", ctx.ActorRole, ctx.ComplaintID)
	}
	if !ctx.Next.Valid() {
		return deny(apperr.ErrInvalidEnumValue, "unknown priority %q", ctx.Next)
	}
	return allow()
}

// AssignContext provides context for assignment guards.
type AssignContext struct {
	ComplaintID string
	AssigneeID  string
	ActorRole   models.Role
}

// CanAssign evaluates whether a complaint can be handed to AssigneeID.
// Eligibility of the assignee is checked by the assignment engine, which
// can see the role table.
func CanAssign(ctx AssignContext) GuardResult {
	if !ctx.ActorRole.IsStaff() {
		return deny(apperr.ErrPermissionDenied, "role %q cannot assign complaint %s", ctx.ActorRole, ctx.ComplaintID)
	}
	if ctx.AssigneeID == "" {
		return deny(apperr.ErrInvalidAssignee, "no assignee given for complaint %s", ctx.ComplaintID)
	}
	return allow()
}

// ViewContext provides context for read and comment access.
type ViewContext struct {
	ComplaintID string
	OwnerID     string
	ActorID     string
	ActorRole   models.Role
}

// CanView evaluates whether an actor may see a complaint and its thread.
// Students see their own complaints only; staff and admins see all.
func CanView(ctx ViewContext) GuardResult {
	if ctx.ActorRole.IsStaff() || (ctx.ActorID != "" && ctx.ActorID == ctx.OwnerID) {
		return allow()
	}
	return deny(apperr.ErrPermissionDenied, "user %s may not access complaint %s", ctx.ActorID, ctx.ComplaintID)
}
