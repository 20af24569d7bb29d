package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CanTransition reports whether the approval state machine allows from -> to.
// Pending is the only non-terminal state.
func CanTransition(from, to ApprovalStatus) bool {
	return from == ApprovalPending && (to == ApprovalApproved || to == ApprovalRejected)
}

// Decision is a reviewer's verdict on a Pending account.
type Decision struct {
	To         ApprovalStatus
	ReviewerID primitive.ObjectID
	Reason     string
	At         time.Time
	// RequireVerified refuses the transition while the email is unverified.
	RequireVerified bool
}

// Apply moves the account to the decided state and stamps the audit fields.
func (a *Account) Apply(d Decision) error {
	if a.IsSuperadmin() {
		return fmt.Errorf("%w: superadmin accounts are not subject to approval", ErrInvalidTransition)
	}
	if !CanTransition(a.ApprovalStatus, d.To) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.ApprovalStatus, d.To)
	}
	if d.RequireVerified && !a.IsVerified {
		return fmt.Errorf("%w: email not verified", ErrInvalidTransition)
	}
	at := d.At
	reviewer := d.ReviewerID
	a.ApprovalStatus = d.To
	switch d.To {
	case ApprovalApproved:
		a.ApprovedAt = &at
		a.ApprovedBy = &reviewer
	case ApprovalRejected:
		a.RejectedAt = &at
		a.RejectedBy = &reviewer
		a.RejectionReason = d.Reason
	}
	a.UpdatedAt = at
	return nil
}
