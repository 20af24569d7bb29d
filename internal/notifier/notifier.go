package notifier

import (
	"context"
	"errors"
	"time"
)

// Kind names a lifecycle event that someone should hear about.
type Kind string

const (
	KindVerificationOTP Kind = "account.verification_otp"
	KindPasswordReset   Kind = "account.password_reset"
	KindAccountApproved Kind = "account.approved"
	KindAccountRejected Kind = "account.rejected"
)

// Notification is the payload handed to a dispatcher. Code and Token hold plaintext
// secrets and are only set for the kinds that deliver them.
type Notification struct {
	Kind       Kind       `json:"kind"`
	AccountID  string     `json:"account_id"`
	Email      string     `json:"email"`
	Name       string     `json:"name"`
	Role       string     `json:"role"`
	Code       string     `json:"code,omitempty"`
	Token      string     `json:"token,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// Dispatcher delivers notifications. Callers treat delivery as fire-and-forget.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

// Fanout sends to every dispatcher and joins their errors.
type Fanout []Dispatcher

func (f Fanout) Dispatch(ctx context.Context, n Notification) error {
	var errs []error
	for _, d := range f {
		if err := d.Dispatch(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
