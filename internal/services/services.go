package services

import (
	"context"
	"time"

	"github.com/fathima-sithara/placement-service/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Policy carries the tunable credential rules.
type Policy struct {
	MinPasswordLength int
	OTPTTL            time.Duration
	ResetTokenTTL     time.Duration
	// OTPMaxAttempts wrong guesses burn the pending code.
	OTPMaxAttempts int
}

func DefaultPolicy() Policy {
	return Policy{
		MinPasswordLength: 8,
		OTPTTL:            10 * time.Minute,
		ResetTokenTTL:     time.Hour,
		OTPMaxAttempts:    5,
	}
}

func (p Policy) maxOTPAttempts() int {
	if p.OTPMaxAttempts <= 0 {
		return 5
	}
	return p.OTPMaxAttempts
}

// Delivery reports the fate of a fire-and-forget notification. A non-empty
// Warning means the secret was issued but may not have reached the user.
type Delivery struct {
	Sent    bool   `json:"sent"`
	Warning string `json:"warning,omitempty"`
}

// Principal is an account that passed the authorization gate.
type Principal struct {
	Account *models.Account
	ID      primitive.ObjectID
	Role    models.Role
}

func NewPrincipal(a *models.Account) *Principal {
	return &Principal{Account: a, ID: a.ID, Role: a.Role}
}

type RegisterInput struct {
	Email    string
	Password string
	Role     models.Role
	Name     string
	Profile  models.ProfileInput
}

type RegisterResult struct {
	Account  *models.Account
	Delivery Delivery
}

// DecisionResult is an approval decision and the fate of the notification telling
// the account holder about it.
type DecisionResult struct {
	Account  *models.Account
	Delivery Delivery
}

type LoginResult struct {
	AccessToken string
	ExpiresAt   time.Time
	Account     *models.Account
	// Access is the gate outcome for the account at login time; nil means authorized.
	Access error
}

type PendingQuery struct {
	Role   models.Role
	Limit  int64
	Offset int64
}

type AccountService interface {
	Register(ctx context.Context, in RegisterInput) (*RegisterResult, error)
	Get(ctx context.Context, id primitive.ObjectID) (*models.Account, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, name string, patch models.ProfileInput) (*models.Account, error)
	EnsureSuperadmin(ctx context.Context, email, password string) (*models.Account, bool, error)
}

type CredentialService interface {
	IssueVerificationOTP(ctx context.Context, email string) (Delivery, error)
	ConfirmVerificationOTP(ctx context.Context, email, code string) (*models.Account, error)
	RequestPasswordReset(ctx context.Context, email string) (Delivery, error)
	ResetPassword(ctx context.Context, email, token, newPassword string) error
	ChangePassword(ctx context.Context, id primitive.ObjectID, current, next string) error
	Login(ctx context.Context, email, password string) (*LoginResult, error)
}

type ApprovalService interface {
	Approve(ctx context.Context, reviewer *Principal, id primitive.ObjectID) (*DecisionResult, error)
	Reject(ctx context.Context, reviewer *Principal, id primitive.ObjectID, reason string) (*DecisionResult, error)
	ListPending(ctx context.Context, reviewer *Principal, q PendingQuery) ([]*models.Account, error)
	Get(ctx context.Context, reviewer *Principal, id primitive.ObjectID) (*models.Account, error)
}
