package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fathima-sithara/placement-service/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrDuplicateEmail      = errors.New("email already registered")
	ErrDuplicateRollNumber = errors.New("roll number already registered")
	// ErrConditionFailed means a conditional update matched no document.
	ErrConditionFailed = errors.New("conditional update matched no account")
)

// ListFilter narrows the review queue.
type ListFilter struct {
	Status    models.ApprovalStatus
	Roles     []models.Role
	Institute string // matched case-insensitively against student.institute
	Limit     int64
	Offset    int64
}

// AccountRepository persists accounts. Every state change that depends on the current
// state is a single conditional update.
type AccountRepository interface {
	Create(ctx context.Context, a *models.Account) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	List(ctx context.Context, f ListFilter) ([]*models.Account, error)

	SetVerificationOTP(ctx context.Context, id primitive.ObjectID, otp models.OneTimeCode) error
	ConsumeVerificationOTP(ctx context.Context, id primitive.ObjectID, codeHash string, now time.Time) (*models.Account, error)
	ClearVerificationOTP(ctx context.Context, id primitive.ObjectID, codeHash string) error
	// RecordVerificationFailure counts a wrong guess against the pending code and
	// returns the new count. ErrConditionFailed means the code was replaced or consumed.
	RecordVerificationFailure(ctx context.Context, id primitive.ObjectID, codeHash string) (int, error)

	SetResetToken(ctx context.Context, id primitive.ObjectID, token models.ResetToken) error
	ConsumeResetToken(ctx context.Context, id primitive.ObjectID, tokenHash, passwordHash string, now time.Time) error
	ClearResetToken(ctx context.Context, id primitive.ObjectID, tokenHash string) error

	UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string, now time.Time) error
	UpdateProfile(ctx context.Context, id primitive.ObjectID, name string, profile models.ProfileInput, now time.Time) (*models.Account, error)
	TouchLastLogin(ctx context.Context, id primitive.ObjectID, now time.Time) error

	Transition(ctx context.Context, id primitive.ObjectID, d models.Decision) (*models.Account, error)
	PurgeExpiredSecrets(ctx context.Context, now time.Time) (int64, error)
}
