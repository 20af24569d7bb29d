package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrValidation           = errors.New("validation error")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrInvalidTransition    = errors.New("invalid approval transition")
)

// Role is the account discriminant. It is fixed at creation.
type Role string

const (
	RoleStudent    Role = "student"
	RoleCompany    Role = "company"
	RoleTPO        Role = "tpo"
	RoleSuperadmin Role = "superadmin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleCompany, RoleTPO, RoleSuperadmin:
		return true
	}
	return false
}

// DefaultLabel is the display name used when an account has no name of its own.
func (r Role) DefaultLabel() string {
	switch r {
	case RoleStudent:
		return "Student"
	case RoleCompany:
		return "Company"
	case RoleTPO:
		return "TPO"
	case RoleSuperadmin:
		return "Super Admin"
	}
	return "User"
}

// ApprovalStatus is the single stored lifecycle field.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "Pending"
	ApprovalApproved ApprovalStatus = "Approved"
	ApprovalRejected ApprovalStatus = "Rejected"
)

// AccountStatus is the coarse label derived from ApprovalStatus. It is never persisted.
type AccountStatus string

const (
	StatusPending  AccountStatus = "pending"
	StatusActive   AccountStatus = "active"
	StatusRejected AccountStatus = "rejected"
)

// OneTimeCode is a pending email verification code. Only the hash is stored.
// Attempts counts wrong guesses against this code.
type OneTimeCode struct {
	CodeHash  string    `bson:"code_hash"`
	ExpiresAt time.Time `bson:"expires_at"`
	Attempts  int       `bson:"attempts"`
}

func (c *OneTimeCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// ResetToken is a pending password reset token. Only the hash is stored.
type ResetToken struct {
	TokenHash string    `bson:"token_hash"`
	ExpiresAt time.Time `bson:"expires_at"`
}

func (t *ResetToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Account is the sole identity record of the portal.
type Account struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string             `bson:"email" json:"email"`
	Name         string             `bson:"name,omitempty" json:"name,omitempty"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	Role         Role               `bson:"role" json:"role"`

	IsVerified           bool         `bson:"is_verified" json:"is_verified"`
	EmailVerificationOTP *OneTimeCode `bson:"email_verification_otp,omitempty" json:"-"`

	ApprovalStatus     ApprovalStatus `bson:"approval_status" json:"approval_status"`
	PasswordResetToken *ResetToken    `bson:"password_reset_token,omitempty" json:"-"`

	Student *StudentProfile `bson:"student,omitempty" json:"student,omitempty"`
	Company *CompanyProfile `bson:"company,omitempty" json:"company,omitempty"`
	TPO     *TPOProfile     `bson:"tpo,omitempty" json:"tpo,omitempty"`

	ApprovedAt      *time.Time          `bson:"approved_at,omitempty" json:"approved_at,omitempty"`
	ApprovedBy      *primitive.ObjectID `bson:"approved_by,omitempty" json:"approved_by,omitempty"`
	RejectedAt      *time.Time          `bson:"rejected_at,omitempty" json:"rejected_at,omitempty"`
	RejectedBy      *primitive.ObjectID `bson:"rejected_by,omitempty" json:"rejected_by,omitempty"`
	RejectionReason string              `bson:"rejection_reason,omitempty" json:"rejection_reason,omitempty"`

	LastLogin         *time.Time `bson:"last_login,omitempty" json:"last_login,omitempty"`
	PasswordChangedAt *time.Time `bson:"password_changed_at,omitempty" json:"-"`
	CreatedAt         time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `bson:"updated_at" json:"updated_at"`
}

// NormalizeEmail is applied before every store and lookup so the unique index is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewAccount builds a fresh Pending, unverified account. The profile must match the role.
func NewAccount(email, passwordHash string, role Role, name string, profile ProfileInput, now time.Time) (*Account, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	profile, err := ValidateProfile(role, profile)
	if err != nil {
		return nil, err
	}
	return &Account{
		ID:             primitive.NewObjectID(),
		Email:          NormalizeEmail(email),
		Name:           strings.TrimSpace(name),
		PasswordHash:   passwordHash,
		Role:           role,
		ApprovalStatus: ApprovalPending,
		Student:        profile.Student,
		Company:        profile.Company,
		TPO:            profile.TPO,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Status derives the coarse account label from ApprovalStatus.
func (a *Account) Status() AccountStatus {
	switch a.ApprovalStatus {
	case ApprovalApproved:
		return StatusActive
	case ApprovalRejected:
		return StatusRejected
	}
	return StatusPending
}

func (a *Account) IsSuperadmin() bool {
	return a.Role == RoleSuperadmin
}

// Institute returns the institute of a student or TPO account, or "" for other roles.
func (a *Account) Institute() string {
	switch {
	case a.Role == RoleStudent && a.Student != nil:
		return a.Student.Institute
	case a.Role == RoleTPO && a.TPO != nil:
		return a.TPO.Institute
	}
	return ""
}

// DisplayName resolves the role-specific name, then the generic name, then the role label.
func (a *Account) DisplayName() string {
	var specific string
	switch a.Role {
	case RoleStudent:
		if a.Student != nil {
			specific = a.Student.Name
		}
	case RoleCompany:
		if a.Company != nil {
			specific = a.Company.CompanyName
		}
	case RoleTPO:
		if a.TPO != nil {
			specific = a.TPO.Name
		}
	}
	if s := strings.TrimSpace(specific); s != "" {
		return s
	}
	if s := strings.TrimSpace(a.Name); s != "" {
		return s
	}
	return a.Role.DefaultLabel()
}

// PasswordEpoch identifies the current password in unix milliseconds, matching the
// precision of stored timestamps. It is 0 until the password is first changed.
func (a *Account) PasswordEpoch() int64 {
	if a.PasswordChangedAt == nil {
		return 0
	}
	return a.PasswordChangedAt.UnixMilli()
}
