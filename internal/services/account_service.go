package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fathima-sithara/placement-service/internal/crypto"
	"github.com/fathima-sithara/placement-service/internal/metrics"
	"github.com/fathima-sithara/placement-service/internal/models"
	"github.com/fathima-sithara/placement-service/internal/repository"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var validate = validator.New()

// Accounts owns registration and the account holder's own profile.
type Accounts struct {
	repo   repository.AccountRepository
	hasher crypto.PasswordHasher
	creds  *Credentials
	policy Policy
	log    *zap.Logger
	now    func() time.Time
}

var _ AccountService = (*Accounts)(nil)

func NewAccounts(repo repository.AccountRepository, hasher crypto.PasswordHasher, creds *Credentials, policy Policy, logger *zap.Logger) *Accounts {
	return &Accounts{
		repo:   repo,
		hasher: hasher,
		creds:  creds,
		policy: policy,
		log:    logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a Pending, unverified account and issues its first verification code.
// Superadmin accounts cannot be created this way.
func (s *Accounts) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	email := models.NormalizeEmail(in.Email)
	if err := validate.Var(email, "required,email"); err != nil {
		return nil, fmt.Errorf("%w: email is malformed", ErrValidation)
	}
	if err := s.policy.checkPassword(in.Password); err != nil {
		return nil, err
	}
	if in.Role == models.RoleSuperadmin {
		return nil, fmt.Errorf("%w: superadmin accounts cannot be registered", ErrValidation)
	}

	a, err := models.NewAccount(email, "", in.Role, in.Name, in.Profile, s.now())
	if err != nil {
		return nil, err
	}
	if a.PasswordHash, err = s.hasher.Hash(in.Password); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	metrics.Registrations.WithLabelValues(string(a.Role)).Inc()
	s.log.Info("account registered", zap.String("account_id", a.ID.Hex()), zap.String("role", string(a.Role)))

	delivery, err := s.creds.issueOTP(ctx, a)
	if err != nil {
		s.log.Error("failed to issue verification code", zap.String("account_id", a.ID.Hex()), zap.Error(err))
		delivery = Delivery{Warning: "account created but no verification code was issued; request a new one"}
	}
	return &RegisterResult{Account: a, Delivery: delivery}, nil
}

func (s *Accounts) Get(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	return s.repo.FindByID(ctx, id)
}

// UpdateProfile lets the account holder edit their name and their own profile variant.
func (s *Accounts) UpdateProfile(ctx context.Context, id primitive.ObjectID, name string, patch models.ProfileInput) (*models.Account, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var merged models.ProfileInput
	if patch.Student != nil || patch.Company != nil || patch.TPO != nil {
		if merged, err = models.MergeProfile(a, patch); err != nil {
			return nil, err
		}
	} else if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: nothing to update", ErrValidation)
	}
	return s.repo.UpdateProfile(ctx, id, name, merged, s.now())
}

// EnsureSuperadmin creates the bootstrap superadmin if the email is unused. It
// reports whether an account was created.
func (s *Accounts) EnsureSuperadmin(ctx context.Context, email, password string) (*models.Account, bool, error) {
	existing, err := s.repo.FindByEmail(ctx, email)
	if err == nil {
		if !existing.IsSuperadmin() {
			return nil, false, fmt.Errorf("%w: %s is registered as %s", ErrDuplicateEmail, existing.Email, existing.Role)
		}
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, false, err
	}

	if err := validate.Var(models.NormalizeEmail(email), "required,email"); err != nil {
		return nil, false, fmt.Errorf("%w: superadmin email is malformed", ErrValidation)
	}
	if err := s.policy.checkPassword(password); err != nil {
		return nil, false, err
	}
	a, err := models.NewAccount(email, "", models.RoleSuperadmin, "", models.ProfileInput{}, s.now())
	if err != nil {
		return nil, false, err
	}
	if a.PasswordHash, err = s.hasher.Hash(password); err != nil {
		return nil, false, err
	}
	a.IsVerified = true
	a.ApprovalStatus = models.ApprovalApproved
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, false, fmt.Errorf("create superadmin: %w", err)
	}
	s.log.Info("superadmin bootstrapped", zap.String("account_id", a.ID.Hex()))
	return a, true, nil
}
