package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fathima-sithara/placement-service/internal/auth"
	"github.com/fathima-sithara/placement-service/internal/metrics"
	"github.com/fathima-sithara/placement-service/internal/models"
	"github.com/fathima-sithara/placement-service/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Gate is the single choke point for authenticated requests.
type Gate struct {
	repo   repository.AccountRepository
	tokens *auth.TokenManager
	log    *zap.Logger
}

func NewGate(repo repository.AccountRepository, tokens *auth.TokenManager, logger *zap.Logger) *Gate {
	return &Gate{repo: repo, tokens: tokens, log: logger}
}

// Authenticate resolves a bearer token to the account it was issued for.
// Tokens issued before the account's last password change carry a stale epoch and are refused.
func (g *Gate) Authenticate(ctx context.Context, bearer string) (*models.Account, error) {
	claims, err := g.tokens.Parse(bearer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	id, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed subject", ErrUnauthenticated)
	}
	a, err := g.repo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return nil, fmt.Errorf("%w: account no longer exists", ErrUnauthenticated)
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if claims.PasswordEpoch != a.PasswordEpoch() {
		return nil, fmt.Errorf("%w: token predates password change", ErrUnauthenticated)
	}
	return a, nil
}

// Authorize runs the full gate: authenticate, then CheckAccess.
func (g *Gate) Authorize(ctx context.Context, bearer string) (*Principal, error) {
	a, err := g.Authenticate(ctx, bearer)
	if err != nil {
		metrics.GateOutcomes.WithLabelValues(gateOutcome(err)).Inc()
		return nil, err
	}
	if err := CheckAccess(a); err != nil {
		metrics.GateOutcomes.WithLabelValues(gateOutcome(err)).Inc()
		return nil, err
	}
	metrics.GateOutcomes.WithLabelValues("authorized").Inc()
	return NewPrincipal(a), nil
}

// CheckAccess applies the gate rules to a resolved account, in order: superadmin
// bypass, email verification, then approval status.
func CheckAccess(a *models.Account) error {
	if a.IsSuperadmin() {
		return nil
	}
	if !a.IsVerified {
		return ErrEmailNotVerified
	}
	switch a.ApprovalStatus {
	case models.ApprovalApproved:
		return nil
	case models.ApprovalRejected:
		return ErrAccountRejected
	}
	return ErrApprovalPending
}

// CanReview reports whether reviewer may decide on target. A superadmin reviews any
// non-superadmin account; a TPO reviews students of their own institute.
func CanReview(reviewer *Principal, target *models.Account) error {
	if reviewer == nil || reviewer.Account == nil {
		return ErrUnauthenticated
	}
	switch reviewer.Role {
	case models.RoleSuperadmin:
		return nil
	case models.RoleTPO:
		own := strings.TrimSpace(reviewer.Account.Institute())
		theirs := strings.TrimSpace(target.Institute())
		if target.Role == models.RoleStudent && own != "" && strings.EqualFold(own, theirs) {
			return nil
		}
	}
	return ErrForbidden
}

func gateOutcome(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrEmailNotVerified):
		return "email_not_verified"
	case errors.Is(err, ErrApprovalPending):
		return "approval_pending"
	case errors.Is(err, ErrAccountRejected):
		return "account_rejected"
	}
	return "error"
}
