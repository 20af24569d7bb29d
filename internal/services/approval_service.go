package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fathima-sithara/placement-service/internal/metrics"
	"github.com/fathima-sithara/placement-service/internal/models"
	"github.com/fathima-sithara/placement-service/internal/notifier"
	"github.com/fathima-sithara/placement-service/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
	decisionWarning = "the decision was saved but the account holder could not be notified"
)

// Approvals drives the Pending -> Approved | Rejected state machine.
type Approvals struct {
	repo   repository.AccountRepository
	notify notifier.Dispatcher
	log    *zap.Logger
	now    func() time.Time
}

var _ ApprovalService = (*Approvals)(nil)

func NewApprovals(repo repository.AccountRepository, notify notifier.Dispatcher, logger *zap.Logger) *Approvals {
	return &Approvals{
		repo:   repo,
		notify: notify,
		log:    logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Approve activates a Pending account. The account's email must be verified.
func (s *Approvals) Approve(ctx context.Context, reviewer *Principal, id primitive.ObjectID) (*DecisionResult, error) {
	return s.decide(ctx, reviewer, id, models.ApprovalApproved, "")
}

// Reject closes a Pending account. A reason is required for the audit trail.
func (s *Approvals) Reject(ctx context.Context, reviewer *Principal, id primitive.ObjectID, reason string) (*DecisionResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", ErrValidation)
	}
	return s.decide(ctx, reviewer, id, models.ApprovalRejected, reason)
}

func (s *Approvals) decide(ctx context.Context, reviewer *Principal, id primitive.ObjectID, to models.ApprovalStatus, reason string) (*DecisionResult, error) {
	target, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CanReview(reviewer, target); err != nil {
		return nil, err
	}
	if target.IsSuperadmin() {
		err := fmt.Errorf("%w: superadmin accounts are not subject to approval", ErrInvalidTransition)
		s.anomaly(reviewer, target, to, err)
		return nil, err
	}

	d := models.Decision{
		To:              to,
		ReviewerID:      reviewer.ID,
		Reason:          reason,
		At:              s.now(),
		RequireVerified: to == models.ApprovalApproved,
	}
	probe := *target
	if err := probe.Apply(d); err != nil {
		s.anomaly(reviewer, target, to, err)
		return nil, err
	}

	updated, err := s.repo.Transition(ctx, id, d)
	if errors.Is(err, repository.ErrConditionFailed) {
		// Lost a race with another decision; report against the state that won.
		latest, ferr := s.repo.FindByID(ctx, id)
		if ferr != nil {
			return nil, ferr
		}
		err = latest.Apply(d)
		if err == nil {
			err = ErrInvalidTransition
		}
		s.anomaly(reviewer, latest, to, err)
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("apply decision: %w", err)
	}

	metrics.Transitions.WithLabelValues(string(to), "ok").Inc()
	s.log.Info("approval decision",
		zap.String("account_id", id.Hex()),
		zap.String("to", string(to)),
		zap.String("reviewer_id", reviewer.ID.Hex()),
		zap.String("reviewer_role", string(reviewer.Role)),
	)

	kind := notifier.KindAccountApproved
	if to == models.ApprovalRejected {
		kind = notifier.KindAccountRejected
	}
	delivery := deliver(ctx, s.notify, s.log, notifier.Notification{
		Kind:       kind,
		AccountID:  updated.ID.Hex(),
		Email:      updated.Email,
		Name:       updated.DisplayName(),
		Role:       string(updated.Role),
		Reason:     reason,
		OccurredAt: d.At,
	})
	if !delivery.Sent {
		delivery.Warning = decisionWarning
	}
	return &DecisionResult{Account: updated, Delivery: delivery}, nil
}

// anomaly records a refused transition. These indicate client or reviewer misuse.
func (s *Approvals) anomaly(reviewer *Principal, target *models.Account, to models.ApprovalStatus, err error) {
	metrics.Transitions.WithLabelValues(string(to), "invalid").Inc()
	s.log.Warn("invalid approval transition",
		zap.String("account_id", target.ID.Hex()),
		zap.String("from", string(target.ApprovalStatus)),
		zap.String("to", string(to)),
		zap.String("reviewer_id", reviewer.ID.Hex()),
		zap.Error(err),
	)
}

// ListPending returns the review queue visible to the reviewer. A TPO only sees
// students of their own institute.
func (s *Approvals) ListPending(ctx context.Context, reviewer *Principal, q PendingQuery) ([]*models.Account, error) {
	if reviewer == nil || reviewer.Account == nil {
		return nil, ErrUnauthenticated
	}
	f := repository.ListFilter{Status: models.ApprovalPending, Offset: q.Offset}
	switch {
	case q.Limit <= 0:
		f.Limit = defaultPageSize
	case q.Limit > maxPageSize:
		f.Limit = maxPageSize
	default:
		f.Limit = q.Limit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if q.Role != "" && (!q.Role.Valid() || q.Role == models.RoleSuperadmin) {
		return nil, fmt.Errorf("%w: cannot list role %q", ErrValidation, q.Role)
	}

	switch reviewer.Role {
	case models.RoleSuperadmin:
		if q.Role != "" {
			f.Roles = []models.Role{q.Role}
		} else {
			f.Roles = []models.Role{models.RoleStudent, models.RoleCompany, models.RoleTPO}
		}
	case models.RoleTPO:
		if q.Role != "" && q.Role != models.RoleStudent {
			return nil, ErrForbidden
		}
		inst := strings.TrimSpace(reviewer.Account.Institute())
		if inst == "" {
			return nil, ErrForbidden
		}
		f.Roles = []models.Role{models.RoleStudent}
		f.Institute = inst
	default:
		return nil, ErrForbidden
	}
	return s.repo.List(ctx, f)
}

// Get returns an account the reviewer is allowed to inspect.
func (s *Approvals) Get(ctx context.Context, reviewer *Principal, id primitive.ObjectID) (*models.Account, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if reviewer != nil && reviewer.Role == models.RoleSuperadmin {
		return a, nil
	}
	if err := CanReview(reviewer, a); err != nil {
		return nil, err
	}
	return a, nil
}
