package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fathima-sithara/placement-service/internal/auth"
	"github.com/fathima-sithara/placement-service/internal/crypto"
	"github.com/fathima-sithara/placement-service/internal/metrics"
	"github.com/fathima-sithara/placement-service/internal/models"
	"github.com/fathima-sithara/placement-service/internal/notifier"
	"github.com/fathima-sithara/placement-service/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	maxPasswordBytes = 72 // bcrypt input limit
	deliveryTimeout  = 15 * time.Second
	deliveryWarning  = "the email could not be sent right now; request a new one in a few minutes"
)

// Credentials owns password secrecy and email-ownership proof.
type Credentials struct {
	repo   repository.AccountRepository
	hasher crypto.PasswordHasher
	tokens *auth.TokenManager
	notify notifier.Dispatcher
	policy Policy
	log    *zap.Logger
	now    func() time.Time
}

var _ CredentialService = (*Credentials)(nil)

func NewCredentials(repo repository.AccountRepository, hasher crypto.PasswordHasher, tokens *auth.TokenManager, notify notifier.Dispatcher, policy Policy, logger *zap.Logger) *Credentials {
	return &Credentials{
		repo:   repo,
		hasher: hasher,
		tokens: tokens,
		notify: notify,
		policy: policy,
		log:    logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// IssueVerificationOTP re-sends a verification code. Unknown emails succeed silently.
func (s *Credentials) IssueVerificationOTP(ctx context.Context, email string) (Delivery, error) {
	a, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return Delivery{}, nil
	}
	if err != nil {
		return Delivery{}, fmt.Errorf("find account: %w", err)
	}
	return s.issueOTP(ctx, a)
}

// issueOTP stores a fresh code, replacing any pending one, and hands the plaintext
// to the dispatcher. Delivery failure does not undo issuance.
func (s *Credentials) issueOTP(ctx context.Context, a *models.Account) (Delivery, error) {
	if a.IsVerified {
		return Delivery{}, ErrAlreadyVerified
	}
	otp, err := crypto.GenerateOTP(crypto.OTPLength)
	if err != nil {
		return Delivery{}, fmt.Errorf("generate otp: %w", err)
	}
	now := s.now()
	exp := now.Add(s.policy.OTPTTL)
	if err := s.repo.SetVerificationOTP(ctx, a.ID, models.OneTimeCode{CodeHash: otp.Hash, ExpiresAt: exp}); err != nil {
		return Delivery{}, fmt.Errorf("store otp: %w", err)
	}
	return deliver(ctx, s.notify, s.log, notifier.Notification{
		Kind:       notifier.KindVerificationOTP,
		AccountID:  a.ID.Hex(),
		Email:      a.Email,
		Name:       a.DisplayName(),
		Role:       string(a.Role),
		Code:       otp.Plain,
		ExpiresAt:  &exp,
		OccurredAt: now,
	}), nil
}

// ConfirmVerificationOTP marks the email verified. Expiry is checked before the code,
// and consumption is conditional on the stored hash so a code works exactly once.
// A code that collects OTPMaxAttempts wrong guesses is burned and must be resent.
func (s *Credentials) ConfirmVerificationOTP(ctx context.Context, email, code string) (*models.Account, error) {
	a, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrAccountNotFound) {
		metrics.Verifications.WithLabelValues("mismatch").Inc()
		return nil, ErrCodeMismatch
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}

	otp := a.EmailVerificationOTP
	if otp == nil {
		metrics.Verifications.WithLabelValues("mismatch").Inc()
		return nil, ErrCodeMismatch
	}
	now := s.now()
	if otp.Expired(now) {
		if err := s.repo.ClearVerificationOTP(ctx, a.ID, otp.CodeHash); err != nil {
			s.log.Warn("failed to clear expired otp", zap.String("account_id", a.ID.Hex()), zap.Error(err))
		}
		metrics.Verifications.WithLabelValues("expired").Inc()
		return nil, ErrExpiredCode
	}
	if otp.Attempts >= s.policy.maxOTPAttempts() {
		return nil, s.burnOTP(ctx, a, otp.CodeHash)
	}
	if !crypto.MatchSecret(code, otp.CodeHash) {
		metrics.Verifications.WithLabelValues("mismatch").Inc()
		attempts, err := s.repo.RecordVerificationFailure(ctx, a.ID, otp.CodeHash)
		switch {
		case errors.Is(err, repository.ErrConditionFailed):
		case err != nil:
			return nil, fmt.Errorf("record otp failure: %w", err)
		case attempts >= s.policy.maxOTPAttempts():
			return nil, s.burnOTP(ctx, a, otp.CodeHash)
		}
		return nil, ErrCodeMismatch
	}

	updated, err := s.repo.ConsumeVerificationOTP(ctx, a.ID, otp.CodeHash, now)
	if errors.Is(err, repository.ErrConditionFailed) {
		metrics.Verifications.WithLabelValues("mismatch").Inc()
		return nil, ErrCodeMismatch
	}
	if err != nil {
		return nil, fmt.Errorf("consume otp: %w", err)
	}
	metrics.Verifications.WithLabelValues("verified").Inc()
	s.log.Info("email verified", zap.String("account_id", a.ID.Hex()), zap.String("role", string(a.Role)))
	return updated, nil
}

func (s *Credentials) burnOTP(ctx context.Context, a *models.Account, codeHash string) error {
	if err := s.repo.ClearVerificationOTP(ctx, a.ID, codeHash); err != nil {
		s.log.Warn("failed to clear locked otp", zap.String("account_id", a.ID.Hex()), zap.Error(err))
	}
	metrics.Verifications.WithLabelValues("locked").Inc()
	s.log.Warn("verification code locked after repeated mismatches", zap.String("account_id", a.ID.Hex()))
	return fmt.Errorf("%w: too many attempts, request a new code", ErrCodeMismatch)
}

// RequestPasswordReset issues a reset token. Unknown emails succeed silently.
func (s *Credentials) RequestPasswordReset(ctx context.Context, email string) (Delivery, error) {
	a, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return Delivery{}, nil
	}
	if err != nil {
		return Delivery{}, fmt.Errorf("find account: %w", err)
	}

	token, err := crypto.GenerateToken(crypto.DefaultTokenLength)
	if err != nil {
		return Delivery{}, fmt.Errorf("generate reset token: %w", err)
	}
	now := s.now()
	exp := now.Add(s.policy.ResetTokenTTL)
	if err := s.repo.SetResetToken(ctx, a.ID, models.ResetToken{TokenHash: token.Hash, ExpiresAt: exp}); err != nil {
		return Delivery{}, fmt.Errorf("store reset token: %w", err)
	}
	return deliver(ctx, s.notify, s.log, notifier.Notification{
		Kind:       notifier.KindPasswordReset,
		AccountID:  a.ID.Hex(),
		Email:      a.Email,
		Name:       a.DisplayName(),
		Role:       string(a.Role),
		Token:      token.Plain,
		ExpiresAt:  &exp,
		OccurredAt: now,
	}), nil
}

// ResetPassword consumes a reset token and sets the new password.
func (s *Credentials) ResetPassword(ctx context.Context, email, token, newPassword string) error {
	if err := s.policy.checkPassword(newPassword); err != nil {
		return err
	}
	a, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return ErrTokenMismatch
	}
	if err != nil {
		return fmt.Errorf("find account: %w", err)
	}

	rt := a.PasswordResetToken
	if rt == nil {
		return ErrTokenMismatch
	}
	now := s.now()
	if rt.Expired(now) {
		if err := s.repo.ClearResetToken(ctx, a.ID, rt.TokenHash); err != nil {
			s.log.Warn("failed to clear expired reset token", zap.String("account_id", a.ID.Hex()), zap.Error(err))
		}
		return ErrExpiredToken
	}
	if !crypto.MatchSecret(token, rt.TokenHash) {
		return ErrTokenMismatch
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	err = s.repo.ConsumeResetToken(ctx, a.ID, rt.TokenHash, hash, now)
	if errors.Is(err, repository.ErrConditionFailed) {
		return ErrTokenMismatch
	}
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	s.log.Info("password reset", zap.String("account_id", a.ID.Hex()))
	return nil
}

func (s *Credentials) ChangePassword(ctx context.Context, id primitive.ObjectID, current, next string) error {
	if err := s.policy.checkPassword(next); err != nil {
		return err
	}
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	ok, err := s.hasher.Verify(current, a.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, id, hash, s.now())
}

// Login checks the password and issues an access token. The token is issued even
// when the gate would refuse the account; Access tells the client where to go next.
func (s *Credentials) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	a, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	ok, err := s.hasher.Verify(password, a.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	token, exp, err := s.tokens.Generate(a.ID.Hex(), string(a.Role), a.PasswordEpoch())
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.repo.TouchLastLogin(ctx, a.ID, now); err != nil {
		s.log.Warn("failed to record last login", zap.String("account_id", a.ID.Hex()), zap.Error(err))
	} else {
		a.LastLogin = &now
	}
	return &LoginResult{AccessToken: token, ExpiresAt: exp, Account: a, Access: CheckAccess(a)}, nil
}

// deliver hands n to the dispatcher on a context detached from request cancellation.
func deliver(ctx context.Context, d notifier.Dispatcher, log *zap.Logger, n notifier.Notification) Delivery {
	if d == nil {
		return Delivery{Warning: deliveryWarning}
	}
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
	defer cancel()
	if err := d.Dispatch(dctx, n); err != nil {
		metrics.NotificationFailures.WithLabelValues(string(n.Kind)).Inc()
		log.Warn("notification delivery failed",
			zap.String("kind", string(n.Kind)),
			zap.String("account_id", n.AccountID),
			zap.Error(err),
		)
		return Delivery{Warning: deliveryWarning}
	}
	return Delivery{Sent: true}
}

func (p Policy) checkPassword(pw string) error {
	if len(pw) < p.MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, p.MinPasswordLength)
	}
	if len(pw) > maxPasswordBytes {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrValidation, maxPasswordBytes)
	}
	return nil
}
