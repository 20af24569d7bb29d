package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/fathima-sithara/placement-service/internal/models"
	"github.com/fathima-sithara/placement-service/internal/notifier"
	"github.com/fathima-sithara/placement-service/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeAccountRepo is an in-memory AccountRepository with the same uniqueness and
// conditional-update semantics as the Mongo implementation.
type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[primitive.ObjectID]*models.Account
	failNext error
}

var _ repository.AccountRepository = (*fakeAccountRepo)(nil)

func newFakeRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: map[primitive.ObjectID]*models.Account{}}
}

func clone(a *models.Account) *models.Account {
	c := *a
	if a.EmailVerificationOTP != nil {
		otp := *a.EmailVerificationOTP
		c.EmailVerificationOTP = &otp
	}
	if a.PasswordResetToken != nil {
		rt := *a.PasswordResetToken
		c.PasswordResetToken = &rt
	}
	return &c
}

func (r *fakeAccountRepo) fail() error {
	err := r.failNext
	r.failNext = nil
	return err
}

func (r *fakeAccountRepo) Create(_ context.Context, a *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return err
	}
	a.Email = models.NormalizeEmail(a.Email)
	for _, existing := range r.accounts {
		if existing.Email == a.Email {
			return repository.ErrDuplicateEmail
		}
		if a.Student != nil && a.Student.RollNumber != "" && existing.Student != nil &&
			existing.Student.RollNumber == a.Student.RollNumber {
			return repository.ErrDuplicateRollNumber
		}
	}
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	r.accounts[a.ID] = clone(a)
	return nil
}

func (r *fakeAccountRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return nil, err
	}
	a, ok := r.accounts[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	return clone(a), nil
}

func (r *fakeAccountRepo) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return nil, err
	}
	email = models.NormalizeEmail(email)
	for _, a := range r.accounts {
		if a.Email == email {
			return clone(a), nil
		}
	}
	return nil, repository.ErrAccountNotFound
}

func (r *fakeAccountRepo) List(_ context.Context, f repository.ListFilter) ([]*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Account
	for _, a := range r.accounts {
		if f.Status != "" && a.ApprovalStatus != f.Status {
			continue
		}
		if len(f.Roles) > 0 && !containsRole(f.Roles, a.Role) {
			continue
		}
		if f.Institute != "" && (a.Student == nil || !strings.EqualFold(a.Student.Institute, f.Institute)) {
			continue
		}
		out = append(out, clone(a))
	}
	return out, nil
}

func containsRole(roles []models.Role, r models.Role) bool {
	for _, x := range roles {
		if x == r {
			return true
		}
	}
	return false
}

func (r *fakeAccountRepo) update(id primitive.ObjectID, fn func(a *models.Account) bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return err
	}
	a, ok := r.accounts[id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	if !fn(a) {
		return repository.ErrConditionFailed
	}
	return nil
}

func (r *fakeAccountRepo) SetVerificationOTP(_ context.Context, id primitive.ObjectID, otp models.OneTimeCode) error {
	return r.update(id, func(a *models.Account) bool {
		a.EmailVerificationOTP = &otp
		return true
	})
}

func (r *fakeAccountRepo) ConsumeVerificationOTP(_ context.Context, id primitive.ObjectID, codeHash string, now time.Time) (*models.Account, error) {
	var out *models.Account
	err := r.update(id, func(a *models.Account) bool {
		otp := a.EmailVerificationOTP
		if otp == nil || otp.CodeHash != codeHash || otp.Expired(now) {
			return false
		}
		a.IsVerified = true
		a.EmailVerificationOTP = nil
		a.UpdatedAt = now
		out = clone(a)
		return true
	})
	if errors.Is(err, repository.ErrAccountNotFound) {
		err = repository.ErrConditionFailed
	}
	return out, err
}

func (r *fakeAccountRepo) RecordVerificationFailure(_ context.Context, id primitive.ObjectID, codeHash string) (int, error) {
	attempts := 0
	err := r.update(id, func(a *models.Account) bool {
		if a.EmailVerificationOTP == nil || a.EmailVerificationOTP.CodeHash != codeHash {
			return false
		}
		a.EmailVerificationOTP.Attempts++
		attempts = a.EmailVerificationOTP.Attempts
		return true
	})
	if errors.Is(err, repository.ErrAccountNotFound) {
		err = repository.ErrConditionFailed
	}
	return attempts, err
}

func (r *fakeAccountRepo) ClearVerificationOTP(_ context.Context, id primitive.ObjectID, codeHash string) error {
	err := r.update(id, func(a *models.Account) bool {
		if a.EmailVerificationOTP != nil && a.EmailVerificationOTP.CodeHash == codeHash {
			a.EmailVerificationOTP = nil
		}
		return true
	})
	if errors.Is(err, repository.ErrAccountNotFound) {
		return nil
	}
	return err
}

func (r *fakeAccountRepo) SetResetToken(_ context.Context, id primitive.ObjectID, token models.ResetToken) error {
	return r.update(id, func(a *models.Account) bool {
		a.PasswordResetToken = &token
		return true
	})
}

func (r *fakeAccountRepo) ConsumeResetToken(_ context.Context, id primitive.ObjectID, tokenHash, passwordHash string, now time.Time) error {
	err := r.update(id, func(a *models.Account) bool {
		rt := a.PasswordResetToken
		if rt == nil || rt.TokenHash != tokenHash || rt.Expired(now) {
			return false
		}
		a.PasswordHash = passwordHash
		a.PasswordResetToken = nil
		a.PasswordChangedAt = &now
		return true
	})
	if errors.Is(err, repository.ErrAccountNotFound) {
		return repository.ErrConditionFailed
	}
	return err
}

func (r *fakeAccountRepo) ClearResetToken(_ context.Context, id primitive.ObjectID, tokenHash string) error {
	return r.update(id, func(a *models.Account) bool {
		if a.PasswordResetToken != nil && a.PasswordResetToken.TokenHash == tokenHash {
			a.PasswordResetToken = nil
		}
		return true
	})
}

func (r *fakeAccountRepo) UpdatePassword(_ context.Context, id primitive.ObjectID, passwordHash string, now time.Time) error {
	return r.update(id, func(a *models.Account) bool {
		a.PasswordHash = passwordHash
		a.PasswordChangedAt = &now
		a.PasswordResetToken = nil
		return true
	})
}

func (r *fakeAccountRepo) UpdateProfile(_ context.Context, id primitive.ObjectID, name string, profile models.ProfileInput, now time.Time) (*models.Account, error) {
	var out *models.Account
	err := r.update(id, func(a *models.Account) bool {
		if n := strings.TrimSpace(name); n != "" {
			a.Name = n
		}
		switch {
		case profile.Student != nil:
			a.Student = profile.Student
		case profile.Company != nil:
			a.Company = profile.Company
		case profile.TPO != nil:
			a.TPO = profile.TPO
		}
		a.UpdatedAt = now
		out = clone(a)
		return true
	})
	return out, err
}

func (r *fakeAccountRepo) TouchLastLogin(_ context.Context, id primitive.ObjectID, now time.Time) error {
	return r.update(id, func(a *models.Account) bool {
		a.LastLogin = &now
		return true
	})
}

func (r *fakeAccountRepo) Transition(_ context.Context, id primitive.ObjectID, d models.Decision) (*models.Account, error) {
	var out *models.Account
	err := r.update(id, func(a *models.Account) bool {
		if a.Apply(d) != nil {
			return false
		}
		out = clone(a)
		return true
	})
	if errors.Is(err, repository.ErrAccountNotFound) {
		err = repository.ErrConditionFailed
	}
	return out, err
}

func (r *fakeAccountRepo) PurgeExpiredSecrets(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, a := range r.accounts {
		if a.EmailVerificationOTP != nil && a.EmailVerificationOTP.Expired(now) {
			a.EmailVerificationOTP = nil
			n++
		}
		if a.PasswordResetToken != nil && a.PasswordResetToken.Expired(now) {
			a.PasswordResetToken = nil
			n++
		}
	}
	return n, nil
}

// put stores a copy of a directly, bypassing uniqueness checks.
func (r *fakeAccountRepo) put(a *models.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[a.ID] = clone(a)
}

func (r *fakeAccountRepo) get(id primitive.ObjectID) *models.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	return clone(r.accounts[id])
}

// fakeDispatcher records notifications and can be told to fail.
type fakeDispatcher struct {
	mu   sync.Mutex
	sent []notifier.Notification
	err  error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, n notifier.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, n)
	return nil
}

func (d *fakeDispatcher) last(kind notifier.Kind) (notifier.Notification, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.sent) - 1; i >= 0; i-- {
		if d.sent[i].Kind == kind {
			return d.sent[i], true
		}
	}
	return notifier.Notification{}, false
}
