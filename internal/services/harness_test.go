package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fathima-sithara/placement-service/internal/auth"
	"github.com/fathima-sithara/placement-service/internal/crypto"
	"github.com/fathima-sithara/placement-service/internal/models"
	"github.com/fathima-sithara/placement-service/internal/notifier"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "s3cret-passw0rd"

type harness struct {
	repo      *fakeAccountRepo
	notify    *fakeDispatcher
	tokens    *auth.TokenManager
	hasher    crypto.PasswordHasher
	accounts  *Accounts
	creds     *Credentials
	approvals *Approvals
	gate      *Gate

	mu  sync.Mutex
	now time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		repo:   newFakeRepo(),
		notify: &fakeDispatcher{},
		hasher: crypto.NewBcrypt(bcrypt.MinCost),
		now:    time.Now().UTC().Truncate(time.Second),
	}
	tokens, err := auth.NewHMACManager("0123456789abcdef0123456789abcdef", "placement-service", time.Hour)
	require.NoError(t, err)
	h.tokens = tokens.WithClock(h.clock)

	log := zap.NewNop()
	h.creds = NewCredentials(h.repo, h.hasher, h.tokens, h.notify, DefaultPolicy(), log)
	h.creds.now = h.clock
	h.accounts = NewAccounts(h.repo, h.hasher, h.creds, DefaultPolicy(), log)
	h.accounts.now = h.clock
	h.approvals = NewApprovals(h.repo, h.notify, log)
	h.approvals.now = h.clock
	h.gate = NewGate(h.repo, h.tokens, log)
	return h
}

func (h *harness) clock() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

func (h *harness) advance(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = h.now.Add(d)
}

func (h *harness) register(t *testing.T, email string, role models.Role, profile models.ProfileInput) *models.Account {
	t.Helper()
	res, err := h.accounts.Register(context.Background(), RegisterInput{
		Email:    email,
		Password: testPassword,
		Role:     role,
		Profile:  profile,
	})
	require.NoError(t, err)
	return res.Account
}

func (h *harness) registerStudent(t *testing.T, email, institute string) *models.Account {
	t.Helper()
	return h.register(t, email, models.RoleStudent, models.ProfileInput{
		Student: &models.StudentProfile{Name: "Student " + email, Institute: institute},
	})
}

func (h *harness) lastCode(t *testing.T, email string) string {
	t.Helper()
	h.notify.mu.Lock()
	defer h.notify.mu.Unlock()
	for i := len(h.notify.sent) - 1; i >= 0; i-- {
		n := h.notify.sent[i]
		if n.Kind == notifier.KindVerificationOTP && n.Email == models.NormalizeEmail(email) {
			return n.Code
		}
	}
	t.Fatalf("no verification code sent to %s", email)
	return ""
}

func (h *harness) verify(t *testing.T, email string) {
	t.Helper()
	_, err := h.creds.ConfirmVerificationOTP(context.Background(), email, h.lastCode(t, email))
	require.NoError(t, err)
}

func (h *harness) login(t *testing.T, email, password string) string {
	t.Helper()
	res, err := h.creds.Login(context.Background(), email, password)
	require.NoError(t, err)
	return res.AccessToken
}

// seed stores an account directly, already verified and approved.
func (h *harness) seed(t *testing.T, role models.Role, profile models.ProfileInput) *Principal {
	t.Helper()
	hash, err := h.hasher.Hash(testPassword)
	require.NoError(t, err)
	a, err := models.NewAccount(primitive.NewObjectID().Hex()+"@staff.test", hash, role, "", profile, h.clock())
	require.NoError(t, err)
	a.IsVerified = true
	a.ApprovalStatus = models.ApprovalApproved
	h.repo.put(a)
	return NewPrincipal(a)
}

func (h *harness) superadmin(t *testing.T) *Principal {
	return h.seed(t, models.RoleSuperadmin, models.ProfileInput{})
}

func (h *harness) tpo(t *testing.T, institute string) *Principal {
	return h.seed(t, models.RoleTPO, models.ProfileInput{TPO: &models.TPOProfile{Name: "Officer", Institute: institute}})
}
