package services

import (
	"context"
	"errors"
	"testing"

	"github.com/fathima-sithara/placement-service/internal/crypto"
	"github.com/fathima-sithara/placement-service/internal/models"
	"github.com/fathima-sithara/placement-service/internal/notifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterCreatesPendingUnverifiedAccount(t *testing.T) {
	roles := map[models.Role]models.ProfileInput{
		models.RoleStudent: {Student: &models.StudentProfile{Name: "Alice", Institute: "NIT Calicut", RollNumber: "B21CS001"}},
		models.RoleCompany: {Company: &models.CompanyProfile{CompanyName: "Acme"}},
		models.RoleTPO:     {TPO: &models.TPOProfile{Name: "Ravi", Institute: "NIT Calicut"}},
	}
	for role, profile := range roles {
		t.Run(string(role), func(t *testing.T) {
			h := newHarness(t)
			res, err := h.accounts.Register(context.Background(), RegisterInput{
				Email: "user@example.com", Password: testPassword, Role: role, Profile: profile,
			})
			require.NoError(t, err)

			stored := h.repo.get(res.Account.ID)
			assert.Equal(t, models.ApprovalPending, stored.ApprovalStatus)
			assert.False(t, stored.IsVerified)
			assert.NotEqual(t, testPassword, stored.PasswordHash)
			ok, err := h.hasher.Verify(testPassword, stored.PasswordHash)
			require.NoError(t, err)
			assert.True(t, ok)

			require.NotNil(t, stored.EmailVerificationOTP)
			assert.True(t, res.Delivery.Sent)
			n, ok := h.notify.last(notifier.KindVerificationOTP)
			require.True(t, ok)
			assert.Len(t, n.Code, crypto.OTPLength)
			assert.NotEqual(t, n.Code, stored.EmailVerificationOTP.CodeHash)
			assert.Equal(t, h.clock().Add(DefaultPolicy().OTPTTL), stored.EmailVerificationOTP.ExpiresAt)
		})
	}
}

func TestRegisterDuplicateEmailIgnoresCase(t *testing.T) {
	h := newHarness(t)
	h.registerStudent(t, "alice@example.com", "NIT")

	_, err := h.accounts.Register(context.Background(), RegisterInput{
		Email:    "ALICE@Example.com",
		Password: testPassword,
		Role:     models.RoleCompany,
		Profile:  models.ProfileInput{Company: &models.CompanyProfile{CompanyName: "Acme"}},
	})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestRegisterDuplicateRollNumber(t *testing.T) {
	h := newHarness(t)
	profile := func() models.ProfileInput {
		return models.ProfileInput{Student: &models.StudentProfile{Name: "S", Institute: "NIT", RollNumber: "B21CS001"}}
	}
	h.register(t, "one@example.com", models.RoleStudent, profile())

	_, err := h.accounts.Register(context.Background(), RegisterInput{
		Email: "two@example.com", Password: testPassword, Role: models.RoleStudent, Profile: profile(),
	})
	assert.ErrorIs(t, err, ErrDuplicateRollNumber)

	// Absent roll numbers never collide.
	h.registerStudent(t, "three@example.com", "NIT")
	h.registerStudent(t, "four@example.com", "NIT")
}

func TestRegisterValidation(t *testing.T) {
	company := models.ProfileInput{Company: &models.CompanyProfile{CompanyName: "Acme"}}
	tests := []struct {
		name    string
		in      RegisterInput
		wantErr error
	}{
		{"malformed email", RegisterInput{Email: "not-an-email", Password: testPassword, Role: models.RoleCompany, Profile: company}, ErrValidation},
		{"short password", RegisterInput{Email: "a@b.co", Password: "short", Role: models.RoleCompany, Profile: company}, ErrValidation},
		{"superadmin", RegisterInput{Email: "a@b.co", Password: testPassword, Role: models.RoleSuperadmin}, ErrValidation},
		{"unknown role", RegisterInput{Email: "a@b.co", Password: testPassword, Role: "alumni"}, ErrValidation},
		{"missing company name", RegisterInput{Email: "a@b.co", Password: testPassword, Role: models.RoleCompany,
			Profile: models.ProfileInput{Company: &models.CompanyProfile{}}}, ErrMissingRequiredField},
		{"foreign variant", RegisterInput{Email: "a@b.co", Password: testPassword, Role: models.RoleCompany,
			Profile: models.ProfileInput{
				Company: &models.CompanyProfile{CompanyName: "Acme"},
				Student: &models.StudentProfile{Name: "x", Institute: "y"},
			}}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.accounts.Register(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, h.repo.accounts)
		})
	}
}

func TestRegisterDeliveryFailureKeepsAccountAndCode(t *testing.T) {
	h := newHarness(t)
	h.notify.err = errors.New("smtp down")

	res, err := h.accounts.Register(context.Background(), RegisterInput{
		Email: "alice@example.com", Password: testPassword, Role: models.RoleStudent,
		Profile: models.ProfileInput{Student: &models.StudentProfile{Name: "Alice", Institute: "NIT"}},
	})
	require.NoError(t, err)
	assert.False(t, res.Delivery.Sent)
	assert.NotEmpty(t, res.Delivery.Warning)
	assert.NotNil(t, h.repo.get(res.Account.ID).EmailVerificationOTP)
}

func TestUpdateProfile(t *testing.T) {
	h := newHarness(t)
	a := h.registerStudent(t, "alice@example.com", "NIT Calicut")

	updated, err := h.accounts.UpdateProfile(context.Background(), a.ID, "Ally", models.ProfileInput{
		Student: &models.StudentProfile{Name: "Alice K", Department: "CSE", CGPA: 8.7},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ally", updated.Name)
	assert.Equal(t, "CSE", updated.Student.Department)
	assert.Equal(t, "NIT Calicut", updated.Student.Institute)

	_, err = h.accounts.UpdateProfile(context.Background(), a.ID, "", models.ProfileInput{
		Company: &models.CompanyProfile{CompanyName: "Acme"},
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.accounts.UpdateProfile(context.Background(), a.ID, " ", models.ProfileInput{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateProfilePartialPatch(t *testing.T) {
	h := newHarness(t)
	a := h.register(t, "alice@example.com", models.RoleStudent, models.ProfileInput{
		Student: &models.StudentProfile{
			Name: "Alice", RollNumber: "R1", Institute: "NIT Calicut", Department: "CSE", Skills: []string{"go"},
		},
	})

	_, err := h.accounts.UpdateProfile(context.Background(), a.ID, "", models.ProfileInput{
		Student: &models.StudentProfile{Name: "Alice K"},
	})
	require.NoError(t, err)
	stored := h.repo.get(a.ID)
	assert.Equal(t, "Alice K", stored.Student.Name)
	assert.Equal(t, "R1", stored.Student.RollNumber)
	assert.Equal(t, "CSE", stored.Student.Department)
	assert.Equal(t, []string{"go"}, stored.Student.Skills)

	_, err = h.accounts.UpdateProfile(context.Background(), a.ID, "", models.ProfileInput{
		Student: &models.StudentProfile{Department: "ECE"},
	})
	require.NoError(t, err)
	stored = h.repo.get(a.ID)
	assert.Equal(t, "Alice K", stored.Student.Name)
	assert.Equal(t, "ECE", stored.Student.Department)
	assert.Equal(t, "R1", stored.Student.RollNumber)
}

func TestEnsureSuperadmin(t *testing.T) {
	h := newHarness(t)

	a, created, err := h.accounts.EnsureSuperadmin(context.Background(), "Root@Portal.test", testPassword)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.RoleSuperadmin, a.Role)
	assert.Equal(t, "root@portal.test", a.Email)

	again, created, err := h.accounts.EnsureSuperadmin(context.Background(), "root@portal.test", testPassword)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, a.ID, again.ID)

	h.registerStudent(t, "alice@example.com", "NIT")
	_, _, err = h.accounts.EnsureSuperadmin(context.Background(), "alice@example.com", testPassword)
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}
