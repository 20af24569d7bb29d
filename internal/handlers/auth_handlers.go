package handlers

import (
	"time"

	"github.com/fathima-sithara/placement-service/internal/middleware"
	"github.com/fathima-sithara/placement-service/internal/models"
	"github.com/fathima-sithara/placement-service/internal/services"
	"github.com/fathima-sithara/placement-service/internal/utils"
	"github.com/gofiber/fiber/v2"
)

type registerReq struct {
	Email    string                 `json:"email" validate:"required,email"`
	Password string                 `json:"password" validate:"required"`
	Role     string                 `json:"role" validate:"required,oneof=student company tpo"`
	Name     string                 `json:"name" validate:"max=120"`
	Student  *models.StudentProfile `json:"student"`
	Company  *models.CompanyProfile `json:"company"`
	TPO      *models.TPOProfile     `json:"tpo"`
}

func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerReq
	if err := utils.ParseBody(c, &req); err != nil {
		return err
	}
	res, err := h.accounts.Register(c.UserContext(), services.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Role:     models.Role(req.Role),
		Name:     req.Name,
		Profile:  models.ProfileInput{Student: req.Student, Company: req.Company, TPO: req.TPO},
	})
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusCreated, fiber.Map{
		"account":  res.Account.View(),
		"delivery": res.Delivery,
		"message":  "registered; enter the verification code sent to your email",
	})
}

type verifyEmailReq struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,numeric,len=6"`
}

func (h *Handler) VerifyEmail(c *fiber.Ctx) error {
	var req verifyEmailReq
	if err := utils.ParseBody(c, &req); err != nil {
		return err
	}
	a, err := h.creds.ConfirmVerificationOTP(c.UserContext(), req.Email, req.OTP)
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{
		"account": a.View(),
		"access":  accessFrom(services.CheckAccess(a)),
	})
}

type emailReq struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *Handler) ResendOTP(c *fiber.Ctx) error {
	var req emailReq
	if err := utils.ParseBody(c, &req); err != nil {
		return err
	}
	d, err := h.creds.IssueVerificationOTP(c.UserContext(), req.Email)
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{
		"message":  "if the account exists and is not verified, a new code has been sent",
		"delivery": d,
	})
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResp struct {
	AccessToken string             `json:"access_token"`
	TokenType   string             `json:"token_type"`
	ExpiresAt   time.Time          `json:"expires_at"`
	Account     models.AccountView `json:"account"`
	Access      Access             `json:"access"`
}

// Login always returns the token for valid credentials; the access block tells the
// client whether protected routes will accept it yet.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginReq
	if err := utils.ParseBody(c, &req); err != nil {
		return err
	}
	res, err := h.creds.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, loginResp{
		AccessToken: res.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   res.ExpiresAt,
		Account:     res.Account.View(),
		Access:      accessFrom(res.Access),
	})
}

func (h *Handler) ForgotPassword(c *fiber.Ctx) error {
	var req emailReq
	if err := utils.ParseBody(c, &req); err != nil {
		return err
	}
	d, err := h.creds.RequestPasswordReset(c.UserContext(), req.Email)
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{
		"message":  "if the account exists, a reset link has been sent",
		"delivery": d,
	})
}

type resetPasswordReq struct {
	Email       string `json:"email" validate:"required,email"`
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

func (h *Handler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordReq
	if err := utils.ParseBody(c, &req); err != nil {
		return err
	}
	if err := h.creds.ResetPassword(c.UserContext(), req.Email, req.Token, req.NewPassword); err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"message": "password updated; log in with the new password"})
}

// Status reports the gate outcome for the token holder without enforcing it.
func (h *Handler) Status(c *fiber.Ctx) error {
	a := middleware.AccountFrom(c)
	if a == nil {
		return services.ErrUnauthenticated
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{
		"role":            a.Role,
		"is_verified":     a.IsVerified,
		"approval_status": a.ApprovalStatus,
		"account_status":  a.Status(),
		"access":          accessFrom(services.CheckAccess(a)),
	})
}
