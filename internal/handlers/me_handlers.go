package handlers

import (
	"github.com/fathima-sithara/placement-service/internal/middleware"
	"github.com/fathima-sithara/placement-service/internal/models"
	"github.com/fathima-sithara/placement-service/internal/services"
	"github.com/fathima-sithara/placement-service/internal/utils"
	"github.com/gofiber/fiber/v2"
)

func (h *Handler) Me(c *fiber.Ctx) error {
	p := middleware.PrincipalFrom(c)
	if p == nil {
		return services.ErrUnauthenticated
	}
	return utils.JSONSuccess(c, fiber.StatusOK, p.Account.View())
}

type updateProfileReq struct {
	Name    string                 `json:"name" validate:"max=120"`
	Student *models.StudentProfile `json:"student"`
	Company *models.CompanyProfile `json:"company"`
	TPO     *models.TPOProfile     `json:"tpo"`
}

func (h *Handler) UpdateProfile(c *fiber.Ctx) error {
	p := middleware.PrincipalFrom(c)
	if p == nil {
		return services.ErrUnauthenticated
	}
	var req updateProfileReq
	if err := utils.ParseBody(c, &req); err != nil {
		return err
	}
	a, err := h.accounts.UpdateProfile(c.UserContext(), p.ID, req.Name, models.ProfileInput{
		Student: req.Student,
		Company: req.Company,
		TPO:     req.TPO,
	})
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, a.View())
}

type changePasswordReq struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,nefield=CurrentPassword"`
}

func (h *Handler) ChangePassword(c *fiber.Ctx) error {
	p := middleware.PrincipalFrom(c)
	if p == nil {
		return services.ErrUnauthenticated
	}
	var req changePasswordReq
	if err := utils.ParseBody(c, &req); err != nil {
		return err
	}
	if err := h.creds.ChangePassword(c.UserContext(), p.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"message": "password changed; existing sessions have been signed out"})
}
