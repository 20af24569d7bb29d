package handlers

import (
	"github.com/fathima-sithara/placement-service/internal/middleware"
	"github.com/fathima-sithara/placement-service/internal/models"
	"github.com/fathima-sithara/placement-service/internal/services"
	"github.com/fathima-sithara/placement-service/internal/utils"
	"github.com/gofiber/fiber/v2"
)

type pendingQuery struct {
	Role   string `query:"role" validate:"omitempty,oneof=student company tpo"`
	Limit  int64  `query:"limit" validate:"gte=0"`
	Offset int64  `query:"offset" validate:"gte=0"`
}

func (h *Handler) ListPending(c *fiber.Ctx) error {
	var q pendingQuery
	if err := utils.ParseQuery(c, &q); err != nil {
		return err
	}
	accounts, err := h.approvals.ListPending(c.UserContext(), middleware.PrincipalFrom(c), services.PendingQuery{
		Role:   models.Role(q.Role),
		Limit:  q.Limit,
		Offset: q.Offset,
	})
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{
		"accounts": models.Views(accounts),
		"count":    len(accounts),
	})
}

func (h *Handler) GetAccount(c *fiber.Ctx) error {
	id, err := accountID(c)
	if err != nil {
		return err
	}
	a, err := h.approvals.Get(c.UserContext(), middleware.PrincipalFrom(c), id)
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, a.View())
}

func (h *Handler) Approve(c *fiber.Ctx) error {
	id, err := accountID(c)
	if err != nil {
		return err
	}
	res, err := h.approvals.Approve(c.UserContext(), middleware.PrincipalFrom(c), id)
	if err != nil {
		return err
	}
	return decisionResponse(c, res)
}

type rejectReq struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func (h *Handler) Reject(c *fiber.Ctx) error {
	id, err := accountID(c)
	if err != nil {
		return err
	}
	var req rejectReq
	if err := utils.ParseBody(c, &req); err != nil {
		return err
	}
	res, err := h.approvals.Reject(c.UserContext(), middleware.PrincipalFrom(c), id, req.Reason)
	if err != nil {
		return err
	}
	return decisionResponse(c, res)
}

func decisionResponse(c *fiber.Ctx, res *services.DecisionResult) error {
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{
		"account":  res.Account.View(),
		"delivery": res.Delivery,
	})
}
