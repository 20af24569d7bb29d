package handlers

import (
	"fmt"

	"github.com/fathima-sithara/placement-service/internal/services"
	"github.com/fathima-sithara/placement-service/internal/utils"
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Handler struct {
	accounts  services.AccountService
	creds     services.CredentialService
	approvals services.ApprovalService
	log       *zap.Logger
}

func NewHandler(accounts services.AccountService, creds services.CredentialService, approvals services.ApprovalService, logger *zap.Logger) *Handler {
	return &Handler{accounts: accounts, creds: creds, approvals: approvals, log: logger}
}

// Access describes the gate outcome so clients can route the user.
type Access struct {
	Allowed bool   `json:"allowed"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func accessFrom(err error) Access {
	if err == nil {
		return Access{Allowed: true}
	}
	_, code, msg := utils.Classify(err)
	return Access{Code: code, Message: msg}
}

func accountID(c *fiber.Ctx) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: malformed account id", services.ErrValidation)
	}
	return id, nil
}
