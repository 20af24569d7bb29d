package services

import (
	"errors"

	"github.com/fathima-sithara/placement-service/internal/models"
	"github.com/fathima-sithara/placement-service/internal/repository"
)

var (
	ErrValidation           = models.ErrValidation
	ErrMissingRequiredField = models.ErrMissingRequiredField
	ErrInvalidTransition    = models.ErrInvalidTransition

	ErrDuplicateEmail      = repository.ErrDuplicateEmail
	ErrDuplicateRollNumber = repository.ErrDuplicateRollNumber
	ErrAccountNotFound     = repository.ErrAccountNotFound

	ErrExpiredCode        = errors.New("verification code has expired")
	ErrCodeMismatch       = errors.New("verification code does not match")
	ErrExpiredToken       = errors.New("password reset token has expired")
	ErrTokenMismatch      = errors.New("password reset token does not match")
	ErrAlreadyVerified    = errors.New("email already verified")
	ErrInvalidCredentials = errors.New("invalid email or password")

	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrEmailNotVerified = errors.New("email not verified")
	ErrApprovalPending  = errors.New("account approval pending")
	ErrAccountRejected  = errors.New("account rejected")
	ErrForbidden        = errors.New("forbidden")
)
