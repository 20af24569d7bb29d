package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/fathima-sithara/placement-service/internal/models"
	"github.com/fathima-sithara/placement-service/internal/services"
	"github.com/gofiber/fiber/v2"
)

const (
	principalKey = "principal"
	accountKey   = "account"
)

// Authorizer is the subset of services.Gate used by the HTTP layer.
type Authorizer interface {
	Authenticate(ctx context.Context, bearer string) (*models.Account, error)
	Authorize(ctx context.Context, bearer string) (*services.Principal, error)
}

// RequireAuth runs the full authorization gate and stores the principal.
func RequireAuth(gate Authorizer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := bearerToken(c)
		if err != nil {
			return err
		}
		p, err := gate.Authorize(c.UserContext(), token)
		if err != nil {
			return err
		}
		c.Locals(principalKey, p)
		c.Locals(accountKey, p.Account)
		return c.Next()
	}
}

// RequireToken only authenticates. Used by endpoints that must answer for accounts
// the gate would still refuse, like the status check.
func RequireToken(gate Authorizer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := bearerToken(c)
		if err != nil {
			return err
		}
		a, err := gate.Authenticate(c.UserContext(), token)
		if err != nil {
			return err
		}
		c.Locals(accountKey, a)
		return c.Next()
	}
}

// RequireRoles must run after RequireAuth.
func RequireRoles(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := PrincipalFrom(c)
		if p == nil {
			return services.ErrUnauthenticated
		}
		for _, r := range roles {
			if p.Role == r {
				return c.Next()
			}
		}
		return fmt.Errorf("%w: role %s may not access this resource", services.ErrForbidden, p.Role)
	}
}

func PrincipalFrom(c *fiber.Ctx) *services.Principal {
	p, _ := c.Locals(principalKey).(*services.Principal)
	return p
}

func AccountFrom(c *fiber.Ctx) *models.Account {
	a, _ := c.Locals(accountKey).(*models.Account)
	return a
}

func bearerToken(c *fiber.Ctx) (string, error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return "", fmt.Errorf("%w: missing authorization header", services.ErrUnauthenticated)
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", fmt.Errorf("%w: invalid authorization header", services.ErrUnauthenticated)
	}
	return strings.TrimSpace(parts[1]), nil
}
