package routes

import (
	"github.com/fathima-sithara/placement-service/internal/handlers"
	"github.com/fathima-sithara/placement-service/internal/middleware"
	"github.com/fathima-sithara/placement-service/internal/models"
	"github.com/gofiber/fiber/v2"
)

// Options carries the middleware the routes need. Nil limiters are skipped.
// OTPLimiter budgets emails sent per address; AttemptLimiter budgets guesses
// against a code or password per address.
type Options struct {
	Gate           middleware.Authorizer
	OTPLimiter     *middleware.RateLimiter
	AttemptLimiter *middleware.RateLimiter
	IPLimiter      *middleware.IPRateLimiter
}

func Setup(app *fiber.App, h *handlers.Handler, opts Options) {
	api := app.Group("/api/v1")

	auth := api.Group("/auth")
	if opts.IPLimiter != nil {
		auth.Use(opts.IPLimiter.Handler())
	}
	perEmail := byEmail(opts.OTPLimiter)
	attempts := byEmail(opts.AttemptLimiter)

	auth.Post("/register", perEmail, h.Register)
	auth.Post("/verify-email", attempts, h.VerifyEmail)
	auth.Post("/resend-otp", perEmail, h.ResendOTP)
	auth.Post("/login", attempts, h.Login)
	auth.Post("/forgot-password", perEmail, h.ForgotPassword)
	auth.Post("/reset-password", h.ResetPassword)
	auth.Get("/status", middleware.RequireToken(opts.Gate), h.Status)

	me := api.Group("/me", middleware.RequireAuth(opts.Gate))
	me.Get("/", h.Me)
	me.Patch("/profile", h.UpdateProfile)
	me.Post("/change-password", h.ChangePassword)

	admin := api.Group("/admin",
		middleware.RequireAuth(opts.Gate),
		middleware.RequireRoles(models.RoleTPO, models.RoleSuperadmin),
	)
	admin.Get("/accounts/pending", h.ListPending)
	admin.Get("/accounts/:id", h.GetAccount)
	admin.Post("/accounts/:id/approve", h.Approve)
	admin.Post("/accounts/:id/reject", h.Reject)
}

func byEmail(l *middleware.RateLimiter) fiber.Handler {
	if l == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return l.MiddlewareByKey(middleware.KeyByEmail)
}
