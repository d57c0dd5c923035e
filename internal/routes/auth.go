package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/veil-auth/veil_auth/internal/authn"
	"github.com/veil-auth/veil_auth/internal/session"
)

// RegisterAuthRoutes wires the public authentication endpoints.
func RegisterAuthRoutes(r fiber.Router, h *authn.Handler, sessions *session.Manager) {
	group := r.Group("/auth")
	group.Post("/enroll", h.Enroll)
	group.Post("/change-pin", h.ChangePIN)
	group.Post("/biometric", h.Biometric)
	group.Post("/verify-pin", h.VerifyPIN)
	group.Post("/toggle", h.Toggle)

	r.Get("/profile/:subject", h.Profile)
	r.Get("/session/:subject", h.SessionStatus(sessions))
	r.Post("/session/:subject/activity", h.Activity)
}
