package authn

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/veil-auth/veil_auth/internal/credential"
	"github.com/veil-auth/veil_auth/internal/lock"
	"github.com/veil-auth/veil_auth/internal/ratelimit"
	"github.com/veil-auth/veil_auth/internal/session"
)

// Handler exposes the authentication endpoints.
type Handler struct {
	svc   *Service
	creds *credential.Service
}

// NewHandler builds the public-surface handler.
func NewHandler(svc *Service, creds *credential.Service) *Handler {
	return &Handler{svc: svc, creds: creds}
}

type enrollRequest struct {
	SubjectID string `json:"subject_id"`
	PIN       string `json:"pin"`
	Biometric bool   `json:"biometric"`
}

// Enroll creates the shadow-profile credential for a subject.
func (h *Handler) Enroll(c *fiber.Ctx) error {
	var req enrollRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.SubjectID == "" {
		return fiber.NewError(http.StatusBadRequest, "subject_id is required")
	}
	cred, err := h.creds.Enroll(c.UserContext(), req.SubjectID, req.PIN, req.Biometric)
	if err != nil {
		return statusFor(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"subject_id":         cred.SubjectID,
		"biometric_enrolled": cred.BiometricEnrolled,
		"created_at":         cred.CreatedAt,
	})
}

type changePINRequest struct {
	SubjectID  string `json:"subject_id"`
	CurrentPIN string `json:"current_pin"`
	NewPIN     string `json:"new_pin"`
}

// ChangePIN replaces a subject's PIN after verifying the current one.
func (h *Handler) ChangePIN(c *fiber.Ctx) error {
	var req changePINRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.ChangePIN(c.UserContext(), req.SubjectID, req.CurrentPIN, req.NewPIN, c.IP()); err != nil {
		return statusFor(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "pin_changed"})
}

type biometricRequest struct {
	SubjectID string `json:"subject_id"`
	PIN       string `json:"pin"`
	Enrolled  bool   `json:"enrolled"`
}

// Biometric toggles biometric enrollment for a subject.
func (h *Handler) Biometric(c *fiber.Ctx) error {
	var req biometricRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.SetBiometric(c.UserContext(), req.SubjectID, req.PIN, req.Enrolled, c.IP()); err != nil {
		return statusFor(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"biometric_enrolled": req.Enrolled})
}

type verifyRequest struct {
	SubjectID string `json:"subject_id"`
	PIN       string `json:"pin"`
}

// VerifyPIN checks a PIN without toggling the session.
func (h *Handler) VerifyPIN(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.VerifyPIN(c.UserContext(), req.SubjectID, req.PIN, c.IP()); err != nil {
		return statusFor(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"verified": true})
}

type toggleRequest struct {
	SubjectID         string `json:"subject_id"`
	PIN               string `json:"pin"`
	BiometricVerified bool   `json:"biometric_verified"`
}

// Toggle flips shadow mode for a subject.
func (h *Handler) Toggle(c *fiber.Ctx) error {
	var req toggleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.ToggleShadowMode(c.UserContext(), ToggleInput{
		SubjectID:         req.SubjectID,
		PIN:               req.PIN,
		BiometricVerified: req.BiometricVerified,
		Origin:            c.IP(),
	})
	if err != nil {
		return statusFor(err)
	}
	body := fiber.Map{"shadow_mode": res.Enabled}
	if res.Enabled {
		body["session_id"] = res.Session.ID
		body["expires_at"] = res.Session.ExpiresAt
	}
	return c.Status(http.StatusOK).JSON(body)
}

// Profile reports which identity the subject currently presents.
func (h *Handler) Profile(c *fiber.Ctx) error {
	profile, err := h.svc.CurrentProfile(c.UserContext(), c.Params("subject"))
	if err != nil {
		return statusFor(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"subject_id":         profile.SubjectID,
		"active_profile":     profile.Active,
		"biometric_enrolled": profile.BiometricEnrolled,
		"session_expires_at": profile.SessionExpiresAt,
	})
}

// Activity records user activity against the live session.
func (h *Handler) Activity(c *fiber.Ctx) error {
	sess, err := h.svc.RecordActivity(c.UserContext(), c.Params("subject"))
	if err != nil {
		return statusFor(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"status":     sess.Status,
		"expires_at": sess.ExpiresAt,
	})
}

// SessionStatus reports the subject's current session state.
func (h *Handler) SessionStatus(sessions *session.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := sessions.Status(c.UserContext(), c.Params("subject"))
		if err != nil {
			return statusFor(err)
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"session_id":       sess.ID,
			"profile":          sess.Profile,
			"status":           sess.Status,
			"last_activity_at": sess.LastActivityAt,
			"expires_at":       sess.ExpiresAt,
		})
	}
}

// statusFor maps domain sentinel errors to HTTP status codes.
func statusFor(err error) error {
	switch {
	case errors.Is(err, lock.ErrLocked):
		return fiber.NewError(http.StatusLocked, err.Error())
	case errors.Is(err, ratelimit.ErrLimited):
		return fiber.NewError(http.StatusTooManyRequests, err.Error())
	case errors.Is(err, credential.ErrInvalidPIN):
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, credential.ErrMalformedPIN):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrExpired):
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, credential.ErrNotFound), errors.Is(err, session.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
