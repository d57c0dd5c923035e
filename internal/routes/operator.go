package routes

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/veil-auth/veil_auth/internal/anomaly"
	"github.com/veil-auth/veil_auth/internal/audit"
	"github.com/veil-auth/veil_auth/internal/lock"
	"github.com/veil-auth/veil_auth/internal/ratelimit"
	"github.com/veil-auth/veil_auth/internal/session"
)

// RegisterOperatorRoutes wires configuration, lock and audit-history endpoints.
func RegisterOperatorRoutes(r fiber.Router, core *Core, logger *slog.Logger) {
	// Rate-limit policy per subject and action kind.
	r.Get("/rate-limit/:subject/:kind", func(c *fiber.Ctx) error {
		policy, err := core.Limiter.Policy(c.UserContext(), c.Params("subject"), c.Params("kind"))
		if err != nil {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return c.JSON(fiber.Map{
			"max_attempts":    policy.MaxAttempts,
			"window_seconds":  int(policy.Window.Seconds()),
			"lockout_seconds": int(policy.Lockout.Seconds()),
		})
	})

	r.Put("/rate-limit/:subject/:kind", func(c *fiber.Ctx) error {
		var req struct {
			MaxAttempts    int `json:"max_attempts"`
			WindowSeconds  int `json:"window_seconds"`
			LockoutSeconds int `json:"lockout_seconds"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		policy := ratelimit.Policy{
			MaxAttempts: req.MaxAttempts,
			Window:      time.Duration(req.WindowSeconds) * time.Second,
			Lockout:     time.Duration(req.LockoutSeconds) * time.Second,
		}
		if err := core.Limiter.SetPolicy(c.UserContext(), c.Params("subject"), c.Params("kind"), policy); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{"status": "policy_updated"})
	})

	r.Delete("/rate-limit/:subject/:kind", func(c *fiber.Ctx) error {
		if err := core.Limiter.ClearPolicy(c.UserContext(), c.Params("subject"), c.Params("kind")); err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{"status": "policy_cleared"})
	})

	// Anomaly rule configuration.
	r.Get("/anomaly/rules", func(c *fiber.Ctx) error {
		return c.JSON(core.Detector.Rules())
	})

	r.Put("/anomaly/rules/:rule", func(c *fiber.Ctx) error {
		var req struct {
			Enabled         bool   `json:"enabled"`
			Threshold       int    `json:"threshold"`
			WindowSeconds   int    `json:"window_seconds"`
			Severity        string `json:"severity"`
			NormalStartHour int    `json:"normal_start_hour"`
			NormalEndHour   int    `json:"normal_end_hour"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		cfg := anomaly.RuleConfig{
			Enabled:         req.Enabled,
			Threshold:       req.Threshold,
			Window:          time.Duration(req.WindowSeconds) * time.Second,
			Severity:        req.Severity,
			NormalStartHour: req.NormalStartHour,
			NormalEndHour:   req.NormalEndHour,
		}
		if err := core.Detector.SetRule(c.Params("rule"), cfg); err != nil {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{"status": "rule_updated"})
	})

	r.Get("/anomaly/alerts", func(c *fiber.Ctx) error {
		alerts, err := core.Alerts.List(c.UserContext(), c.Query("subject"))
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"alerts": alerts})
	})

	// Lock / unlock. Locking also ends any live session: a locked subject must
	// not keep an open shadow session.
	r.Post("/locks/:subject", func(c *fiber.Ctx) error {
		var req struct {
			Reason          string `json:"reason"`
			DurationMinutes *int   `json:"duration_minutes"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		operatorID, _ := c.Locals("operator_id").(string)

		var duration *time.Duration
		if req.DurationMinutes != nil {
			d := time.Duration(*req.DurationMinutes) * time.Minute
			duration = &d
		}
		l, err := core.Locks.Lock(c.UserContext(), c.Params("subject"), req.Reason, operatorID, duration)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		if _, err := core.Sessions.Terminate(c.UserContext(), c.Params("subject"), "user_lock"); err != nil && !errors.Is(err, session.ErrNotFound) {
			logger.Error("terminate session on lock", slog.Any("error", err))
		}

		body := fiber.Map{"subject_id": l.SubjectID, "reason": l.Reason, "locked_at": l.LockedAt}
		if l.LockedUntil != nil {
			body["locked_until"] = *l.LockedUntil
		}
		return c.Status(http.StatusCreated).JSON(body)
	})

	r.Delete("/locks/:subject", func(c *fiber.Ctx) error {
		if err := core.Locks.Unlock(c.UserContext(), c.Params("subject")); err != nil {
			if errors.Is(err, lock.ErrNoLock) {
				return fiber.NewError(http.StatusNotFound, err.Error())
			}
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{"status": "unlocked"})
	})

	// Audit history, filtered by action and time range.
	r.Get("/audit/:subject", func(c *fiber.Ctx) error {
		filter := audit.Filter{
			Action: c.Query("action"),
			Limit:  c.QueryInt("limit"),
		}
		if v := c.Query("from"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return fiber.NewError(http.StatusBadRequest, "invalid from timestamp")
			}
			filter.From = t
		}
		if v := c.Query("to"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return fiber.NewError(http.StatusBadRequest, "invalid to timestamp")
			}
			filter.To = t
		}
		entries, err := core.Recorder.Store().ListBySubject(c.UserContext(), c.Params("subject"), filter)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"entries": entries})
	})

	// Manual scan trigger for incident response.
	r.Post("/anomaly/scan", func(c *fiber.Ctx) error {
		alerts, err := core.Detector.Scan(c.UserContext())
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{"raised": len(alerts)})
	})
}
