package anomaly

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veil-auth/veil_auth/internal/audit"
	"github.com/veil-auth/veil_auth/internal/notification"
	"github.com/veil-auth/veil_auth/internal/session"
)

// Detector periodically scans recent audit history and live sessions for abuse
// patterns. It runs off the request path: its only inputs are the audit store
// and the session repository, and its only output is alert records.
type Detector struct {
	entries  audit.Store
	sessions session.Repository
	alerts   AlertStore
	notifier notification.Notifier
	logger   *slog.Logger
	lookback time.Duration
	now      func() time.Time

	mu    sync.RWMutex
	rules map[string]RuleConfig
}

// NewDetector builds a detector with the default rule set.
func NewDetector(entries audit.Store, sessions session.Repository, alerts AlertStore, notifier notification.Notifier, logger *slog.Logger, lookback time.Duration) *Detector {
	return &Detector{
		entries:  entries,
		sessions: sessions,
		alerts:   alerts,
		notifier: notifier,
		logger:   logger,
		lookback: lookback,
		now:      time.Now,
		rules:    DefaultRules(),
	}
}

// Rules returns a copy of the current rule configuration.
func (d *Detector) Rules() map[string]RuleConfig {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]RuleConfig, len(d.rules))
	for name, cfg := range d.rules {
		out[name] = cfg
	}
	return out
}

// SetRule replaces one rule's configuration, effective on the next scan.
func (d *Detector) SetRule(name string, cfg RuleConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.rules[name]; !ok {
		return fmt.Errorf("unknown rule %q", name)
	}
	d.rules[name] = cfg
	return nil
}

// Scan evaluates every enabled rule over the lookback window. Re-running over
// an already-processed window raises no duplicate alerts.
func (d *Detector) Scan(ctx context.Context) ([]Alert, error) {
	now := d.now().UTC()
	recent, err := d.entries.Recent(ctx, now.Add(-d.lookback))
	if err != nil {
		return nil, fmt.Errorf("read audit history: %w", err)
	}

	rules := d.Rules()
	var raised []Alert

	if cfg := rules[RuleExcessiveFailures]; cfg.Enabled {
		alerts, err := d.excessiveFailures(ctx, recent, cfg, now)
		if err != nil {
			return raised, err
		}
		raised = append(raised, alerts...)
	}
	if cfg := rules[RuleMultipleOrigins]; cfg.Enabled {
		alerts, err := d.multipleOrigins(ctx, recent, cfg, now)
		if err != nil {
			return raised, err
		}
		raised = append(raised, alerts...)
	}
	if cfg := rules[RuleLongSession]; cfg.Enabled {
		alerts, err := d.longSessions(ctx, cfg, now)
		if err != nil {
			return raised, err
		}
		raised = append(raised, alerts...)
	}
	if cfg := rules[RuleUnusualHour]; cfg.Enabled {
		alerts, err := d.unusualHours(ctx, recent, cfg)
		if err != nil {
			return raised, err
		}
		raised = append(raised, alerts...)
	}

	return raised, nil
}

// Run loops until ctx is cancelled, scanning on each tick.
func (d *Detector) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("anomaly detector stopped")
			return
		case <-ticker.C:
			if _, err := d.Scan(ctx); err != nil {
				d.logger.Error("anomaly scan failed", slog.Any("error", err))
			}
		}
	}
}

func (d *Detector) excessiveFailures(ctx context.Context, recent []audit.Entry, cfg RuleConfig, now time.Time) ([]Alert, error) {
	windowStart := now.Truncate(cfg.Window)
	counts := make(map[string]int)
	for _, e := range recent {
		if !strings.HasSuffix(e.Action, "_failed") {
			continue
		}
		if e.CreatedAt.Before(now.Add(-cfg.Window)) {
			continue
		}
		counts[e.SubjectID]++
	}

	var raised []Alert
	for subjectID, n := range counts {
		if n < cfg.Threshold {
			continue
		}
		alert, ok, err := d.raise(ctx, Alert{
			SubjectID:   subjectID,
			Rule:        RuleExcessiveFailures,
			Severity:    cfg.Severity,
			Message:     fmt.Sprintf("%d failed authentication attempts within %s", n, cfg.Window),
			Metadata:    map[string]any{"failed_count": n},
			WindowStart: windowStart,
		})
		if err != nil {
			return raised, err
		}
		if ok {
			raised = append(raised, alert)
		}
	}
	return raised, nil
}

func (d *Detector) multipleOrigins(ctx context.Context, recent []audit.Entry, cfg RuleConfig, now time.Time) ([]Alert, error) {
	windowStart := now.Truncate(cfg.Window)
	origins := make(map[string]map[string]bool)
	for _, e := range recent {
		if e.Origin == "" {
			continue
		}
		if e.Action != audit.ActionPINVerified && e.Action != audit.ActionPINFailed && e.Action != audit.ActionBiometricVerified {
			continue
		}
		if e.CreatedAt.Before(now.Add(-cfg.Window)) {
			continue
		}
		if origins[e.SubjectID] == nil {
			origins[e.SubjectID] = make(map[string]bool)
		}
		origins[e.SubjectID][e.Origin] = true
	}

	var raised []Alert
	for subjectID, set := range origins {
		if len(set) < cfg.Threshold {
			continue
		}
		alert, ok, err := d.raise(ctx, Alert{
			SubjectID:   subjectID,
			Rule:        RuleMultipleOrigins,
			Severity:    cfg.Severity,
			Message:     fmt.Sprintf("attempts from %d distinct origins within %s", len(set), cfg.Window),
			Metadata:    map[string]any{"origin_count": len(set)},
			WindowStart: windowStart,
		})
		if err != nil {
			return raised, err
		}
		if ok {
			raised = append(raised, alert)
		}
	}
	return raised, nil
}

// longSessions flags live sessions that outlast the configured duration. Keyed
// on the session's start time, so each session raises at most one alert.
func (d *Detector) longSessions(ctx context.Context, cfg RuleConfig, now time.Time) ([]Alert, error) {
	live, err := d.sessions.ListLive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list live sessions: %w", err)
	}

	var raised []Alert
	for _, sess := range live {
		age := now.Sub(sess.StartedAt)
		if age < cfg.Window {
			continue
		}
		alert, ok, err := d.raise(ctx, Alert{
			SubjectID:   sess.SubjectID,
			Rule:        RuleLongSession,
			Severity:    cfg.Severity,
			Message:     fmt.Sprintf("session open for %s", age.Round(time.Minute)),
			Metadata:    map[string]any{"session_id": sess.ID, "profile": sess.Profile},
			WindowStart: sess.StartedAt,
		})
		if err != nil {
			return raised, err
		}
		if ok {
			raised = append(raised, alert)
		}
	}
	return raised, nil
}

func (d *Detector) unusualHours(ctx context.Context, recent []audit.Entry, cfg RuleConfig) ([]Alert, error) {
	var raised []Alert
	for _, e := range recent {
		if e.Action != audit.ActionPINVerified && e.Action != audit.ActionShadowEnabled {
			continue
		}
		hour := e.CreatedAt.Hour()
		if hour >= cfg.NormalStartHour && hour < cfg.NormalEndHour {
			continue
		}
		alert, ok, err := d.raise(ctx, Alert{
			SubjectID:   e.SubjectID,
			Rule:        RuleUnusualHour,
			Severity:    cfg.Severity,
			Message:     fmt.Sprintf("authentication succeeded at %02d:00, outside normal hours", hour),
			Metadata:    map[string]any{"hour": hour, "action": e.Action},
			WindowStart: e.CreatedAt.Truncate(cfg.Window),
		})
		if err != nil {
			return raised, err
		}
		if ok {
			raised = append(raised, alert)
		}
	}
	return raised, nil
}

// raise inserts the alert unless the same (subject, rule, window) was already
// recorded, then hands it to the notifier best-effort.
func (d *Detector) raise(ctx context.Context, alert Alert) (Alert, bool, error) {
	exists, err := d.alerts.Exists(ctx, alert.SubjectID, alert.Rule, alert.WindowStart)
	if err != nil {
		return Alert{}, false, fmt.Errorf("check alert dedup: %w", err)
	}
	if exists {
		return Alert{}, false, nil
	}

	alert.ID = uuid.NewString()
	alert.CreatedAt = d.now().UTC()
	if err := d.alerts.Insert(ctx, alert); err != nil {
		return Alert{}, false, fmt.Errorf("insert alert: %w", err)
	}

	d.logger.Warn("anomaly alert raised",
		slog.String("subject_id", alert.SubjectID),
		slog.String("rule", alert.Rule),
		slog.String("severity", alert.Severity),
	)
	if d.notifier != nil {
		if err := d.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindAnomalyAlert,
			Destination: alert.SubjectID,
			Body:        alert.Message,
		}); err != nil {
			d.logger.Warn("alert notification failed", slog.Any("error", err))
		}
	}
	return alert, true, nil
}
