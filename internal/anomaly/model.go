package anomaly

import "time"

// Severities an alert can carry.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Rule names. Each rule is independently enabled and configured.
const (
	RuleExcessiveFailures = "excessive_failed_attempts"
	RuleMultipleOrigins   = "multiple_origins"
	RuleLongSession       = "long_session"
	RuleUnusualHour       = "unusual_hour"
)

// Alert is a flagged pattern in the audit history. Produced only by the
// detector; read-only to every other component.
type Alert struct {
	ID          string         `json:"id"`
	SubjectID   string         `json:"subject_id"`
	Rule        string         `json:"rule"`
	Severity    string         `json:"severity"`
	Message     string         `json:"message"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	WindowStart time.Time      `json:"window_start"`
	CreatedAt   time.Time      `json:"created_at"`
}

// RuleConfig tunes one detection rule. Threshold counts events or origins;
// Window bounds the lookback (for long_session it is the maximum session
// duration instead). NormalStartHour/NormalEndHour apply to unusual_hour only.
type RuleConfig struct {
	Enabled         bool          `json:"enabled"`
	Threshold       int           `json:"threshold"`
	Window          time.Duration `json:"window"`
	Severity        string        `json:"severity"`
	NormalStartHour int           `json:"normal_start_hour"`
	NormalEndHour   int           `json:"normal_end_hour"`
}

// DefaultRules returns the rule set the detector starts with.
func DefaultRules() map[string]RuleConfig {
	return map[string]RuleConfig{
		RuleExcessiveFailures: {Enabled: true, Threshold: 10, Window: time.Hour, Severity: SeverityHigh},
		RuleMultipleOrigins:   {Enabled: true, Threshold: 2, Window: time.Hour, Severity: SeverityMedium},
		RuleLongSession:       {Enabled: true, Window: 2 * time.Hour, Severity: SeverityLow},
		RuleUnusualHour:       {Enabled: true, Window: time.Hour, Severity: SeverityLow, NormalStartHour: 6, NormalEndHour: 23},
	}
}
