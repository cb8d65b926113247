package models

// ReasonWithinPolicy is the fixed reason string for allowed decisions.
const ReasonWithinPolicy = "within policy limits"

// Decision is the immutable verdict artifact produced exactly once per request.
// It is handed to both the caller (as the response body) and the audit emitter.
type Decision struct {
	Allowed        bool     `json:"allowed"`
	RiskScore      int      `json:"risk_score"`
	Reason         string   `json:"reason"`
	TriggeredRules []string `json:"triggered_rules,omitempty"`
	RequestID      string   `json:"request_id"`
	LatencyMs      float64  `json:"latency_ms"`
}
