package model

import "time"

// ExplanationSource records what produced the explanation text
type ExplanationSource struct {
	GeneratedBy string `json:"generated_by"` // Provider name or "fallback"
	Model       string `json:"model,omitempty"`
	TokensUsed  int    `json:"tokens_used,omitempty"`
}

// Explanation is the generator's output for one verdict. On the wire only
// Text travels as "explanation"; the source goes into Details.
type Explanation struct {
	Text string
	ExplanationSource
}

// Details carries everything that led to a decision
type Details struct {
	RuleFlags       RuleFlags       `json:"rule_flags"`
	EvidenceSummary EvidenceSummary `json:"evidence_summary"`
	DecisionReason  string          `json:"decision_reason"`
	DecisionRule    string          `json:"decision_rule"`
	MissingContext  []string        `json:"missing_context,omitempty"`

	ExplanationSource ExplanationSource `json:"explanation_source"`
}

// EvaluationResult is the complete output of one pipeline run
type EvaluationResult struct {
	RequestID   string    `json:"request_id"`
	Decision    Decision  `json:"decision"`
	Severity    Severity  `json:"severity"`
	RiskScore   int       `json:"risk_score"`
	Explanation string    `json:"explanation"`
	Warnings    []string  `json:"warnings,omitempty"`
	Details     Details   `json:"details"`
	Timestamp   time.Time `json:"timestamp"`
}

// ChatResult is an evaluated base-model answer
type ChatResult struct {
	EvaluationResult
	UserMessage      string `json:"user_message"`
	Safe             bool   `json:"safe"`
	FilteredResponse string `json:"filtered_response,omitempty"`
	AIResponse       string `json:"ai_response,omitempty"`
}
