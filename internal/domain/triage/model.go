package triage

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/healthlink/healthlink/internal/platform/apperr"
)

// MessageRole distinguishes patient turns from model turns.
type MessageRole string

const (
	RoleUser MessageRole = "user"
	RoleAI   MessageRole = "ai"
)

// Message is one turn in a triage conversation, ordered by Seq.
type Message struct {
	Role      MessageRole `db:"role" json:"role"`
	Content   string      `db:"content" json:"content"`
	Timestamp time.Time   `db:"created_at" json:"timestamp"`
}

// RiskLevel is the model-assigned urgency.
type RiskLevel string

const (
	RiskLow       RiskLevel = "low"
	RiskMedium    RiskLevel = "medium"
	RiskHigh      RiskLevel = "high"
	RiskEmergency RiskLevel = "emergency"
)

func ParseRiskLevel(s string) (RiskLevel, error) {
	switch RiskLevel(strings.ToLower(strings.TrimSpace(s))) {
	case RiskLow:
		return RiskLow, nil
	case RiskMedium:
		return RiskMedium, nil
	case RiskHigh:
		return RiskHigh, nil
	case RiskEmergency:
		return RiskEmergency, nil
	default:
		return "", apperr.Validation("invalid risk level: %q", s)
	}
}

// RiskAssessment is replaced wholesale on every successful model turn;
// recommendations and tests from earlier turns do not accumulate.
type RiskAssessment struct {
	Level           RiskLevel `json:"level"`
	Recommendations []string  `json:"recommendations"`
	SuggestedTests  []string  `json:"suggestedTests"`
}

// Session maps to the triage_session table with its messages attached.
// Symptoms are append-only and kept exactly as the model reported them,
// duplicates included.
type Session struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	PatientID uuid.UUID       `db:"patient_id" json:"patientId"`
	Messages  []Message       `json:"messages"`
	Symptoms  []string        `db:"symptoms" json:"symptoms"`
	Risk      *RiskAssessment `json:"riskAssessment,omitempty"`
	IsActive  bool            `db:"is_active" json:"isActive"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time       `db:"updated_at" json:"updatedAt"`
}

// Greeting is the AI message every new session starts with.
const Greeting = "Hello! I'm here to help assess your symptoms. What symptoms are you experiencing today?"
