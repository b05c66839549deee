package model

import (
	"errors"
	"strings"
)

// ErrEmptyContent is returned when an evaluation is requested for blank text
var ErrEmptyContent = errors.New("content is required")

// UserContext is optional, unvalidated information about the person asking
type UserContext struct {
	Age            string `json:"age,omitempty"`
	Symptoms       string `json:"symptoms,omitempty"`
	MedicalHistory string `json:"medicalHistory,omitempty"`
	Timeframe      string `json:"timeframe,omitempty"`
}

// Field returns the value of a context field by its wire name
func (u UserContext) Field(name string) string {
	switch strings.ToLower(name) {
	case "age":
		return u.Age
	case "symptoms":
		return u.Symptoms
	case "medicalhistory", "medical_history", "history":
		return u.MedicalHistory
	case "timeframe":
		return u.Timeframe
	default:
		return ""
	}
}

// Missing returns the required fields that are blank
func (u UserContext) Missing(required []string) []string {
	var missing []string
	for _, name := range required {
		if strings.TrimSpace(u.Field(name)) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// EvaluationRequest is the input of one pipeline run
type EvaluationRequest struct {
	Content string      `json:"content"`
	Context UserContext `json:"userContext,omitempty"`
}

// NewEvaluationRequest validates content and builds a request
func NewEvaluationRequest(content string, userCtx UserContext) (EvaluationRequest, error) {
	if strings.TrimSpace(content) == "" {
		return EvaluationRequest{}, ErrEmptyContent
	}
	return EvaluationRequest{Content: content, Context: userCtx}, nil
}
