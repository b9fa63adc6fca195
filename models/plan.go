package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// PlanStatus represents the possible lifecycle statuses of a plan document.
type PlanStatus string

const (
	StatusProposed  PlanStatus = "proposed"
	StatusApproved  PlanStatus = "approved"
	StatusExecuting PlanStatus = "executing"
	StatusCompleted PlanStatus = "completed"
	StatusFailed    PlanStatus = "failed"
)

// PlanMeta is the structured metadata block of a plan document.
// TraceID correlates a request, its plan, its execution and its report; it is
// assigned once and never regenerated.
type PlanMeta struct {
	TraceID   string            `yaml:"trace_id" validate:"required,min=1"`
	RequestID string            `yaml:"request_id" validate:"required,min=1"`
	Status    PlanStatus        `yaml:"status" validate:"required,oneof=proposed approved executing completed failed"`
	AgentID   string            `yaml:"agent_id,omitempty"`
	Extra     map[string]string `yaml:"-"` // unknown keys, passed through opaquely
}

// Action is one tool invocation extracted from a plan body.
// An Action is owned by its parent plan and has no independent lifecycle.
type Action struct {
	Tool        string         `yaml:"tool" json:"tool"`
	Params      map[string]any `yaml:"params" json:"params"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
}

// ExecutionResult is the engine's only externally observable return value per task.
type ExecutionResult struct {
	Success bool   `json:"success"`
	TraceID string `json:"traceId"`
	Error   string `json:"error,omitempty"`
	// SecondaryError records a best-effort cleanup failure (e.g. a rollback
	// reset that itself failed) without masking the primary error.
	SecondaryError string `json:"secondaryError,omitempty"`
	BranchName     string `json:"branchName,omitempty"`
	ActionsRun     int    `json:"actionsRun"`
}

// Report is a terminal human-readable artifact summarizing a task outcome.
type Report struct {
	TraceID   string    `json:"traceId"`
	RequestID string    `json:"requestId"`
	AgentID   string    `json:"agentId,omitempty"`
	Success   bool      `json:"success"`
	Summary   string    `json:"summary"`
	Error     string    `json:"error,omitempty"`
	WrittenAt time.Time `json:"writtenAt"`
}

// global validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ValidateStruct performs validation on any struct that has validation tags.
func ValidateStruct(s interface{}) error {
	if validate == nil {
		validate = validator.New()
	}
	err := validate.Struct(s)
	if err != nil {
		validationErrors := err.(validator.ValidationErrors)
		var errorMessages []string
		for _, e := range validationErrors {
			errorMessages = append(errorMessages, fmt.Sprintf("Validation failed on field '%s': rule '%s' (value: '%v')", e.StructNamespace(), e.Tag(), e.Value()))
		}
		return fmt.Errorf("%s", strings.Join(errorMessages, "; "))
	}
	return nil
}
