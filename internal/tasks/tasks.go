package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TypeBalanceDigest = "balances:digest"
)

// Reasons a digest was requested
const (
	ReasonExpenseCreated = "expense_created"
	ReasonExpenseDeleted = "expense_deleted"
	ReasonScheduled      = "scheduled"
)

// Enqueuer is the subset of *asynq.Client used to schedule work
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// BalanceDigestPayload identifies the group to recompute
type BalanceDigestPayload struct {
	GroupID string `json:"group_id"`
	Reason  string `json:"reason,omitempty"`
}

// NewBalanceDigestTask creates a task that snapshots a group's balances
func NewBalanceDigestTask(groupID, reason string) (*asynq.Task, error) {
	if groupID == "" {
		return nil, fmt.Errorf("group id is required")
	}
	payload, err := json.Marshal(BalanceDigestPayload{
		GroupID: groupID,
		Reason:  reason,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypeBalanceDigest, payload, asynq.MaxRetry(3)), nil
}

// ParseBalanceDigestPayload parses task payload from Asynq task
func ParseBalanceDigestPayload(task *asynq.Task) (BalanceDigestPayload, error) {
	var payload BalanceDigestPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if payload.GroupID == "" {
		return payload, fmt.Errorf("payload is missing group_id")
	}
	return payload, nil
}
