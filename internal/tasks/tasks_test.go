package tasks

import (
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalanceDigestTask(t *testing.T) {
	task, err := NewBalanceDigestTask("group-1", ReasonExpenseCreated)
	require.NoError(t, err)
	assert.Equal(t, TypeBalanceDigest, task.Type())

	payload, err := ParseBalanceDigestPayload(task)
	require.NoError(t, err)
	assert.Equal(t, "group-1", payload.GroupID)
	assert.Equal(t, ReasonExpenseCreated, payload.Reason)
}

func TestNewBalanceDigestTask_RequiresGroup(t *testing.T) {
	_, err := NewBalanceDigestTask("", ReasonScheduled)
	assert.Error(t, err)
}

func TestParseBalanceDigestPayload_Invalid(t *testing.T) {
	_, err := ParseBalanceDigestPayload(asynq.NewTask(TypeBalanceDigest, []byte("not json")))
	assert.Error(t, err)

	_, err = ParseBalanceDigestPayload(asynq.NewTask(TypeBalanceDigest, []byte(`{"reason":"x"}`)))
	assert.ErrorContains(t, err, "group_id")
}
