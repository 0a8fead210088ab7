package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transition struct {
	id, from, to string
}

func TestMachineWorkflow(t *testing.T) {
	var changes []transition
	m := NewMachine("sess-1", "", func(id, from, to string) {
		changes = append(changes, transition{id, from, to})
	})
	ctx := context.Background()

	assert.Equal(t, StageEmpty, m.CurrentStage())
	assert.False(t, m.CanTransition(EventPublish))

	steps := []struct {
		event string
		want  string
	}{
		{EventEnter, StageEntered},
		{EventFetch, StageReviewed},
		{EventFetch, StageReviewed},
		{EventPublish, StagePublished},
		{EventFetch, StagePublished},
		{EventDelete, StageReviewed},
		{EventEnter, StageEntered},
	}
	for _, step := range steps {
		require.NoError(t, m.Trigger(ctx, step.event), step.event)
		assert.Equal(t, step.want, m.CurrentStage(), step.event)
	}

	// 自转换不通知
	assert.Equal(t, []transition{
		{"sess-1", StageEmpty, StageEntered},
		{"sess-1", StageEntered, StageReviewed},
		{"sess-1", StageReviewed, StagePublished},
		{"sess-1", StagePublished, StageReviewed},
		{"sess-1", StageReviewed, StageEntered},
	}, changes)

	wf := m.GetWorkflow()
	assert.Equal(t, StageEntered, wf.Stage)
	assert.Equal(t, EventEnter, wf.LastEvent)
	assert.False(t, wf.Since.IsZero())
}

func TestMachineInvalidTransition(t *testing.T) {
	m := NewMachine("sess-2", StageEntered, nil)
	ctx := context.Background()

	err := m.Trigger(ctx, EventDelete)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trigger event delete")
	assert.Equal(t, StageEntered, m.CurrentStage())

	require.Error(t, m.Trigger(ctx, "unknown"))
	assert.Equal(t, StageEntered, m.GetWorkflow().Stage)
}
