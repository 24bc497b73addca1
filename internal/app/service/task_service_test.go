package service

import (
	"context"
	"encoding/json"
	"testing"

	"taskboard/internal/common"
	"taskboard/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	admin := f.registerAdmin(t, "root")

	task := f.createTask(t, alice, "Buy milk", model.PriorityLow)
	assert.Equal(t, alice.ID, task.UserID)
	assert.Equal(t, alice.ID, task.CreatedBy)
	require.NotNil(t, task.Owner)
	assert.Equal(t, "alice", task.Owner.Username)

	_, err := f.tasks.Get(ctx, bob, task.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, "Task not found", common.PublicMessage(err))

	got, err := f.tasks.Get(ctx, admin, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", got.Title)

	_, err = f.tasks.Get(ctx, alice, "not-a-uuid")
	assert.Equal(t, "Task not found", common.PublicMessage(err))
}

func TestTaskListScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	admin := f.registerAdmin(t, "root")

	f.createTask(t, alice, "a1", model.PriorityLow)
	f.createTask(t, alice, "a2", model.PriorityHigh)
	f.createTask(t, bob, "b1", model.PriorityHigh)

	// bob asks for alice's tasks and still only sees his own
	res, err := f.tasks.List(ctx, bob, model.TaskFilter{OwnerID: &alice.ID}, model.DefaultTaskSort, model.NewPage(1, 0))
	require.NoError(t, err)
	require.Len(t, res.Tasks, 1)
	assert.Equal(t, bob.ID, res.Tasks[0].UserID)
	assert.False(t, res.IsAdmin)

	high := model.PriorityHigh
	res, err = f.tasks.List(ctx, admin, model.TaskFilter{Priority: &high}, model.DefaultTaskSort, model.NewPage(1, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.True(t, res.IsAdmin)

	res, err = f.tasks.List(ctx, alice, model.TaskFilter{}, model.DefaultTaskSort, model.NewPage(1, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 2, res.TotalPages)
	assert.Equal(t, 1, res.CurrentPage)
}

func TestCreateTaskValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")

	var req CreateTaskRequest
	require.NoError(t, json.Unmarshal([]byte(`{"title":"   ","priority":"urgent","dueDate":"someday"}`), &req))
	_, err := f.tasks.Create(ctx, alice, req)
	require.ErrorIs(t, err, common.ErrValidation)

	var vErr *common.ValidationError
	require.ErrorAs(t, err, &vErr)
	fields := map[string]string{}
	for _, fe := range vErr.Fields {
		fields[fe.Field] = fe.Message
	}
	assert.Equal(t, "is required", fields["title"])
	assert.Contains(t, fields, "priority")
	assert.Equal(t, "must be a valid date", fields["dueDate"])

	task, err := f.tasks.Create(ctx, alice, CreateTaskRequest{Title: "  trimmed  "})
	require.NoError(t, err)
	assert.Equal(t, "trimmed", task.Title)
	assert.Equal(t, model.PriorityMedium, task.Priority)
	assert.False(t, task.Completed)
}

func TestUpdateTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	var create CreateTaskRequest
	require.NoError(t, json.Unmarshal([]byte(`{"title":"Report","dueDate":"2030-01-02"}`), &create))
	task, err := f.tasks.Create(ctx, alice, create)
	require.NoError(t, err)
	require.NotNil(t, task.DueDate)

	var req UpdateTaskRequest
	require.NoError(t, json.Unmarshal([]byte(`{"title":"Final report","userId":"`+bob.ID+`","dueDate":null}`), &req))

	_, err = f.tasks.Update(ctx, bob, task.ID, req)
	assert.ErrorIs(t, err, common.ErrNotFound)

	updated, err := f.tasks.Update(ctx, alice, task.ID, req)
	require.NoError(t, err)
	assert.Equal(t, "Final report", updated.Title)
	assert.Equal(t, alice.ID, updated.UserID)
	assert.Nil(t, updated.DueDate)

	_, err = f.tasks.Update(ctx, alice, task.ID, UpdateTaskRequest{Title: strPtr(" ")})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestToggleTwiceRestoresState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	task := f.createTask(t, alice, "flip", model.PriorityLow)

	toggled, err := f.tasks.Toggle(ctx, alice, task.ID)
	require.NoError(t, err)
	assert.True(t, toggled.Completed)

	toggled, err = f.tasks.Toggle(ctx, alice, task.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Completed)

	_, err = f.tasks.Toggle(ctx, bob, task.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDeleteTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	task := f.createTask(t, alice, "bye", model.PriorityLow)

	assert.ErrorIs(t, f.tasks.Delete(ctx, bob, task.ID), common.ErrNotFound)
	before := f.cache.invalidated
	require.NoError(t, f.tasks.Delete(ctx, alice, task.ID))
	assert.Equal(t, before+1, f.cache.invalidated)
	assert.ErrorIs(t, f.tasks.Delete(ctx, alice, task.ID), common.ErrNotFound)
}
