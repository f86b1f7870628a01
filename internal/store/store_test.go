package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nhle/workboard/internal/model"
	"github.com/nhle/workboard/internal/store"
	"github.com/nhle/workboard/tests/testutil"
)

func seedWorkspace(t *testing.T, st *store.SQLiteStore) model.Workspace {
	t.Helper()
	ws := model.Workspace{ID: "ws-1", Name: "Acme", Slug: "acme"}
	require.NoError(t, st.CreateWorkspace(context.Background(), ws))
	return ws
}

func TestTaskNumbersAreSequential(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()
	ws := seedWorkspace(t, st)

	for i := 1; i <= 5; i++ {
		task := model.Task{WorkspaceID: ws.ID, Title: fmt.Sprintf("Task %d", i)}
		require.NoError(t, st.CreateTask(ctx, &task))
		require.Equal(t, int64(i), task.Number)
	}

	task := model.Task{WorkspaceID: ws.ID, Title: "Sixth"}
	require.NoError(t, st.CreateTask(ctx, &task))
	require.Equal(t, "Task #0000006", task.DisplayNumber())
}

func TestCreateTaskValidation(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()
	ws := seedWorkspace(t, st)

	err := st.CreateTask(ctx, &model.Task{WorkspaceID: ws.ID, Title: "   "})
	require.Error(t, err)

	err = st.CreateTask(ctx, &model.Task{WorkspaceID: ws.ID, Title: "x", Status: "SHIPPED"})
	require.Error(t, err)

	// Empty status defaults to backlog.
	task := model.Task{WorkspaceID: ws.ID, Title: "Defaulted"}
	require.NoError(t, st.CreateTask(ctx, &task))
	require.Equal(t, model.TaskStatusBacklog, task.Status)
}

func TestGetTasksFiltering(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()
	ws := seedWorkspace(t, st)

	seed := []model.Task{
		{WorkspaceID: ws.ID, Title: "Renew certificates", Status: model.TaskStatusTodo},
		{WorkspaceID: ws.ID, Title: "Write changelog", Status: model.TaskStatusInProgress},
		{WorkspaceID: ws.ID, Title: "Archive old logs", Status: model.TaskStatusDone},
	}
	for i := range seed {
		require.NoError(t, st.CreateTask(ctx, &seed[i]))
	}

	t.Run("by status", func(t *testing.T) {
		status := model.TaskStatusTodo
		tasks, err := st.GetTasks(ctx, store.TaskFilter{WorkspaceID: ws.ID, Status: &status})
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		require.Equal(t, "Renew certificates", tasks[0].Title)
	})

	t.Run("text search", func(t *testing.T) {
		q := "chang"
		tasks, err := st.GetTasks(ctx, store.TaskFilter{WorkspaceID: ws.ID, Query: &q})
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		require.Equal(t, "Write changelog", tasks[0].Title)
	})

	t.Run("default order is by number", func(t *testing.T) {
		tasks, err := st.GetTasks(ctx, store.TaskFilter{WorkspaceID: ws.ID})
		require.NoError(t, err)
		require.Len(t, tasks, 3)
		require.Equal(t, int64(1), tasks[0].Number)
		require.Equal(t, int64(3), tasks[2].Number)
	})

	t.Run("unknown sort column falls back", func(t *testing.T) {
		tasks, err := st.GetTasks(ctx, store.TaskFilter{
			WorkspaceID: ws.ID,
			SortBy:      "number; DROP TABLE tasks",
		})
		require.NoError(t, err)
		require.Len(t, tasks, 3)
		require.Equal(t, int64(1), tasks[0].Number)
	})

	t.Run("other workspaces excluded", func(t *testing.T) {
		tasks, err := st.GetTasks(ctx, store.TaskFilter{WorkspaceID: "ws-other"})
		require.NoError(t, err)
		require.Empty(t, tasks)
	})
}

func TestUpdateTaskStatus(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()
	ws := seedWorkspace(t, st)

	due := time.Now().UTC().AddDate(0, 0, -3)
	task := model.Task{WorkspaceID: ws.ID, Title: "Late", Status: model.TaskStatusTodo, DueDate: &due}
	require.NoError(t, st.CreateTask(ctx, &task))

	marked, err := st.MarkOverdueTasks(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, int64(1), marked)

	// Finishing the task clears its overdue flag.
	require.NoError(t, st.UpdateTaskStatus(ctx, task.ID, model.TaskStatusDone))
	got, err := st.GetTaskByID(ctx, task.ID)
	require.NoError(t, err)
	require.False(t, got.Overdue)
	require.Equal(t, model.TaskStatusDone, got.Status)

	require.ErrorIs(t, st.UpdateTaskStatus(ctx, "missing", model.TaskStatusDone), store.ErrNotFound)
}

func TestToggleChecklistItemIsWorkspaceScoped(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()
	ws := seedWorkspace(t, st)

	task := model.Task{WorkspaceID: ws.ID, Title: "Onboarding"}
	require.NoError(t, st.CreateTask(ctx, &task))
	require.NoError(t, st.AddChecklistItem(ctx, model.ChecklistItem{
		ID: "item-1", TaskID: task.ID, Text: "step",
	}))

	// The wrong workspace cannot reach the item.
	require.ErrorIs(t, st.ToggleChecklistItem(ctx, "item-1", "ws-other"), store.ErrNotFound)

	items, err := st.GetChecklistItems(ctx, task.ID)
	require.NoError(t, err)
	require.False(t, items[0].Checked)

	require.NoError(t, st.ToggleChecklistItem(ctx, "item-1", ws.ID))
	items, err = st.GetChecklistItems(ctx, task.ID)
	require.NoError(t, err)
	require.True(t, items[0].Checked)
}

func TestNotificationPagination(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()
	ws := seedWorkspace(t, st)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		nType := model.NotificationSystem
		if i%5 == 0 {
			nType = model.NotificationMention
		}
		require.NoError(t, st.CreateNotification(ctx, model.Notification{
			ID:          fmt.Sprintf("n-%02d", i),
			WorkspaceID: ws.ID,
			RecipientID: "user-1",
			Type:        nType,
			Title:       fmt.Sprintf("Event %d", i),
			Message:     "m",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}))
	}

	t.Run("newest first with total", func(t *testing.T) {
		page, total, err := st.GetNotifications(ctx, store.NotificationFilter{
			WorkspaceID: ws.ID, RecipientID: "user-1", Page: 1, Limit: 10,
		})
		require.NoError(t, err)
		require.Equal(t, 25, total)
		require.Len(t, page, 10)
		require.Equal(t, "n-24", page[0].ID)
	})

	t.Run("last page is partial", func(t *testing.T) {
		page, total, err := st.GetNotifications(ctx, store.NotificationFilter{
			WorkspaceID: ws.ID, RecipientID: "user-1", Page: 3, Limit: 10,
		})
		require.NoError(t, err)
		require.Equal(t, 25, total)
		require.Len(t, page, 5)
	})

	t.Run("type filter", func(t *testing.T) {
		mention := model.NotificationMention
		page, total, err := st.GetNotifications(ctx, store.NotificationFilter{
			WorkspaceID: ws.ID, RecipientID: "user-1", Type: &mention,
		})
		require.NoError(t, err)
		require.Equal(t, 5, total)
		require.Len(t, page, 5)
	})

	t.Run("other recipients see nothing", func(t *testing.T) {
		_, total, err := st.GetNotifications(ctx, store.NotificationFilter{
			WorkspaceID: ws.ID, RecipientID: "user-2",
		})
		require.NoError(t, err)
		require.Zero(t, total)
	})
}

func TestMarkNotificationsReadIsRecipientScoped(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()
	ws := seedWorkspace(t, st)
	now := time.Now().UTC()

	for i, recipient := range []string{"user-1", "user-2"} {
		require.NoError(t, st.CreateNotification(ctx, model.Notification{
			ID:          fmt.Sprintf("n-%d", i),
			WorkspaceID: ws.ID,
			RecipientID: recipient,
			Type:        model.NotificationSystem,
			Title:       "t",
			Message:     "m",
		}))
	}

	// user-1 tries to mark both; only their own flips.
	updated, err := st.MarkNotificationsRead(ctx, "user-1", []string{"n-0", "n-1"}, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), updated)

	_, unread, err := st.GetNotifications(ctx, store.NotificationFilter{
		WorkspaceID: ws.ID, RecipientID: "user-2", UnreadOnly: true,
	})
	require.NoError(t, err)
	require.Equal(t, 1, unread)

	// Marking again is a no-op.
	updated, err = st.MarkNotificationsRead(ctx, "user-1", []string{"n-0"}, now)
	require.NoError(t, err)
	require.Zero(t, updated)

	t.Run("mark all is workspace scoped", func(t *testing.T) {
		require.NoError(t, st.CreateWorkspace(ctx, model.Workspace{ID: "ws-2", Name: "Other", Slug: "other"}))
		require.NoError(t, st.CreateNotification(ctx, model.Notification{
			ID: "n-elsewhere", WorkspaceID: "ws-2", RecipientID: "user-2",
			Type: model.NotificationSystem, Title: "t", Message: "m",
		}))

		updated, err := st.MarkAllNotificationsRead(ctx, "user-2", ws.ID, now)
		require.NoError(t, err)
		require.Equal(t, int64(1), updated)

		_, unread, err := st.GetNotifications(ctx, store.NotificationFilter{
			WorkspaceID: "ws-2", RecipientID: "user-2", UnreadOnly: true,
		})
		require.NoError(t, err)
		require.Equal(t, 1, unread)
	})
}

func TestUserEmailNormalization(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateUser(ctx, model.User{
		ID: "u-1", Email: "  Alice@Example.COM ", Name: "Alice",
	}))

	u, err := st.GetUserByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	require.Equal(t, "u-1", u.ID)
	require.Equal(t, "alice@example.com", u.Email)

	_, err = st.GetUserByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessionLifecycle(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateUser(ctx, model.User{ID: "u-1", Email: "a@b.c", Name: "A"}))
	require.NoError(t, st.CreateSession(ctx, model.Session{
		Token: "tok", UserID: "u-1", ExpiresAt: time.Now().UTC().Add(time.Hour),
	}))

	sess, err := st.GetSession(ctx, "tok")
	require.NoError(t, err)
	require.Equal(t, "u-1", sess.UserID)
	require.False(t, sess.Expired(time.Now().UTC()))

	require.NoError(t, st.DeleteSession(ctx, "tok"))
	_, err = st.GetSession(ctx, "tok")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestServiceChecklistTemplateRoundTrip(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()
	ws := seedWorkspace(t, st)

	freq := model.FrequencyWeekly
	start := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	svc := model.Service{
		ID:                   "svc-1",
		WorkspaceID:          ws.ID,
		Name:                 "Weekly maintenance",
		IsRoutinary:          true,
		RoutinaryFrequency:   &freq,
		RoutinaryStartDate:   &start,
		RoutinaryNextRunDate: &start,
		ChecklistTemplate:    []string{"Check disks", "Rotate logs"},
	}
	require.NoError(t, st.CreateService(ctx, svc))

	got, err := st.GetServiceByID(ctx, "svc-1")
	require.NoError(t, err)
	require.Equal(t, []string{"Check disks", "Rotate logs"}, got.ChecklistTemplate)
	require.True(t, got.IsRoutinary)
	require.Equal(t, model.FrequencyWeekly, *got.RoutinaryFrequency)
}
