package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/nhle/workboard/internal/model"
	"github.com/nhle/workboard/internal/notify"
	"github.com/nhle/workboard/internal/ratelimit"
	"github.com/nhle/workboard/internal/store"
	"github.com/nhle/workboard/tests/testutil"
)

// fixture bundles a server with a seeded workspace: two members
// (alice the admin, bob), an outsider with no membership, and a
// super-admin operator.
type fixture struct {
	server *Server
	store  *store.SQLiteStore
	hub    *notify.Hub

	workspace model.Workspace
	alice     seededUser
	bob       seededUser
	outsider  seededUser
	operator  seededUser
}

type seededUser struct {
	user   model.User
	member model.Member
	token  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := testutil.NewTestStore(t)
	hub := notify.NewHub()
	srv := NewServer(Deps{
		Store:   st,
		Limiter: ratelimit.New(1, 24*time.Hour),
		Hub:     hub,
	})

	f := &fixture{server: srv, store: st, hub: hub}
	ctx := context.Background()

	f.workspace = model.Workspace{ID: "ws-1", Name: "Acme", Slug: "acme"}
	require.NoError(t, st.CreateWorkspace(ctx, f.workspace))

	f.alice = f.seedUser(t, "alice@example.com", "Alice Nguyen", model.RoleAdmin, false)
	f.bob = f.seedUser(t, "bob@example.com", "Bob Tran", model.RoleMember, false)
	f.operator = f.seedUser(t, "ops@example.com", "Operator", "", true)

	// The outsider has an account and a session but no membership.
	f.outsider = f.seedUser(t, "eve@example.com", "Eve", "", false)

	return f
}

func (f *fixture) seedUser(t *testing.T, email, name, role string, super bool) seededUser {
	t.Helper()
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	u := model.User{
		ID:           "user-" + email,
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		SuperAdmin:   super,
	}
	require.NoError(t, f.store.CreateUser(ctx, u))

	su := seededUser{user: u, token: "tok-" + email}
	require.NoError(t, f.store.CreateSession(ctx, model.Session{
		Token:     su.token,
		UserID:    u.ID,
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}))

	if role != "" {
		su.member = model.Member{
			ID:          "member-" + email,
			WorkspaceID: f.workspace.ID,
			UserID:      u.ID,
			DisplayName: name,
			Role:        role,
		}
		require.NoError(t, f.store.AddMember(ctx, su.member))
	}
	return su
}

// do performs a JSON request against the server and decodes the
// response body into out when non-nil.
func (f *fixture) do(t *testing.T, method, path, token string, body, out any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	if out != nil && rec.Code < 300 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func (f *fixture) wsPath(suffix string) string {
	return "/v1/workspaces/" + f.workspace.ID + suffix
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", "", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthTaxonomy(t *testing.T) {
	f := newFixture(t)

	t.Run("missing token", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, f.wsPath("/tasks"), "", nil, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown token", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, f.wsPath("/tasks"), "bogus", nil, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired session", func(t *testing.T) {
		require.NoError(t, f.store.CreateSession(context.Background(), model.Session{
			Token:     "stale",
			UserID:    f.alice.user.ID,
			ExpiresAt: time.Now().UTC().Add(-time.Minute),
		}))
		rec := f.do(t, http.MethodGet, f.wsPath("/tasks"), "stale", nil, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("authenticated non-member is forbidden", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, f.wsPath("/tasks"), f.outsider.token, nil, nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("reset token is not a login session", func(t *testing.T) {
		require.NoError(t, f.store.CreateSession(context.Background(), model.Session{
			Token:     "pwreset:leaked-reset-token",
			UserID:    f.alice.user.ID,
			ExpiresAt: time.Now().UTC().Add(time.Hour),
		}))
		rec := f.do(t, http.MethodGet, f.wsPath("/tasks"), "pwreset:leaked-reset-token", nil, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown route", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/v1/nope", f.alice.token, nil, nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestLogin(t *testing.T) {
	f := newFixture(t)

	var resp struct {
		Token string     `json:"token"`
		User  model.User `json:"user"`
	}
	rec := f.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "password123",
	}, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, resp.Token)
	require.Equal(t, f.alice.user.ID, resp.User.ID)

	// The fresh token works.
	rec = f.do(t, http.MethodGet, f.wsPath("/tasks"), resp.Token, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("wrong password", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
			"email":    "alice@example.com",
			"password": "wrong",
		}, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown email", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
			"email":    "nobody@example.com",
			"password": "password123",
		}, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestPasswordResetRateLimit(t *testing.T) {
	f := newFixture(t)
	body := map[string]string{"email": "alice@example.com"}

	rec := f.do(t, http.MethodPost, "/v1/auth/password-reset", "", body, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/auth/password-reset", "", body, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	t.Run("case and whitespace share one quota", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/v1/auth/password-reset", "",
			map[string]string{"email": "  ALICE@example.com "}, nil)
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
	})

	t.Run("unknown email gets the same accepted response", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/v1/auth/password-reset", "",
			map[string]string{"email": "ghost@example.com"}, nil)
		require.Equal(t, http.StatusAccepted, rec.Code)
	})
}

func TestPasswordResetConfirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Mail delivery is disabled in tests, so seed the token the way
	// the reset-request handler stores it.
	token := "pwreset:seeded-reset-token"
	require.NoError(t, f.store.CreateSession(ctx, model.Session{
		Token:     token,
		UserID:    f.bob.user.ID,
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}))

	rec := f.do(t, http.MethodPost, "/v1/auth/password-reset/confirm", "",
		map[string]string{"token": token, "new_password": "brand-new-pass"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The new password logs in; the old one no longer does.
	rec = f.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": "bob@example.com", "password": "brand-new-pass",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": "bob@example.com", "password": "password123",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// The token is single-use.
	rec = f.do(t, http.MethodPost, "/v1/auth/password-reset/confirm", "",
		map[string]string{"token": token, "new_password": "another-pass"}, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCronEndpointsRequireSuperAdmin(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/cron/routinary", f.alice.token, nil, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// No scheduler wired: the operator gets a 404, not a 403.
	rec = f.do(t, http.MethodPost, "/v1/cron/routinary", f.operator.token, nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTaskLifecycle(t *testing.T) {
	f := newFixture(t)

	var created model.Task
	rec := f.do(t, http.MethodPost, f.wsPath("/tasks"), f.alice.token, map[string]any{
		"title":       "Renew TLS certificates",
		"description": "All public endpoints",
		"status":      model.TaskStatusTodo,
	}, &created)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, int64(1), created.Number)
	require.Equal(t, "Task #0000001", created.DisplayNumber())

	t.Run("numbers are sequential", func(t *testing.T) {
		var second model.Task
		rec := f.do(t, http.MethodPost, f.wsPath("/tasks"), f.alice.token, map[string]any{
			"title": "Rotate API keys",
		}, &second)
		require.Equal(t, http.StatusCreated, rec.Code)
		require.Equal(t, int64(2), second.Number)
	})

	t.Run("empty title rejected", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, f.wsPath("/tasks"), f.alice.token, map[string]any{
			"title": "   ",
		}, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("status transition", func(t *testing.T) {
		var updated model.Task
		rec := f.do(t, http.MethodPost, f.wsPath("/tasks/"+created.ID+"/status"),
			f.bob.token, map[string]string{"status": model.TaskStatusInProgress}, &updated)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, model.TaskStatusInProgress, updated.Status)
	})

	t.Run("invalid status rejected", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, f.wsPath("/tasks/"+created.ID+"/status"),
			f.bob.token, map[string]string{"status": "SHIPPED"}, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown task is 404", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, f.wsPath("/tasks/nope"), f.bob.token, nil, nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCrossWorkspaceTaskReadsAsMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.CreateWorkspace(ctx, model.Workspace{ID: "ws-2", Name: "Other", Slug: "other"}))
	other := model.Task{ID: "task-other", WorkspaceID: "ws-2", Title: "Private", CreatedBy: f.outsider.user.ID}
	require.NoError(t, f.store.CreateTask(ctx, &other))

	rec := f.do(t, http.MethodGet, f.wsPath("/tasks/task-other"), f.alice.token, nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCrossWorkspaceChecklistItemReadsAsMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.CreateWorkspace(ctx, model.Workspace{ID: "ws-2", Name: "Other", Slug: "other"}))
	other := model.Task{ID: "task-other", WorkspaceID: "ws-2", Title: "Private", CreatedBy: f.outsider.user.ID}
	require.NoError(t, f.store.CreateTask(ctx, &other))
	require.NoError(t, f.store.AddChecklistItem(ctx, model.ChecklistItem{
		ID: "item-other", TaskID: other.ID, Text: "secret step",
	}))

	rec := f.do(t, http.MethodPost, f.wsPath("/checklist/item-other/toggle"), f.alice.token, nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	items, err := f.store.GetChecklistItems(ctx, other.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.False(t, items[0].Checked, "foreign workspace item must stay untouched")
}

func TestAssignmentNotifies(t *testing.T) {
	f := newFixture(t)

	var task model.Task
	rec := f.do(t, http.MethodPost, f.wsPath("/tasks"), f.alice.token,
		map[string]any{"title": "Audit backups"}, &task)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, f.wsPath("/tasks/"+task.ID+"/assignee"),
		f.alice.token, map[string]string{"member_id": f.bob.member.ID}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var feed struct {
		Notifications []model.Notification `json:"notifications"`
		Total         int                  `json:"total"`
	}
	rec = f.do(t, http.MethodGet, f.wsPath("/notifications"), f.bob.token, nil, &feed)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, feed.Total)
	require.Equal(t, model.NotificationTaskAssigned, feed.Notifications[0].Type)
	require.Equal(t, task.ID, *feed.Notifications[0].TaskID)

	t.Run("self-assignment is silent", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, f.wsPath("/tasks/"+task.ID+"/assignee"),
			f.alice.token, map[string]string{"member_id": f.alice.member.ID}, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = f.do(t, http.MethodGet, f.wsPath("/notifications"), f.alice.token, nil, &feed)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, 0, feed.Total)
	})

	t.Run("member from another workspace rejected", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, f.wsPath("/tasks/"+task.ID+"/assignee"),
			f.alice.token, map[string]string{"member_id": "member-elsewhere"}, nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestMessageMentionsNotify(t *testing.T) {
	f := newFixture(t)

	var task model.Task
	rec := f.do(t, http.MethodPost, f.wsPath("/tasks"), f.alice.token,
		map[string]any{"title": "Draft release notes"}, &task)
	require.Equal(t, http.StatusCreated, rec.Code)

	var posted struct {
		MentionsNotified int `json:"mentions_notified"`
	}
	rec = f.do(t, http.MethodPost, f.wsPath("/tasks/"+task.ID+"/messages"),
		f.alice.token, map[string]string{"content": "@BobTran can you review this?"}, &posted)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, 1, posted.MentionsNotified)

	var feed struct {
		Notifications []model.Notification `json:"notifications"`
		Total         int                  `json:"total"`
	}
	rec = f.do(t, http.MethodGet, f.wsPath("/notifications?type=MENTION"), f.bob.token, nil, &feed)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, feed.Total)
	require.Contains(t, feed.Notifications[0].Message, "Task #0000001")

	t.Run("mark read by task", func(t *testing.T) {
		var res struct {
			Updated int64 `json:"updated"`
		}
		rec := f.do(t, http.MethodPost, f.wsPath("/notifications/read"),
			f.bob.token, map[string]any{"task_id": task.ID}, &res)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, int64(1), res.Updated)

		rec = f.do(t, http.MethodGet, f.wsPath("/notifications?unread=true"), f.bob.token, nil, &feed)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, 0, feed.Total)
	})
}

func TestMarkReadRequiresTarget(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, f.wsPath("/notifications/read"),
		f.bob.token, map[string]any{}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServiceCreationIsAdminOnly(t *testing.T) {
	f := newFixture(t)

	body := map[string]any{
		"name":                 "Nightly backups",
		"is_routinary":         true,
		"routinary_frequency":  "daily",
		"routinary_start_date": time.Now().UTC().Format(time.RFC3339),
		"checklist_template":   []string{"Check disk space", "Verify restore"},
	}

	rec := f.do(t, http.MethodPost, f.wsPath("/services"), f.bob.token, body, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	var svc model.Service
	rec = f.do(t, http.MethodPost, f.wsPath("/services"), f.alice.token, body, &svc)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, svc.IsRoutinary)
	require.NotNil(t, svc.RoutinaryNextRunDate)

	t.Run("routinary without frequency rejected", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, f.wsPath("/services"), f.alice.token,
			map[string]any{"name": "Broken", "is_routinary": true}, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestChecklistEndpoints(t *testing.T) {
	f := newFixture(t)

	var task model.Task
	rec := f.do(t, http.MethodPost, f.wsPath("/tasks"), f.alice.token,
		map[string]any{"title": "Onboard new hire"}, &task)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, f.wsPath("/tasks/"+task.ID+"/checklist"),
		f.bob.token, map[string]any{"text": "Create accounts"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var list struct {
		Items []model.ChecklistItem `json:"items"`
	}
	rec = f.do(t, http.MethodGet, f.wsPath("/tasks/"+task.ID+"/checklist"), f.bob.token, nil, &list)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, list.Items, 1)
	require.False(t, list.Items[0].Checked)

	rec = f.do(t, http.MethodPost, f.wsPath("/checklist/"+list.Items[0].ID+"/toggle"),
		f.bob.token, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, f.wsPath("/tasks/"+task.ID+"/checklist"), f.bob.token, nil, &list)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, list.Items[0].Checked)
}

func TestAnalytics(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		rec := f.do(t, http.MethodPost, f.wsPath("/tasks"), f.alice.token,
			map[string]any{"title": fmt.Sprintf("Task %d", i)}, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	var stats store.WorkspaceStats
	rec := f.do(t, http.MethodGet, f.wsPath("/analytics"), f.alice.token, nil, &stats)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 3, stats.TotalTasks)
}

func TestNotificationStream(t *testing.T) {
	f := newFixture(t)

	ts := httptest.NewServer(f.server)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := ts.URL + f.wsPath("/notifications/stream") + "?token=" + f.bob.token
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	f.hub.Publish(model.Notification{
		ID:          "n-1",
		WorkspaceID: f.workspace.ID,
		RecipientID: f.bob.user.ID,
		Type:        model.NotificationSystem,
		Title:       "Deploy finished",
	})

	var got model.Notification
	require.NoError(t, wsjson.Read(ctx, conn, &got))
	require.Equal(t, "n-1", got.ID)
	require.Equal(t, "Deploy finished", got.Title)
}
