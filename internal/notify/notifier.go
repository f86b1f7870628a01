package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/workboard/internal/model"
	"github.com/nhle/workboard/internal/store"
)

// Notifier creates notification records as side effects of task
// mutations. Creation failures are logged and swallowed: the primary
// mutation already succeeded and is never rolled back for a
// notification failure.
type Notifier struct {
	store  store.Store
	hub    *Hub
	logger *zap.Logger
}

// NewNotifier creates a Notifier. hub may be nil when no live stream
// is wanted (e.g. one-shot CLI runs).
func NewNotifier(s store.Store, hub *Hub, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{store: s, hub: hub, logger: logger}
}

// MessageMentions resolves mentions in a freshly-created task message
// and creates one MENTION notification per recipient. Returns the
// number of notifications created.
func (n *Notifier) MessageMentions(
	ctx context.Context,
	msg model.TaskMessage,
	task model.Task,
	author model.Member,
	members []model.Member,
) int {
	mentions := ExtractMentions(msg.Content, members, author.UserID)
	recipients := RecipientUserIDs(mentions, author.UserID)

	created := 0
	for _, userID := range recipients {
		notification := model.Notification{
			WorkspaceID: msg.WorkspaceID,
			RecipientID: userID,
			Type:        model.NotificationMention,
			Title:       fmt.Sprintf("%s mentioned you", author.DisplayName),
			Message: fmt.Sprintf("%s mentioned you on %s: %s",
				author.DisplayName, task.DisplayNumber(), task.Title),
			TaskID:      &msg.TaskID,
			MessageID:   &msg.ID,
			MentionerID: &author.UserID,
		}
		if n.deliver(ctx, notification) {
			created++
		}
	}
	return created
}

// TaskAssigned notifies a member that a task was assigned to them.
// Self-assignment produces no notification.
func (n *Notifier) TaskAssigned(ctx context.Context, task model.Task, assignee model.Member, actor model.Member) {
	if assignee.UserID == actor.UserID {
		return
	}
	n.deliver(ctx, model.Notification{
		WorkspaceID: task.WorkspaceID,
		RecipientID: assignee.UserID,
		Type:        model.NotificationTaskAssigned,
		Title:       "Task assigned to you",
		Message: fmt.Sprintf("%s assigned %s to you: %s",
			actor.DisplayName, task.DisplayNumber(), task.Title),
		TaskID: &task.ID,
	})
}

// ReviewerAssigned notifies a member that they were made reviewer of
// a task. Self-assignment produces no notification.
func (n *Notifier) ReviewerAssigned(ctx context.Context, task model.Task, reviewer model.Member, actor model.Member) {
	if reviewer.UserID == actor.UserID {
		return
	}
	n.deliver(ctx, model.Notification{
		WorkspaceID: task.WorkspaceID,
		RecipientID: reviewer.UserID,
		Type:        model.NotificationReviewerAssigned,
		Title:       "Review requested",
		Message: fmt.Sprintf("%s requested your review on %s: %s",
			actor.DisplayName, task.DisplayNumber(), task.Title),
		TaskID: &task.ID,
	})
}

// Deliver persists a caller-constructed notification and publishes it
// to the live stream. Unlike the side-effect helpers above, failures
// surface to the caller: an explicit send that fails is an error.
func (n *Notifier) Deliver(ctx context.Context, notification model.Notification) (model.Notification, error) {
	if notification.ID == "" {
		notification.ID = uuid.New().String()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	if err := n.store.CreateNotification(ctx, notification); err != nil {
		return model.Notification{}, fmt.Errorf("creating notification: %w", err)
	}
	if n.hub != nil {
		n.hub.Publish(notification)
	}
	return notification, nil
}

// deliver persists a notification and publishes it to the live
// stream. Reports whether the record was created.
func (n *Notifier) deliver(ctx context.Context, notification model.Notification) bool {
	if notification.ID == "" {
		notification.ID = uuid.New().String()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	if err := n.store.CreateNotification(ctx, notification); err != nil {
		n.logger.Warn("notification creation failed",
			zap.String("recipient", notification.RecipientID),
			zap.String("type", string(notification.Type)),
			zap.Error(err),
		)
		return false
	}
	if n.hub != nil {
		n.hub.Publish(notification)
	}
	return true
}
