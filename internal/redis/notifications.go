package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// maxNotifications bounds each user's list; older entries are trimmed.
const maxNotifications = 100

type Notification struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Content   string    `json:"content"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationStore keeps in-app notifications as a capped Redis list per
// user, newest first.
type NotificationStore struct {
	client *redis.Client
}

func NewNotificationStore(client *redis.Client) *NotificationStore {
	return &NotificationStore{client: client}
}

func notificationsKey(userID uuid.UUID) string {
	return "notifications:" + userID.String()
}

func (s *NotificationStore) Send(ctx context.Context, targetUserID uuid.UUID, content string) error {
	n := Notification{
		ID:        uuid.New(),
		UserID:    targetUserID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	key := notificationsKey(targetUserID)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, maxNotifications-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push notification: %w", err)
	}
	return nil
}

// Recent returns up to limit notifications for userID, newest first.
func (s *NotificationStore) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 20
	}

	raw, err := s.client.LRange(ctx, notificationsKey(userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read notifications: %w", err)
	}

	out := make([]Notification, 0, len(raw))
	for _, item := range raw {
		var n Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			// skip entries written by an incompatible version
			continue
		}
		out = append(out, n)
	}
	return out, nil
}
