package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/provider-booking/internal/mail"
)

const mailOutboxKey = "mail:outbox"

// ErrQueueEmpty is returned by Pop when nothing arrived before the timeout.
var ErrQueueEmpty = errors.New("mail queue empty")

// MailQueue is a FIFO of mail jobs shared by the api-server (producer) and
// the mail-worker (consumer).
type MailQueue struct {
	client *redis.Client
}

func NewMailQueue(client *redis.Client) *MailQueue {
	return &MailQueue{client: client}
}

func (q *MailQueue) Send(ctx context.Context, m mail.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal mail: %w", err)
	}
	if err := q.client.LPush(ctx, mailOutboxKey, data).Err(); err != nil {
		return fmt.Errorf("enqueue mail: %w", err)
	}
	return nil
}

// Pop blocks for up to timeout waiting for the oldest job.
func (q *MailQueue) Pop(ctx context.Context, timeout time.Duration) (*mail.Message, error) {
	res, err := q.client.BRPop(ctx, timeout, mailOutboxKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrQueueEmpty
		}
		return nil, fmt.Errorf("dequeue mail: %w", err)
	}

	// res is [key, value]
	var m mail.Message
	if err := json.Unmarshal([]byte(res[1]), &m); err != nil {
		return nil, fmt.Errorf("decode mail job: %w", err)
	}
	return &m, nil
}

func (q *MailQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, mailOutboxKey).Result()
}
