package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/config"
)

// QueueEmail is the asynq queue every email task is placed on.
const QueueEmail = "email"

type Client struct {
	client *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		client: asynq.NewClient(RedisOpt(cfg)),
	}
}

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) EnqueueViolationNotification(ctx context.Context, payload ViolationNotificationPayload) error {
	return c.enqueue(ctx, TypeViolationNotification, payload, asynq.MaxRetry(5), asynq.Timeout(time.Minute))
}

func (c *Client) EnqueueResidentNotice(ctx context.Context, payload ResidentNoticePayload) error {
	return c.enqueue(ctx, TypeResidentNotice, payload, asynq.MaxRetry(5), asynq.Timeout(time.Minute))
}

func (c *Client) EnqueueSubscriptionEmail(ctx context.Context, payload SubscriptionEmailPayload) error {
	return c.enqueue(ctx, TypeSubscriptionEmail, payload, asynq.MaxRetry(3), asynq.Timeout(time.Minute))
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload interface{}, opts ...asynq.Option) error {
	task, err := NewTask(taskType, payload)
	if err != nil {
		return err
	}
	opts = append(opts, asynq.Queue(QueueEmail))
	if _, err := c.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}

// NewTask encodes payload as the JSON body of a task of the given type.
func NewTask(taskType string, payload interface{}) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(taskType, data), nil
}
