// Package realtime broadcasts job status changes over Redis pub/sub so
// subscribed clients learn about completion without polling the database.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "analysis:status:"

// StatusEvent is one published status change for a job.
type StatusEvent struct {
	JobID   string `json:"jobId"`
	Status  string `json:"status"`
	IsReady bool   `json:"isReady"`
	Error   string `json:"error,omitempty"`
}

// Notifier publishes job status events to a per-job channel.
type Notifier struct {
	client *redis.Client
}

// NewNotifier wraps an existing Redis client.
func NewNotifier(client *redis.Client) *Notifier {
	return &Notifier{client: client}
}

// Connect dials Redis and verifies the connection.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		// Plain host:port addresses are accepted too.
		opts = &redis.Options{Addr: addr}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// PublishStatus emits a status event on the job's channel.
func (n *Notifier) PublishStatus(ctx context.Context, jobID, status string, ready bool, errMsg string) error {
	payload, err := json.Marshal(StatusEvent{
		JobID:   jobID,
		Status:  status,
		IsReady: ready,
		Error:   errMsg,
	})
	if err != nil {
		return fmt.Errorf("encode status event: %w", err)
	}
	if err := n.client.Publish(ctx, channelPrefix+jobID, payload).Err(); err != nil {
		return fmt.Errorf("publish status event: %w", err)
	}
	return nil
}
