package tasks

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/voxlane/voice-platform/internal/domain"
	"github.com/voxlane/voice-platform/pkg/logger"
	"github.com/voxlane/voice-platform/pkg/redis"
)

// TaskChannel is the Redis pub/sub channel shared by all API instances and
// agent workers.
const TaskChannel = "voxlane:voice:session:tasks"

// TaskType defines the type of session task
type TaskType string

const (
	TaskTypeJoinRoom TaskType = "join_room" // a room is waiting for an agent participant
	TaskTypeEndCall  TaskType = "end_call"  // tear a session down early
)

// SessionTask tells a worker to act on a room. Resolved is the agent
// payload resolved at call start; room metadata is the worker's fallback
// when a task arrives without it.
type SessionTask struct {
	Type      TaskType              `json:"type"`
	RoomName  string                `json:"room_name"`
	CallID    string                `json:"call_id,omitempty"`
	Resolved  *domain.ResolvedAgent `json:"resolved,omitempty"`
	IssuedBy  string                `json:"issued_by,omitempty"`
	Attempt   int                   `json:"attempt,omitempty"`
	RequestID string                `json:"request_id,omitempty"`
}

// Bus defines the interface for the session task bus
type Bus interface {
	Publish(ctx context.Context, task SessionTask) error
	Subscribe(ctx context.Context, handler func(SessionTask)) error
}

// RedisBus implements the Bus interface using Redis Pub/Sub
type RedisBus struct {
	redisSvc redis.RedisServiceInterface
}

// NewRedisBus creates a new Redis-based task bus
func NewRedisBus(redisSvc redis.RedisServiceInterface) *RedisBus {
	return &RedisBus{redisSvc: redisSvc}
}

// Publish sends a task to the bus
func (b *RedisBus) Publish(ctx context.Context, task SessionTask) error {
	logger.Base().Debug("publishing session task",
		zap.String("type", string(task.Type)),
		zap.String("room_name", task.RoomName))
	return b.redisSvc.Publish(ctx, TaskChannel, task)
}

// Subscribe listens for tasks on the bus
func (b *RedisBus) Subscribe(ctx context.Context, handler func(SessionTask)) error {
	logger.Base().Info("subscribing to session tasks")
	return b.redisSvc.Subscribe(ctx, TaskChannel, func(payload string) {
		var task SessionTask
		if err := json.Unmarshal([]byte(payload), &task); err != nil {
			logger.Base().Error("failed to unmarshal task payload", zap.Error(err))
			return
		}
		handler(task)
	})
}
