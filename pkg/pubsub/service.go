package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voxlane/voice-platform/pkg/logger"
)

type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
	PubID     string `mapstructure:"pub_id"`
}

type PubSubService struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	config *PubSubConfig
}

// CallLifecycleEvent models the call lifecycle payload published per call.
// Downstream billing and analytics consumers subscribe to these.
type CallLifecycleEvent struct {
	CallID    string     `json:"call_id"`
	AgentID   string     `json:"agent_id"`
	UserID    string     `json:"user_id"`
	Direction string     `json:"direction"`
	Status    string     `json:"status"`
	RoomName  string     `json:"room_name"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Duration  int        `json:"duration"`
	TurnCount int        `json:"turn_count"`
	CreatedAt time.Time  `json:"created_at"`
}

func NewPubSubService(ctx context.Context, cfg *PubSubConfig) (*PubSubService, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("PubSub project ID is required")
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create PubSub client: %w", err)
	}

	topic := client.Topic(cfg.TopicName)
	exists, err := topic.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to check if topic exists: %w", err)
	}

	if !exists {
		logger.Base().Info("topic does not exist, creating", zap.String("topic", cfg.TopicName))
		topic, err = client.CreateTopic(ctx, cfg.TopicName)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to create topic %s: %w", cfg.TopicName, err)
		}
	}

	return &PubSubService{
		client: client,
		topic:  topic,
		config: cfg,
	}, nil
}

// PublishCallEvent publishes a call lifecycle event.
func (p *PubSubService) PublishCallEvent(ctx context.Context, event CallLifecycleEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal call lifecycle event: %w", err)
	}

	taskID := uuid.New().String()
	message := &pubsub.Message{
		Attributes: map[string]string{
			"name": fmt.Sprintf("%s:%s", p.config.PubID, taskID),
		},
		Data: data,
	}

	result := p.topic.Publish(ctx, message)
	if _, err := result.Get(ctx); err != nil {
		logger.Base().Error("failed to publish call event",
			zap.String("call_id", event.CallID),
			zap.String("agent_id", event.AgentID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish message: %w", err)
	}

	logger.Base().Info("published call event",
		zap.String("call_id", event.CallID),
		zap.String("agent_id", event.AgentID),
		zap.String("status", event.Status),
		zap.String("task_id", taskID),
	)

	return nil
}

func (p *PubSubService) Close() error {
	if p.topic != nil {
		p.topic.Stop()
	}
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
