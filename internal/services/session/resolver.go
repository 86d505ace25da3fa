package session

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/voxlane/voice-platform/internal/domain"
)

// Resolve flattens an agent config into the self-contained payload the voice
// agent worker consumes from room metadata.
func Resolve(agent *domain.AgentConfig, direction string) *domain.ResolvedAgent {
	return &domain.ResolvedAgent{
		AgentID:              agent.ID,
		OwnerID:              agent.UserID,
		Name:                 agent.Name,
		Instructions:         agent.Instructions,
		Voice:                agent.Voice,
		Greeting:             agent.Greeting,
		LLMModel:             agent.LLMModel,
		STTModel:             agent.STTModel,
		TTSModel:             agent.TTSModel,
		EnabledTools:         agent.EnabledTools,
		KnowledgeBaseEnabled: agent.KnowledgeBaseEnabled,
		Direction:            direction,
	}
}

// Metadata serializes a resolved agent for room or dispatch rule metadata.
func Metadata(resolved *domain.ResolvedAgent) (string, error) {
	data, err := json.Marshal(resolved)
	if err != nil {
		return "", fmt.Errorf("failed to serialize resolved agent: %w", err)
	}
	return string(data), nil
}

// ParseMetadata is the worker-side inverse of Metadata.
func ParseMetadata(metadata string) (*domain.ResolvedAgent, error) {
	if metadata == "" {
		return nil, fmt.Errorf("room metadata is empty")
	}
	var resolved domain.ResolvedAgent
	if err := json.Unmarshal([]byte(metadata), &resolved); err != nil {
		return nil, fmt.Errorf("failed to parse room metadata: %w", err)
	}
	if resolved.AgentID == "" {
		return nil, fmt.Errorf("room metadata carries no agent id")
	}
	return &resolved, nil
}

// RoomName builds a unique per-call room name for an agent.
func RoomName(agentID string) string {
	return fmt.Sprintf("call-%s-%s", agentID, uuid.NewString())
}

// AgentIDFromRoomName extracts the agent id from a per-call room name.
// Room names are "call-{agentID}-{uuid}" where the agent id itself is a UUID.
func AgentIDFromRoomName(room string) (string, bool) {
	rest, ok := strings.CutPrefix(room, "call-")
	if !ok || len(rest) < 36 {
		return "", false
	}
	id := rest[:36]
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}
