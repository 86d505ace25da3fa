package session

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxlane/voice-platform/internal/domain"
)

func TestMetadataRoundTrip(t *testing.T) {
	agent := &domain.AgentConfig{
		ID:           uuid.NewString(),
		UserID:       uuid.NewString(),
		Name:         "Reception",
		Instructions: "Answer politely.",
		Voice:        "alloy",
		LLMModel:     "openai/gpt-4o-mini",
		EnabledTools: []string{"end_call"},
	}

	resolved := Resolve(agent, domain.CallDirectionInbound)
	resolved.CallID = "call-123"

	metadata, err := Metadata(resolved)
	require.NoError(t, err)

	parsed, err := ParseMetadata(metadata)
	require.NoError(t, err)
	assert.Equal(t, agent.ID, parsed.AgentID)
	assert.Equal(t, agent.UserID, parsed.OwnerID)
	assert.Equal(t, "call-123", parsed.CallID)
	assert.Equal(t, domain.CallDirectionInbound, parsed.Direction)
	assert.Equal(t, []string{"end_call"}, parsed.EnabledTools)
}

func TestParseMetadata_Invalid(t *testing.T) {
	_, err := ParseMetadata("")
	assert.Error(t, err)

	_, err = ParseMetadata("not json")
	assert.Error(t, err)

	// Valid JSON but no agent id.
	_, err = ParseMetadata(`{"direction":"web"}`)
	assert.Error(t, err)
}

func TestAgentIDFromRoomName(t *testing.T) {
	agentID := uuid.NewString()
	room := RoomName(agentID)

	got, ok := AgentIDFromRoomName(room)
	require.True(t, ok)
	assert.Equal(t, agentID, got)

	_, ok = AgentIDFromRoomName("lobby")
	assert.False(t, ok)

	_, ok = AgentIDFromRoomName("call-short")
	assert.False(t, ok)
}
