package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForAgent_CapabilityGating(t *testing.T) {
	enabled := []string{ToolEndCall, ToolCalendarRead, ToolKnowledgeLookup}

	// No OAuth, no knowledge base: dependent tools are unavailable and
	// forced off even though the config enables them.
	annotated := ForAgent(enabled, false, false)

	byName := make(map[string]AgentTool)
	for _, tool := range annotated {
		byName[tool.Name] = tool
	}

	require.Contains(t, byName, ToolEndCall)
	assert.True(t, byName[ToolEndCall].Enabled)
	assert.True(t, byName[ToolEndCall].Available)

	assert.False(t, byName[ToolCalendarRead].Available)
	assert.False(t, byName[ToolCalendarRead].Enabled)

	assert.False(t, byName[ToolKnowledgeLookup].Available)
	assert.False(t, byName[ToolKnowledgeLookup].Enabled)

	// With both capabilities the same config lights them up.
	annotated = ForAgent(enabled, true, true)
	for _, tool := range annotated {
		byName[tool.Name] = tool
	}
	assert.True(t, byName[ToolCalendarRead].Enabled)
	assert.True(t, byName[ToolKnowledgeLookup].Enabled)

	// Enabled set only contains what the config asked for.
	assert.False(t, byName[ToolWebSearch].Enabled)
	assert.True(t, byName[ToolWebSearch].Available)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(ToolEndCall))
	assert.True(t, Valid(ToolCalendarCreate))
	assert.False(t, Valid("launch_missiles"))
}
