package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateShareCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := GenerateShareCode()
		require.NoError(t, err)
		assert.Len(t, code, ShareCodeLength)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(shareCodeAlphabet, c), "unexpected character %q", c)
		}
		assert.False(t, seen[code], "share code repeated: %s", code)
		seen[code] = true
	}
}

func TestApplyDefaults(t *testing.T) {
	req := CreateAgentConfigRequest{Name: "Bot", Instructions: "Be helpful"}
	req.ApplyDefaults()

	assert.Equal(t, DefaultVoice, req.Voice)
	assert.Equal(t, DefaultGreeting, req.Greeting)
	assert.Equal(t, DefaultLLMModel, req.LLMModel)
	assert.Equal(t, DefaultSTTModel, req.STTModel)
	assert.Equal(t, DefaultTTSModel, req.TTSModel)
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	req := CreateAgentConfigRequest{
		Name:     "Bot",
		Voice:    "nova",
		TTSModel: "elevenlabs/eleven_turbo_v2",
	}
	req.ApplyDefaults()

	assert.Equal(t, "nova", req.Voice)
	assert.Equal(t, "elevenlabs/eleven_turbo_v2", req.TTSModel)
	assert.Equal(t, DefaultLLMModel, req.LLMModel)
}
