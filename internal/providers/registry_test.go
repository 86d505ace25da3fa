package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		input    string
		provider string
		model    string
		wantErr  bool
	}{
		{"openai/gpt-4o-mini", "openai", "gpt-4o-mini", false},
		{"deepgram/nova-2", "deepgram", "nova-2", false},
		{"elevenlabs/turbo-v2", "elevenlabs", "turbo-v2", false},
		{"gpt-4o-mini", "", "", true}, // no provider
		{"openai/", "", "", true},     // no model
		{"/gpt-4o", "", "", true},     // no provider
		{"", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			ref, err := ParseRef(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.provider, ref.Provider)
			assert.Equal(t, tt.model, ref.Model)
			assert.Equal(t, tt.input, ref.String())
		})
	}
}

func TestRegistry_Resolve(t *testing.T) {
	r := Default()

	entry, err := r.Resolve(KindLLM, "openai/gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, "openai", entry.Ref.Provider)
	assert.Equal(t, "gpt-4o-mini", entry.Ref.Model)

	// A selector registered for one capability does not leak into another.
	_, err = r.Resolve(KindTTS, "openai/gpt-4o-mini")
	assert.Error(t, err)

	_, err = r.Resolve(KindLLM, "openai/gpt-99")
	assert.Error(t, err)
}

func TestRegistry_ValidateSelectors(t *testing.T) {
	r := Default()

	err := r.ValidateSelectors("openai/gpt-4o-mini", "deepgram/nova-2", "openai/tts-1")
	assert.NoError(t, err)

	err = r.ValidateSelectors("openai/gpt-4o-mini", "deepgram/nova-2", "acme/unknown")
	assert.Error(t, err)
}

func TestRegistry_ListIsSorted(t *testing.T) {
	r := Default()

	entries := r.List(KindLLM)
	require.NotEmpty(t, entries)
	for i := 1; i < len(entries); i++ {
		assert.Less(t, entries[i-1].Selector, entries[i].Selector)
	}
}
