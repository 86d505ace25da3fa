package transcript

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxlane/voice-platform/internal/domain"
)

func TestRenderPDF(t *testing.T) {
	rec := &domain.CallRecord{
		ID:        "call-1",
		Direction: domain.CallDirectionInbound,
		StartedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Duration:  95,
		Transcript: domain.Transcript{
			{Role: "agent", Text: "Hello! How can I help you today?", AtMilli: 0},
			{Role: "caller", Text: "I'd like to check my order status.", AtMilli: 3200},
			{Role: "agent", Text: "Sure, let me look that up.", AtMilli: 6800},
		},
	}

	data, err := RenderPDF("Support Agent", rec)
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestRenderPDF_EmptyTranscript(t *testing.T) {
	rec := &domain.CallRecord{
		ID:        "call-2",
		Direction: domain.CallDirectionWeb,
		StartedAt: time.Now(),
	}

	data, err := RenderPDF("Support Agent", rec)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestFormatOffset(t *testing.T) {
	assert.Equal(t, "00:00", formatOffset(0))
	assert.Equal(t, "00:03", formatOffset(3200*time.Millisecond))
	assert.Equal(t, "01:35", formatOffset(95*time.Second))
}
