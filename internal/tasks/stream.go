package tasks

import (
	"context"
	"fmt"
)

// Stream event types published by the worker as a call progresses.
const (
	StreamEventStatus     = "status"
	StreamEventTranscript = "transcript"
	StreamEventToolCall   = "tool_call"
	StreamEventEnded      = "ended"
)

// CallStreamEvent is one frame on a call's live event stream. Browsers
// consume these over the call WebSocket; the worker publishes them through
// Redis so any API instance can serve the socket.
type CallStreamEvent struct {
	Type    string `json:"type"`
	CallID  string `json:"call_id"`
	Role    string `json:"role,omitempty"`
	Text    string `json:"text,omitempty"`
	Status  string `json:"status,omitempty"`
	Tool    string `json:"tool,omitempty"`
	AtMilli int64  `json:"at_ms,omitempty"`
}

// CallStreamChannel returns the per-call Redis channel for live events.
func CallStreamChannel(callID string) string {
	return fmt.Sprintf("voxlane:voice:call:stream:%s", callID)
}

// PublishStream emits a live event for a call.
func (b *RedisBus) PublishStream(ctx context.Context, event CallStreamEvent) error {
	return b.redisSvc.Publish(ctx, CallStreamChannel(event.CallID), event)
}

// SubscribeStream follows a call's live events until the subscription ends.
func (b *RedisBus) SubscribeStream(ctx context.Context, callID string, handler func(string)) error {
	return b.redisSvc.Subscribe(ctx, CallStreamChannel(callID), handler)
}

// StreamPublisher is the worker-facing side of the live event stream.
type StreamPublisher interface {
	PublishStream(ctx context.Context, event CallStreamEvent) error
}

// StreamSubscriber is the API-facing side of the live event stream.
type StreamSubscriber interface {
	SubscribeStream(ctx context.Context, callID string, handler func(string)) error
}
