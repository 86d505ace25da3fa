package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/voxlane/voice-platform/internal/tasks"
	"github.com/voxlane/voice-platform/pkg/logger"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamPingInterval = 30 * time.Second
)

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The API is fronted by a gateway that already enforces origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamHandler serves live call events over WebSocket
type StreamHandler struct {
	calls      *CallHandler
	subscriber tasks.StreamSubscriber
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(calls *CallHandler, subscriber tasks.StreamSubscriber) *StreamHandler {
	return &StreamHandler{
		calls:      calls,
		subscriber: subscriber,
	}
}

// StreamCall godoc
// @Summary Live call event stream
// @Description Upgrades to a WebSocket delivering transcript and status events for an in-flight call
// @Tags calls
// @Param id path string true "Call ID (UUID)" format(uuid)
// @Success 101 "Switching protocols"
// @Failure 403 {object} map[string]string "Not the owner"
// @Failure 404 {object} map[string]string "Call not found"
// @Router /api/calls/{id}/stream [get]
func (h *StreamHandler) StreamCall(w http.ResponseWriter, r *http.Request) {
	call, _ := h.calls.loadOwnedCall(w, r)
	if call == nil {
		return
	}

	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.L().Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	frames := make(chan string, 64)
	err = h.subscriber.SubscribeStream(ctx, call.ID, func(payload string) {
		select {
		case frames <- payload:
		default:
			// Slow consumer; drop rather than stall the bus handler.
		}
	})
	if err != nil {
		logger.L().Error("failed to subscribe to call stream",
			zap.String("call_id", call.ID), zap.Error(err))
		return
	}

	// Reader goroutine: surfaces client disconnects and close frames.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pings := time.NewTicker(streamPingInterval)
	defer pings.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pings.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case payload := <-frames:
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
				return
			}
		}
	}
}
