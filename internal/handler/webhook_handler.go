package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	"github.com/livekit/protocol/webhook"
	"go.uber.org/zap"

	"github.com/voxlane/voice-platform/internal/domain"
	"github.com/voxlane/voice-platform/internal/repository"
	"github.com/voxlane/voice-platform/internal/services/session"
	"github.com/voxlane/voice-platform/internal/tasks"
	"github.com/voxlane/voice-platform/pkg/logger"
)

// WebhookHandler processes LiveKit server webhooks. Inbound SIP calls land
// in dispatch-created rooms the API never saw, so participant_joined is
// where their call records are opened and a worker is summoned.
type WebhookHandler struct {
	agentRepo repository.AgentConfigRepository
	callRepo  repository.CallRecordRepository
	taskBus   tasks.Bus
	verifier  auth.KeyProvider
}

// NewWebhookHandler creates a new LiveKit webhook handler
func NewWebhookHandler(agentRepo repository.AgentConfigRepository, callRepo repository.CallRecordRepository, taskBus tasks.Bus, apiKey, apiSecret string) *WebhookHandler {
	return &WebhookHandler{
		agentRepo: agentRepo,
		callRepo:  callRepo,
		taskBus:   taskBus,
		verifier:  auth.NewSimpleKeyProvider(apiKey, apiSecret),
	}
}

// HandleLiveKitWebhook godoc
// @Summary LiveKit webhook receiver
// @Description Verifies and processes room lifecycle events from the LiveKit server
// @Tags webhooks
// @Success 200 "Processed"
// @Failure 401 {object} map[string]string "Bad signature"
// @Router /webhooks/livekit [post]
func (h *WebhookHandler) HandleLiveKitWebhook(w http.ResponseWriter, r *http.Request) {
	event, err := webhook.ReceiveWebhookEvent(r, h.verifier)
	if err != nil {
		logger.L().Warn("rejected LiveKit webhook", zap.Error(err))
		writeError(w, http.StatusUnauthorized, "invalid webhook signature")
		return
	}

	logger.L().Debug("LiveKit webhook",
		zap.String("event", event.Event),
		zap.String("room", roomName(event)))

	switch event.Event {
	case "participant_joined":
		h.handleParticipantJoined(r, event)
	case "room_finished":
		h.handleRoomFinished(r, event)
	}

	w.WriteHeader(http.StatusOK)
}

func roomName(event *livekit.WebhookEvent) string {
	if event.Room == nil {
		return ""
	}
	return event.Room.Name
}

// handleParticipantJoined opens a call record when a SIP caller lands in a
// dispatch-created room. Rooms the API created itself already carry
// metadata and a call record, so those are skipped.
func (h *WebhookHandler) handleParticipantJoined(r *http.Request, event *livekit.WebhookEvent) {
	room := roomName(event)
	if event.Participant == nil || room == "" {
		return
	}

	isSIP := event.Participant.Kind == livekit.ParticipantInfo_SIP ||
		strings.HasPrefix(event.Participant.Identity, "sip-")
	if !isSIP {
		return
	}

	agentID, ok := session.AgentIDFromRoomName(room)
	if !ok {
		return
	}

	ctx := r.Context()

	// Rooms we placed calls into are already tracked.
	if _, err := h.callRepo.GetByRoomName(ctx, room); err == nil {
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		logger.L().Error("failed to look up call for room", zap.String("room", room), zap.Error(err))
		return
	}

	agent, err := h.agentRepo.GetByID(ctx, agentID)
	if err != nil {
		logger.L().Error("inbound call for unknown agent",
			zap.String("agent_id", agentID), zap.String("room", room), zap.Error(err))
		return
	}

	rec := &domain.CallRecord{
		AgentID:      agent.ID,
		Direction:    domain.CallDirectionInbound,
		RoomName:     room,
		PeerIdentity: event.Participant.Identity,
		Status:       domain.CallStatusActive,
		StartedAt:    time.Now().UTC(),
	}
	if err := h.callRepo.Create(ctx, rec); err != nil {
		logger.L().Error("failed to create inbound call record",
			zap.String("room", room), zap.Error(err))
		return
	}

	resolved := session.Resolve(agent, domain.CallDirectionInbound)
	resolved.CallID = rec.ID

	task := tasks.SessionTask{
		Type:     tasks.TaskTypeJoinRoom,
		RoomName: room,
		CallID:   rec.ID,
		Resolved: resolved,
		IssuedBy: "livekit-webhook",
	}
	if err := h.taskBus.Publish(ctx, task); err != nil {
		logger.L().Error("failed to publish join task for inbound call",
			zap.String("room", room), zap.String("call_id", rec.ID), zap.Error(err))
	}
}

// handleRoomFinished closes the call record if the worker did not get to it,
// e.g. when the caller hung up before a session was established.
func (h *WebhookHandler) handleRoomFinished(r *http.Request, event *livekit.WebhookEvent) {
	room := roomName(event)
	if room == "" {
		return
	}
	if _, ok := session.AgentIDFromRoomName(room); !ok {
		return
	}

	ctx := r.Context()

	rec, err := h.callRepo.GetByRoomName(ctx, room)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.L().Error("failed to look up call for finished room",
				zap.String("room", room), zap.Error(err))
		}
		return
	}

	if rec.Status != domain.CallStatusActive && rec.Status != domain.CallStatusInitiated {
		return
	}

	now := time.Now().UTC()
	status := domain.CallStatusCompleted
	duration := int(now.Sub(rec.StartedAt).Seconds())
	if duration < 0 {
		duration = 0
	}

	_, err = h.callRepo.Update(ctx, rec.ID, &domain.UpdateCallRecordRequest{
		Status:   &status,
		EndedAt:  &now,
		Duration: &duration,
	})
	if err != nil {
		logger.L().Error("failed to close call for finished room",
			zap.String("call_id", rec.ID), zap.Error(err))
	}
}
