package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jinzhu/copier"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/voxlane/voice-platform/internal/agent/apiclient"
	"github.com/voxlane/voice-platform/internal/agent/realtime"
	"github.com/voxlane/voice-platform/internal/domain"
	"github.com/voxlane/voice-platform/internal/providers"
	"github.com/voxlane/voice-platform/internal/services/session"
	"github.com/voxlane/voice-platform/internal/tasks"
	"github.com/voxlane/voice-platform/pkg/logger"
)

const (
	maxCallDuration = 30 * time.Minute

	// Fallback when the agent's configured LLM has no realtime variant.
	defaultRealtimeModel = "gpt-4o-realtime-preview"
)

// Session is one live voice call: a LiveKit room leg, a model leg and the
// bridge between them.
type Session struct {
	worker   *Worker
	roomName string
	resolved *domain.ResolvedAgent
	callID   string

	api    *apiclient.Client
	stream tasks.StreamPublisher

	room       *lksdk.Room
	rt         *realtime.Client
	localTrack *lksdk.LocalSampleTrack

	startedAt time.Time

	mu         sync.Mutex
	transcript domain.Transcript

	hangupOnce sync.Once
	hangup     chan struct{}
}

func newSession(w *Worker, task tasks.SessionTask) *Session {
	return &Session{
		worker:   w,
		roomName: task.RoomName,
		resolved: task.Resolved,
		callID:   task.CallID,
		api:      w.api,
		stream:   w.bus,
		hangup:   make(chan struct{}),
	}
}

// defaultPersona is the base every resolved agent is overlaid onto, so a
// partially-populated config still yields a working session.
func defaultPersona() *domain.ResolvedAgent {
	return &domain.ResolvedAgent{
		Name:         "Assistant",
		Instructions: "You are a helpful voice assistant. Keep answers short and conversational.",
		Voice:        domain.DefaultVoice,
		Greeting:     domain.DefaultGreeting,
		LLMModel:     domain.DefaultLLMModel,
	}
}

// mergePersona overlays non-empty fields of an agent payload onto the
// default persona.
func mergePersona(resolved *domain.ResolvedAgent) (*domain.ResolvedAgent, error) {
	persona := defaultPersona()
	err := copier.CopyWithOption(persona, resolved, copier.Option{IgnoreEmpty: true})
	if err != nil {
		return nil, fmt.Errorf("failed to merge agent persona: %w", err)
	}
	return persona, nil
}

// pickPayload chooses the agent payload for a session. The task's copy is
// resolved at call start, so it wins; room metadata is the fallback because
// dispatch-rule rooms carry metadata frozen at provisioning time, which goes
// stale when the agent config changes afterwards.
func pickPayload(taskResolved *domain.ResolvedAgent, roomMetadata string) *domain.ResolvedAgent {
	if taskResolved != nil {
		return taskResolved
	}
	meta, err := session.ParseMetadata(roomMetadata)
	if err != nil {
		return nil
	}
	return meta
}

// realtimeModel maps the configured LLM selector to a realtime-capable
// OpenAI model name.
func realtimeModel(registry *providers.Registry, selector string) string {
	entry, err := registry.Resolve(providers.KindLLM, selector)
	if err == nil && entry.Realtime && entry.Ref.Provider == "openai" {
		return entry.Ref.Model
	}
	return defaultRealtimeModel
}

// Run drives the session to completion. It blocks until the call ends.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := s.connectRoom(); err != nil {
		logger.L().Error("failed to join room",
			zap.String("room", s.roomName), zap.Error(err))
		return
	}
	defer s.room.Disconnect()

	s.resolved = pickPayload(s.resolved, s.room.Metadata())
	if s.resolved == nil {
		logger.L().Error("no agent payload for room", zap.String("room", s.roomName))
		return
	}

	persona, err := mergePersona(s.resolved)
	if err != nil {
		logger.L().Error("failed to build persona", zap.Error(err))
		return
	}
	s.resolved = persona

	if err := s.ensureCallRecord(ctx); err != nil {
		logger.L().Error("failed to open call record",
			zap.String("room", s.roomName), zap.Error(err))
		return
	}
	s.startedAt = time.Now().UTC()
	s.publishStream(ctx, tasks.CallStreamEvent{
		Type:   tasks.StreamEventStatus,
		Status: domain.CallStatusActive,
	})

	if err := s.connectRealtime(ctx); err != nil {
		logger.L().Error("failed to connect model",
			zap.String("room", s.roomName), zap.Error(err))
		s.closeCall(ctx, domain.CallStatusFailed)
		return
	}
	defer s.rt.Close()

	logger.L().Info("session established",
		zap.String("room", s.roomName),
		zap.String("call_id", s.callID),
		zap.String("agent_id", s.resolved.AgentID))

	select {
	case <-ctx.Done():
	case <-s.hangup:
	case <-time.After(maxCallDuration):
		logger.L().Warn("session hit max duration", zap.String("call_id", s.callID))
	}

	s.closeCall(context.WithoutCancel(ctx), domain.CallStatusCompleted)
}

func (s *Session) connectRoom() error {
	identity := "agent-" + s.roomName
	if s.resolved != nil {
		identity = "agent-" + s.resolved.AgentID
	}

	room, err := lksdk.ConnectToRoom(s.worker.cfg.LiveKitServerURL, lksdk.ConnectInfo{
		APIKey:              s.worker.cfg.LiveKitAPIKey,
		APISecret:           s.worker.cfg.LiveKitAPISecret,
		RoomName:            s.roomName,
		ParticipantIdentity: identity,
	}, &lksdk.RoomCallback{
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed: s.onTrackSubscribed,
		},
		OnDisconnected: func() {
			s.requestHangup("room disconnected")
		},
	})
	if err != nil {
		return err
	}
	s.room = room
	return nil
}

func (s *Session) ensureCallRecord(ctx context.Context) error {
	if s.callID != "" {
		return nil
	}

	direction := s.resolved.Direction
	if direction == "" {
		direction = domain.CallDirectionInbound
	}
	rec, err := s.api.CreateCall(ctx, &domain.CreateCallRecordRequest{
		AgentID:   s.resolved.AgentID,
		Direction: direction,
		RoomName:  s.roomName,
	})
	if err != nil {
		return err
	}
	s.callID = rec.ID
	return nil
}

func (s *Session) connectRealtime(ctx context.Context) error {
	localTrack, err := lksdk.NewLocalSampleTrack(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: 48000,
		Channels:  1,
	})
	if err != nil {
		return fmt.Errorf("failed to create agent audio track: %w", err)
	}
	s.localTrack = localTrack
	_, err = s.room.LocalParticipant.PublishTrack(localTrack, &lksdk.TrackPublicationOptions{
		Name: "agent-voice",
	})
	if err != nil {
		return fmt.Errorf("failed to publish agent audio: %w", err)
	}

	rt := realtime.NewClient(s.worker.cfg.OpenAIAPIKey)
	s.rt = rt

	rt.OnOpen = func() {
		update := realtime.SessionUpdate(s.resolved.Instructions, s.resolved.Voice, realtimeTools(s.resolved))
		if err := rt.SendEvent(update); err != nil {
			logger.L().Error("failed to configure realtime session", zap.Error(err))
			return
		}
		greet := realtime.ResponseCreate("Greet the caller: " + s.resolved.Greeting)
		if err := rt.SendEvent(greet); err != nil {
			logger.L().Warn("failed to request greeting", zap.Error(err))
		}
	}
	rt.OnEvent = func(event *realtime.ServerEvent) {
		s.handleModelEvent(ctx, event)
	}
	rt.OnAudioTrack = func(track *webrtc.TrackRemote) {
		go forwardToRoom(ctx, track, s.localTrack)
	}

	model := realtimeModel(s.worker.registry, s.resolved.LLMModel)
	return rt.Connect(ctx, model, s.resolved.Voice)
}

func (s *Session) onTrackSubscribed(track *webrtc.TrackRemote, publication *lksdk.RemoteTrackPublication, participant *lksdk.RemoteParticipant) {
	if track.Kind() != webrtc.RTPCodecTypeAudio {
		return
	}
	// The agent's own published track never arrives here; every subscribed
	// audio track is a caller.
	logger.L().Info("caller audio subscribed",
		zap.String("room", s.roomName),
		zap.String("participant", participant.Identity()))
	go forwardToRealtime(context.Background(), track, s.rt)
}

func (s *Session) handleModelEvent(ctx context.Context, event *realtime.ServerEvent) {
	switch event.Type {
	case realtime.EventFunctionCallDone:
		go s.runTool(ctx, event)

	case realtime.EventAgentTranscriptDone:
		s.appendTurn("agent", event.Transcript)
		s.publishStream(ctx, tasks.CallStreamEvent{
			Type:    tasks.StreamEventTranscript,
			Role:    "agent",
			Text:    event.Transcript,
			AtMilli: s.offsetMilli(),
		})

	case realtime.EventCallerTranscriptDone:
		s.appendTurn("caller", event.Transcript)
		s.publishStream(ctx, tasks.CallStreamEvent{
			Type:    tasks.StreamEventTranscript,
			Role:    "caller",
			Text:    event.Transcript,
			AtMilli: s.offsetMilli(),
		})

	case realtime.EventError:
		logger.L().Warn("realtime error event",
			zap.String("call_id", s.callID),
			zap.ByteString("event", event.Raw))
	}
}

func (s *Session) runTool(ctx context.Context, event *realtime.ServerEvent) {
	logger.L().Info("tool call",
		zap.String("call_id", s.callID),
		zap.String("tool", event.Name))
	s.publishStream(ctx, tasks.CallStreamEvent{
		Type: tasks.StreamEventToolCall,
		Tool: event.Name,
	})

	result := s.dispatchTool(ctx, event.Name, event.Arguments)
	for _, out := range realtime.FunctionOutput(event.CallID, result) {
		if err := s.rt.SendEvent(out); err != nil {
			logger.L().Warn("failed to return tool output", zap.Error(err))
			return
		}
	}
}

func (s *Session) appendTurn(role, text string) {
	if text == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, domain.TranscriptTurn{
		Role:    role,
		Text:    text,
		AtMilli: s.offsetMilliLocked(),
	})
}

func (s *Session) offsetMilli() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offsetMilliLocked()
}

func (s *Session) offsetMilliLocked() int64 {
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt).Milliseconds()
}

// requestHangup asks the session to end. Safe to call more than once.
func (s *Session) requestHangup(reason string) {
	s.hangupOnce.Do(func() {
		logger.L().Info("ending session",
			zap.String("room", s.roomName),
			zap.String("reason", reason))
		close(s.hangup)
	})
}

func (s *Session) publishStream(ctx context.Context, event tasks.CallStreamEvent) {
	if s.stream == nil || s.callID == "" {
		return
	}
	event.CallID = s.callID
	if err := s.stream.PublishStream(ctx, event); err != nil {
		logger.L().Debug("failed to publish stream event", zap.Error(err))
	}
}

// closeCall persists the final call state and announces the end of stream.
func (s *Session) closeCall(ctx context.Context, status string) {
	if s.callID == "" {
		return
	}

	now := time.Now().UTC()
	duration := 0
	if !s.startedAt.IsZero() {
		duration = int(now.Sub(s.startedAt).Seconds())
	}

	s.mu.Lock()
	transcript := make(domain.Transcript, len(s.transcript))
	copy(transcript, s.transcript)
	s.mu.Unlock()

	req := &domain.UpdateCallRecordRequest{
		Status:   &status,
		EndedAt:  &now,
		Duration: &duration,
	}
	if len(transcript) > 0 {
		req.Transcript = &transcript
	}

	updateCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := s.api.UpdateCall(updateCtx, s.callID, req); err != nil {
		logger.L().Error("failed to close call record",
			zap.String("call_id", s.callID), zap.Error(err))
	}

	s.publishStream(updateCtx, tasks.CallStreamEvent{
		Type:   tasks.StreamEventEnded,
		Status: status,
	})
}
