// Package agent runs the voice agent worker: a process that joins LiveKit
// rooms on demand and bridges callers to a realtime model.
package agent

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/voxlane/voice-platform/internal/agent/apiclient"
	"github.com/voxlane/voice-platform/internal/providers"
	"github.com/voxlane/voice-platform/internal/tasks"
	"github.com/voxlane/voice-platform/pkg/logger"
)

// Config holds everything a worker needs. It carries no database access;
// all state flows through the service API and room metadata.
type Config struct {
	ServerAPIURL     string
	InternalAPIKey   string
	LiveKitServerURL string
	LiveKitAPIKey    string
	LiveKitAPISecret string
	OpenAIAPIKey     string
}

// Worker consumes session tasks and runs one Session per room.
type Worker struct {
	cfg      Config
	api      *apiclient.Client
	bus      *tasks.RedisBus
	registry *providers.Registry

	mu       sync.Mutex
	sessions map[string]*Session
	wg       sync.WaitGroup
}

// NewWorker creates a new voice agent worker
func NewWorker(cfg Config, bus *tasks.RedisBus) *Worker {
	return &Worker{
		cfg:      cfg,
		api:      apiclient.NewClient(cfg.ServerAPIURL, cfg.InternalAPIKey),
		bus:      bus,
		registry: providers.Default(),
		sessions: make(map[string]*Session),
	}
}

// Run subscribes to the task bus and blocks until ctx is cancelled, then
// waits for in-flight sessions to wind down.
func (w *Worker) Run(ctx context.Context) error {
	err := w.bus.Subscribe(ctx, func(task tasks.SessionTask) {
		w.handleTask(ctx, task)
	})
	if err != nil {
		return err
	}

	logger.Base().Info("agent worker running")
	<-ctx.Done()

	logger.Base().Info("agent worker shutting down")
	w.mu.Lock()
	for _, s := range w.sessions {
		s.requestHangup("worker shutdown")
	}
	w.mu.Unlock()
	w.wg.Wait()

	return nil
}

func (w *Worker) handleTask(ctx context.Context, task tasks.SessionTask) {
	switch task.Type {
	case tasks.TaskTypeJoinRoom:
		w.joinRoom(ctx, task)
	case tasks.TaskTypeEndCall:
		w.endCall(task)
	default:
		logger.Base().Warn("unknown task type", zap.String("type", string(task.Type)))
	}
}

func (w *Worker) joinRoom(ctx context.Context, task tasks.SessionTask) {
	w.mu.Lock()
	if _, exists := w.sessions[task.RoomName]; exists {
		w.mu.Unlock()
		logger.Base().Debug("room already has a session", zap.String("room", task.RoomName))
		return
	}
	s := newSession(w, task)
	w.sessions[task.RoomName] = s
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			w.mu.Lock()
			delete(w.sessions, task.RoomName)
			w.mu.Unlock()
		}()

		logger.Base().Info("joining room",
			zap.String("room", task.RoomName),
			zap.String("call_id", task.CallID))
		s.Run(ctx)
	}()
}

func (w *Worker) endCall(task tasks.SessionTask) {
	w.mu.Lock()
	s, ok := w.sessions[task.RoomName]
	w.mu.Unlock()

	if !ok {
		logger.Base().Debug("end_call for unknown room", zap.String("room", task.RoomName))
		return
	}
	s.requestHangup("end_call task")
}

// ActiveSessions reports how many rooms the worker is currently serving.
func (w *Worker) ActiveSessions() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sessions)
}
