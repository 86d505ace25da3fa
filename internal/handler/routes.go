package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/voxlane/voice-platform/internal/adapters/exotel"
	"github.com/voxlane/voice-platform/internal/adapters/googleauth"
	"github.com/voxlane/voice-platform/internal/adapters/indexing"
	lk "github.com/voxlane/voice-platform/internal/adapters/livekit"
	"github.com/voxlane/voice-platform/internal/config"
	"github.com/voxlane/voice-platform/internal/domain"
	"github.com/voxlane/voice-platform/internal/providers"
	"github.com/voxlane/voice-platform/internal/repository"
	"github.com/voxlane/voice-platform/internal/services/knowledge"
	"github.com/voxlane/voice-platform/internal/services/outbound"
	"github.com/voxlane/voice-platform/internal/services/provision"
	"github.com/voxlane/voice-platform/internal/tasks"
	"github.com/voxlane/voice-platform/pkg/gcs"
	"github.com/voxlane/voice-platform/pkg/logger"
	"github.com/voxlane/voice-platform/pkg/pubsub"
	"github.com/voxlane/voice-platform/pkg/redis"
	"github.com/voxlane/voice-platform/pkg/twilio"
)

// HandlerManager owns the service graph and all HTTP handlers
type HandlerManager struct {
	config      *config.PlatformConfig
	repoManager repository.RepositoryManager
	redisSvc    *redis.RedisService
	taskBus     tasks.Bus
	pubsubSvc   *pubsub.PubSubService
	gcsClient   *gcs.GCSClient
	turnService *twilio.TokenService

	userHandler      *UserHandler
	agentHandler     *AgentHandler
	telephonyHandler *TelephonyHandler
	callHandler      *CallHandler
	oauthHandler     *OAuthHandler
	knowledgeHandler *KnowledgeHandler
	voiceHandler     *VoiceHandler
	platformHandler  *PlatformHandler
	calendarHandler  *CalendarHandler
	streamHandler    *StreamHandler
	webhookHandler   *WebhookHandler
}

// NewHandlerManager creates and wires all handlers and services
func NewHandlerManager(cfg *config.PlatformConfig) (*HandlerManager, error) {
	// Database
	repoManager, err := repository.NewRepositoryManager()
	if err != nil {
		logger.Base().Error("failed to connect to database", zap.Error(err))
		return nil, err
	}

	// Redis for OAuth state, pipeline cache and the session task bus
	redisSvc, err := redis.NewRedisService(&redis.RedisConfig{
		Host:     config.GetEnvOrDefault("REDIS_HOST", "localhost"),
		Port:     config.GetEnvOrDefault("REDIS_PORT", "6379"),
		Password: config.GetEnvOrDefault("REDIS_PASSWORD", ""),
		DB:       config.GetEnvAsIntOrDefault("REDIS_DB", 0),
	})
	if err != nil {
		logger.Base().Error("failed to connect to redis", zap.Error(err))
		return nil, err
	}
	taskBus := tasks.NewRedisBus(redisSvc)

	// LiveKit control plane
	lkConfig, err := lk.NewLiveKitConfig(cfg.LiveKitServerURL, cfg.LiveKitAPIKey, cfg.LiveKitAPISecret, resolveSIPDomain(repoManager, cfg))
	if err != nil {
		return nil, err
	}
	roomService, err := lk.NewRoomService(lkConfig)
	if err != nil {
		return nil, err
	}
	sipProvisioner, err := lk.NewSIPProvisioner(lkConfig)
	if err != nil {
		return nil, err
	}

	// Telephony vendor
	exotelClient := exotel.NewClient(cfg.ExotelSubdomain, cfg.ExotelAccountSID, cfg.ExotelAPIKey, cfg.ExotelAPIToken)

	// Managed indexing
	indexingClient := indexing.NewClient(cfg.IndexingBaseURL, cfg.IndexingAPIKey, "voice-platform")
	pipelineCache := indexing.NewPipelineCache(redisSvc, indexingClient)

	// Raw document copies
	var gcsClient *gcs.GCSClient
	if cfg.GCSBucket != "" {
		gcsClient, err = gcs.NewGCSClient(context.Background(), cfg.GCSBucket)
		if err != nil {
			logger.Base().Warn("failed to initialize GCS client, document copies disabled", zap.Error(err))
		}
	}

	// Call lifecycle events
	var pubsubSvc *pubsub.PubSubService
	if cfg.PubSubProjectID != "" {
		pubsubSvc, err = pubsub.NewPubSubService(context.Background(), &pubsub.PubSubConfig{
			ProjectID: cfg.PubSubProjectID,
			TopicName: cfg.PubSubTopic,
			PubID:     cfg.PubSubPubID,
		})
		if err != nil {
			logger.Base().Warn("failed to initialize pubsub, call events disabled", zap.Error(err))
		}
	}

	// TURN credentials for browser sessions
	turnService := twilio.NewTokenService(cfg.TwilioAccountSID, cfg.TwilioAuthToken, true)

	// Google OAuth
	googleClient := googleauth.NewClient(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	stateStore := googleauth.NewStateStore(redisSvc)

	// Services
	provisionSvc := provision.NewService(repoManager, exotelClient, sipProvisioner, lkConfig.SIPDomain)
	outboundSvc := outbound.NewService(repoManager, roomService, exotelClient, eventPublisher(pubsubSvc))
	knowledgeSvc := knowledge.NewService(repoManager, indexingClient, pipelineCache, blobStore(gcsClient))

	registry := providers.Default()

	// Handlers
	agentHandler := NewAgentHandler(repoManager.AgentConfig(), repoManager.OAuthConnection(), registry, provisionSvc)
	callHandler := NewCallHandler(agentHandler, outboundSvc, repoManager.CallRecord(), repoManager.AgentConfig())

	hm := &HandlerManager{
		config:      cfg,
		repoManager: repoManager,
		redisSvc:    redisSvc,
		taskBus:     taskBus,
		pubsubSvc:   pubsubSvc,
		gcsClient:   gcsClient,
		turnService: turnService,

		userHandler:      NewUserHandler(repoManager.User()),
		agentHandler:     agentHandler,
		telephonyHandler: NewTelephonyHandler(agentHandler, provisionSvc, repoManager.TelephonyConfig()),
		callHandler:      callHandler,
		oauthHandler:     NewOAuthHandler(googleClient, stateStore, repoManager.OAuthConnection(), cfg.FrontendURL),
		knowledgeHandler: NewKnowledgeHandler(agentHandler, knowledgeSvc, repoManager.AgentConfig()),
		voiceHandler:     NewVoiceHandler(repoManager.AgentConfig(), repoManager.CallRecord(), roomService, taskBus, turnService, cfg.LiveKitServerURL, cfg.ShareSessionSecret),
		platformHandler:  NewPlatformHandler(repoManager.PlatformSetting()),
		calendarHandler:  NewCalendarHandler(googleClient, repoManager.OAuthConnection()),
		streamHandler:    NewStreamHandler(callHandler, taskBus),
		webhookHandler:   NewWebhookHandler(repoManager.AgentConfig(), repoManager.CallRecord(), taskBus, cfg.LiveKitAPIKey, cfg.LiveKitAPISecret),
	}

	logger.Base().Info("handler manager initialized")
	return hm, nil
}

// resolveSIPDomain prefers the stored platform setting and falls back to the
// environment.
func resolveSIPDomain(repos repository.RepositoryManager, cfg *config.PlatformConfig) string {
	setting, err := repos.PlatformSetting().Get(context.Background(), domain.SettingSIPDomain)
	if err == nil && setting.Value != "" {
		return setting.Value
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		logger.Base().Warn("failed to read SIP domain setting", zap.Error(err))
	}
	return cfg.SIPDomain
}

// eventPublisher adapts the optional pubsub service to the outbound service
// interface without handing it a typed nil.
func eventPublisher(svc *pubsub.PubSubService) outbound.EventPublisher {
	if svc == nil {
		return nil
	}
	return svc
}

// blobStore adapts the optional GCS client the same way.
func blobStore(client *gcs.GCSClient) knowledge.BlobStore {
	if client == nil {
		return noopBlobStore{}
	}
	return client
}

// noopBlobStore keeps ingestion working when no bucket is configured.
type noopBlobStore struct{}

func (noopBlobStore) Upload(ctx context.Context, objectPath string, contentType string, content io.Reader) (string, error) {
	return "", nil
}

func (noopBlobStore) Delete(ctx context.Context, uri string) error {
	return nil
}

// SetupAllRoutes sets up all routes with middleware
func (hm *HandlerManager) SetupAllRoutes(router *mux.Router) {
	router.Use(CORSMiddleware)
	router.Use(GlobalLoggingMiddleware)

	// Health check
	router.HandleFunc("/health", hm.HealthCheck).Methods("GET")

	// Public share surface, rate limited per client IP
	shared := router.PathPrefix("/api/shared").Subrouter()
	shared.Use(RateLimitMiddleware(5, 10))
	shared.HandleFunc("/{code}", hm.agentHandler.GetSharedAgent).Methods("GET")
	shared.HandleFunc("/{code}/session", hm.voiceHandler.CreateShareToken).Methods("POST")

	// OAuth callback is reached by browser redirect, no user header
	router.HandleFunc("/api/oauth/google/callback", hm.oauthHandler.Callback).Methods("GET")

	// LiveKit server webhooks, authenticated by signature
	router.HandleFunc("/webhooks/livekit", hm.webhookHandler.HandleLiveKitWebhook).Methods("POST")

	// End-user API, authenticated by the gateway-set X-User-Id header
	user := router.PathPrefix("/api").Subrouter()
	user.Use(UserAuthMiddleware)

	user.HandleFunc("/users", hm.userHandler.CreateUser).Methods("POST")
	user.HandleFunc("/users/me", hm.userHandler.GetMe).Methods("GET")

	user.HandleFunc("/agents", hm.agentHandler.CreateAgent).Methods("POST")
	user.HandleFunc("/agents", hm.agentHandler.ListAgents).Methods("GET")
	user.HandleFunc("/agents/{id}", hm.agentHandler.GetAgent).Methods("GET")
	user.HandleFunc("/agents/{id}", hm.agentHandler.UpdateAgent).Methods("PUT")
	user.HandleFunc("/agents/{id}", hm.agentHandler.DeleteAgent).Methods("DELETE")
	user.HandleFunc("/agents/{id}/tools", hm.agentHandler.GetAgentTools).Methods("GET")

	user.HandleFunc("/telephony/numbers", hm.telephonyHandler.ListNumbers).Methods("GET")
	user.HandleFunc("/agents/{id}/telephony", hm.telephonyHandler.ProvisionTelephony).Methods("POST")
	user.HandleFunc("/agents/{id}/telephony", hm.telephonyHandler.GetTelephony).Methods("GET")
	user.HandleFunc("/agents/{id}/telephony", hm.telephonyHandler.TeardownTelephony).Methods("DELETE")

	user.HandleFunc("/agents/{id}/calls", hm.callHandler.StartOutboundCall).Methods("POST")
	user.HandleFunc("/agents/{id}/calls", hm.callHandler.ListCalls).Methods("GET")
	user.HandleFunc("/calls/{id}", hm.callHandler.GetCall).Methods("GET")
	user.HandleFunc("/calls/{id}/transcript.pdf", hm.callHandler.GetTranscriptPDF).Methods("GET")
	user.HandleFunc("/calls/{id}/stream", hm.streamHandler.StreamCall).Methods("GET")

	user.HandleFunc("/oauth/google/connect", hm.oauthHandler.Connect).Methods("GET")
	user.HandleFunc("/oauth/google/status", hm.oauthHandler.Status).Methods("GET")
	user.HandleFunc("/oauth/google", hm.oauthHandler.Disconnect).Methods("DELETE")

	user.HandleFunc("/agents/{id}/documents", hm.knowledgeHandler.UploadDocument).Methods("POST")
	user.HandleFunc("/agents/{id}/documents", hm.knowledgeHandler.ListDocuments).Methods("GET")
	user.HandleFunc("/agents/{id}/documents/query", hm.knowledgeHandler.QueryDocuments).Methods("POST")
	user.HandleFunc("/agents/{id}/documents/{docId}", hm.knowledgeHandler.DeleteDocument).Methods("DELETE")

	user.HandleFunc("/voice/token", hm.voiceHandler.CreateToken).Methods("POST")
	user.HandleFunc("/voice/webrtc-config", hm.voiceHandler.GetWebRTCConfig).Methods("GET")

	// Service API, authenticated with the shared key. Used by the agent
	// worker and internal tooling.
	service := router.PathPrefix("/api").Subrouter()
	service.Use(APIKeyMiddleware(hm.config.InternalAPIKey))

	service.HandleFunc("/calls", hm.callHandler.CreateCallRecord).Methods("POST")
	service.HandleFunc("/calls/{id}", hm.callHandler.UpdateCallRecord).Methods("PATCH")
	service.HandleFunc("/internal/agents/{id}/knowledge/query", hm.knowledgeHandler.QueryDocumentsInternal).Methods("POST")
	service.HandleFunc("/internal/users/{userId}/calendar/events", hm.calendarHandler.CreateEvent).Methods("POST")
	service.HandleFunc("/internal/users/{userId}/calendar/events", hm.calendarHandler.ListEvents).Methods("GET")

	service.HandleFunc("/platform/settings", hm.platformHandler.ListSettings).Methods("GET")
	service.HandleFunc("/platform/settings/{key}", hm.platformHandler.GetSetting).Methods("GET")
	service.HandleFunc("/platform/settings/{key}", hm.platformHandler.PutSetting).Methods("PUT")
}

// HealthCheck godoc
// @Summary Service health
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string "Healthy"
// @Failure 503 {object} map[string]string "Degraded"
// @Router /health [get]
func (hm *HandlerManager) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := hm.repoManager.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"error":  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Close releases long-lived resources
func (hm *HandlerManager) Close() {
	if hm.turnService != nil {
		hm.turnService.Stop()
	}
	if hm.pubsubSvc != nil {
		hm.pubsubSvc.Close()
	}
	if hm.gcsClient != nil {
		hm.gcsClient.Close()
	}
	if hm.redisSvc != nil {
		hm.redisSvc.Close()
	}
	if err := hm.repoManager.Close(); err != nil {
		logger.Base().Warn("failed to close database", zap.Error(err))
	}
}
