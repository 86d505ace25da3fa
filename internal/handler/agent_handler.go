package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/voxlane/voice-platform/internal/domain"
	"github.com/voxlane/voice-platform/internal/providers"
	"github.com/voxlane/voice-platform/internal/repository"
	"github.com/voxlane/voice-platform/internal/tools"
	"github.com/voxlane/voice-platform/pkg/logger"
)

// TelephonyTeardown removes an agent's number binding when the agent goes away.
type TelephonyTeardown interface {
	Teardown(ctx context.Context, agentID string) error
}

// AgentHandler handles HTTP requests for agent configs
type AgentHandler struct {
	agentRepo repository.AgentConfigRepository
	oauthRepo repository.OAuthConnectionRepository
	registry  *providers.Registry
	telephony TelephonyTeardown
}

// NewAgentHandler creates a new agent handler
func NewAgentHandler(agentRepo repository.AgentConfigRepository, oauthRepo repository.OAuthConnectionRepository, registry *providers.Registry, telephony TelephonyTeardown) *AgentHandler {
	return &AgentHandler{
		agentRepo: agentRepo,
		oauthRepo: oauthRepo,
		registry:  registry,
		telephony: telephony,
	}
}

// loadOwnedAgent fetches an agent and enforces ownership. Missing agents are
// 404; existing agents owned by someone else are 403.
func (h *AgentHandler) loadOwnedAgent(w http.ResponseWriter, r *http.Request) *domain.AgentConfig {
	id := mux.Vars(r)["id"]

	agent, err := h.agentRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "agent not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return nil
	}

	if agent.UserID != UserID(r) {
		writeError(w, http.StatusForbidden, "agent belongs to another user")
		return nil
	}

	return agent
}

func (h *AgentHandler) validateModels(llm, stt, tts string, enabledTools []string) error {
	if err := h.registry.ValidateSelectors(llm, stt, tts); err != nil {
		return err
	}
	for _, name := range enabledTools {
		if !tools.Valid(name) {
			return errors.New("unknown tool: " + name)
		}
	}
	return nil
}

// CreateAgent godoc
// @Summary Create a new agent
// @Description Create a voice agent config for the authenticated user
// @Tags agents
// @Accept json
// @Produce json
// @Param agent body domain.CreateAgentConfigRequest true "Agent creation request"
// @Success 201 {object} domain.AgentConfig "Agent created"
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /api/agents [post]
func (h *AgentHandler) CreateAgent(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAgentConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	req.ApplyDefaults()
	if err := h.validateModels(req.LLMModel, req.STTModel, req.TTSModel, req.EnabledTools); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	agent := &domain.AgentConfig{
		UserID:               UserID(r),
		Name:                 req.Name,
		Instructions:         req.Instructions,
		Voice:                req.Voice,
		Greeting:             req.Greeting,
		LLMModel:             req.LLMModel,
		STTModel:             req.STTModel,
		TTSModel:             req.TTSModel,
		EnabledTools:         req.EnabledTools,
		IsPublic:             req.IsPublic,
		KnowledgeBaseEnabled: req.KnowledgeBaseEnabled,
	}

	if agent.IsPublic {
		code, err := domain.GenerateShareCode()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		agent.ShareCode = &code
	}

	if err := h.agentRepo.Create(r.Context(), agent); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, agent)
}

// ListAgents godoc
// @Summary List the user's agents
// @Tags agents
// @Produce json
// @Success 200 {array} domain.AgentConfig "Agents"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /api/agents [get]
func (h *AgentHandler) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.agentRepo.GetByUserID(r.Context(), UserID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if agents == nil {
		agents = []*domain.AgentConfig{}
	}
	writeJSON(w, http.StatusOK, agents)
}

// GetAgent godoc
// @Summary Get agent by ID
// @Tags agents
// @Produce json
// @Param id path string true "Agent ID (UUID)" format(uuid)
// @Success 200 {object} domain.AgentConfig "Agent found"
// @Failure 403 {object} map[string]string "Not the owner"
// @Failure 404 {object} map[string]string "Agent not found"
// @Router /api/agents/{id} [get]
func (h *AgentHandler) GetAgent(w http.ResponseWriter, r *http.Request) {
	agent := h.loadOwnedAgent(w, r)
	if agent == nil {
		return
	}

	writeJSON(w, http.StatusOK, agent)
}

// UpdateAgent godoc
// @Summary Update an agent
// @Description Partially update an agent config. Toggling is_public on
// @Description issues a share code; toggling it off clears the code.
// @Tags agents
// @Accept json
// @Produce json
// @Param id path string true "Agent ID (UUID)" format(uuid)
// @Param agent body domain.UpdateAgentConfigRequest true "Fields to update"
// @Success 200 {object} domain.AgentConfig "Updated agent"
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 403 {object} map[string]string "Not the owner"
// @Failure 404 {object} map[string]string "Agent not found"
// @Router /api/agents/{id} [put]
func (h *AgentHandler) UpdateAgent(w http.ResponseWriter, r *http.Request) {
	agent := h.loadOwnedAgent(w, r)
	if agent == nil {
		return
	}

	var req domain.UpdateAgentConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			writeError(w, http.StatusBadRequest, "name cannot be empty")
			return
		}
		agent.Name = name
	}
	if req.Instructions != nil {
		agent.Instructions = *req.Instructions
	}
	if req.Voice != nil {
		agent.Voice = *req.Voice
	}
	if req.Greeting != nil {
		agent.Greeting = *req.Greeting
	}
	if req.LLMModel != nil {
		agent.LLMModel = *req.LLMModel
	}
	if req.STTModel != nil {
		agent.STTModel = *req.STTModel
	}
	if req.TTSModel != nil {
		agent.TTSModel = *req.TTSModel
	}
	if req.EnabledTools != nil {
		agent.EnabledTools = *req.EnabledTools
	}
	if req.KnowledgeBaseEnabled != nil {
		agent.KnowledgeBaseEnabled = *req.KnowledgeBaseEnabled
	}

	if err := h.validateModels(agent.LLMModel, agent.STTModel, agent.TTSModel, agent.EnabledTools); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.IsPublic != nil && *req.IsPublic != agent.IsPublic {
		agent.IsPublic = *req.IsPublic
		if agent.IsPublic {
			code, err := domain.GenerateShareCode()
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			agent.ShareCode = &code
		} else {
			agent.ShareCode = nil
		}
	}

	if err := h.agentRepo.Update(r.Context(), agent); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, agent)
}

// DeleteAgent godoc
// @Summary Delete an agent
// @Description Delete an agent config, tearing down any attached telephony first
// @Tags agents
// @Produce json
// @Param id path string true "Agent ID (UUID)" format(uuid)
// @Success 204 "Agent deleted"
// @Failure 403 {object} map[string]string "Not the owner"
// @Failure 404 {object} map[string]string "Agent not found"
// @Router /api/agents/{id} [delete]
func (h *AgentHandler) DeleteAgent(w http.ResponseWriter, r *http.Request) {
	agent := h.loadOwnedAgent(w, r)
	if agent == nil {
		return
	}

	// Unbind the phone number first so the SIP side doesn't keep routing
	// calls to a deleted agent. Best effort, same policy as explicit
	// teardown.
	if h.telephony != nil {
		if err := h.telephony.Teardown(r.Context(), agent.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			logger.L().Warn("telephony teardown during agent delete failed",
				zap.String("agent_id", agent.ID), zap.Error(err))
		}
	}

	if err := h.agentRepo.Delete(r.Context(), agent.ID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetSharedAgent godoc
// @Summary Get a shared agent by share code
// @Description Public endpoint returning the frontend-safe projection of a shared agent
// @Tags shared
// @Produce json
// @Param code path string true "Share code"
// @Success 200 {object} domain.SharedAgentView "Shared agent"
// @Failure 404 {object} map[string]string "Unknown share code"
// @Router /api/shared/{code} [get]
func (h *AgentHandler) GetSharedAgent(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	agent, err := h.agentRepo.GetByShareCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "share code not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, domain.SharedAgentView{
		AgentID:   agent.ID,
		Name:      agent.Name,
		Voice:     agent.Voice,
		Greeting:  agent.Greeting,
		ShareCode: code,
	})
}

// GetAgentTools godoc
// @Summary List tools for an agent
// @Description Returns the tool catalog annotated with the agent's enabled set and availability
// @Tags agents
// @Produce json
// @Param id path string true "Agent ID (UUID)" format(uuid)
// @Success 200 {array} tools.AgentTool "Tools"
// @Failure 403 {object} map[string]string "Not the owner"
// @Failure 404 {object} map[string]string "Agent not found"
// @Router /api/agents/{id}/tools [get]
func (h *AgentHandler) GetAgentTools(w http.ResponseWriter, r *http.Request) {
	agent := h.loadOwnedAgent(w, r)
	if agent == nil {
		return
	}

	oauthConnected := false
	if _, err := h.oauthRepo.Get(r.Context(), agent.UserID, domain.OAuthProviderGoogle); err == nil {
		oauthConnected = true
	}

	writeJSON(w, http.StatusOK, tools.ForAgent(agent.EnabledTools, oauthConnected, agent.KnowledgeBaseEnabled))
}
