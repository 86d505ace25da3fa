package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/voxlane/voice-platform/internal/domain"
	"github.com/voxlane/voice-platform/internal/repository"
	"github.com/voxlane/voice-platform/internal/services/provision"
)

// TelephonyHandler handles HTTP requests for phone number bindings
type TelephonyHandler struct {
	agents        *AgentHandler
	provisionSvc  *provision.Service
	telephonyRepo repository.TelephonyConfigRepository
}

// NewTelephonyHandler creates a new telephony handler
func NewTelephonyHandler(agents *AgentHandler, provisionSvc *provision.Service, telephonyRepo repository.TelephonyConfigRepository) *TelephonyHandler {
	return &TelephonyHandler{
		agents:        agents,
		provisionSvc:  provisionSvc,
		telephonyRepo: telephonyRepo,
	}
}

// ListNumbers godoc
// @Summary List available phone numbers
// @Description Vendor exophone inventory, numbers already bound to an agent marked in use
// @Tags telephony
// @Produce json
// @Success 200 {array} domain.Exophone "Numbers"
// @Failure 502 {object} map[string]string "Vendor error"
// @Router /api/telephony/numbers [get]
func (h *TelephonyHandler) ListNumbers(w http.ResponseWriter, r *http.Request) {
	numbers, err := h.provisionSvc.ListNumbers(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, numbers)
}

// ProvisionTelephony godoc
// @Summary Attach a phone number to an agent
// @Description Provision SIP trunks and a dispatch rule binding the number to the agent
// @Tags telephony
// @Accept json
// @Produce json
// @Param id path string true "Agent ID (UUID)" format(uuid)
// @Param request body domain.ProvisionTelephonyRequest true "Provisioning request"
// @Success 201 {object} domain.TelephonyConfig "Telephony attached"
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 403 {object} map[string]string "Not the owner"
// @Failure 404 {object} map[string]string "Agent not found"
// @Failure 409 {object} map[string]string "Number already bound"
// @Router /api/agents/{id}/telephony [post]
func (h *TelephonyHandler) ProvisionTelephony(w http.ResponseWriter, r *http.Request) {
	agent := h.agents.loadOwnedAgent(w, r)
	if agent == nil {
		return
	}

	var req domain.ProvisionTelephonyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PhoneNumber == "" {
		writeError(w, http.StatusBadRequest, "phone_number is required")
		return
	}

	cfg, err := h.provisionSvc.Provision(r.Context(), agent, &req)
	if err != nil {
		switch {
		case errors.Is(err, provision.ErrNumberNotInInventory):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, provision.ErrNumberAlreadyBound),
			errors.Is(err, provision.ErrAlreadyProvisioned):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, cfg)
}

// GetTelephony godoc
// @Summary Get an agent's telephony config
// @Tags telephony
// @Produce json
// @Param id path string true "Agent ID (UUID)" format(uuid)
// @Success 200 {object} domain.TelephonyConfig "Telephony config"
// @Failure 404 {object} map[string]string "No telephony attached"
// @Router /api/agents/{id}/telephony [get]
func (h *TelephonyHandler) GetTelephony(w http.ResponseWriter, r *http.Request) {
	agent := h.agents.loadOwnedAgent(w, r)
	if agent == nil {
		return
	}

	cfg, err := h.telephonyRepo.GetByAgentID(r.Context(), agent.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no telephony attached")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

// TeardownTelephony godoc
// @Summary Detach an agent's phone number
// @Description Remove the SIP resources and the local binding. Vendor failures do not block local removal.
// @Tags telephony
// @Produce json
// @Param id path string true "Agent ID (UUID)" format(uuid)
// @Success 204 "Telephony detached"
// @Failure 404 {object} map[string]string "No telephony attached"
// @Router /api/agents/{id}/telephony [delete]
func (h *TelephonyHandler) TeardownTelephony(w http.ResponseWriter, r *http.Request) {
	agent := h.agents.loadOwnedAgent(w, r)
	if agent == nil {
		return
	}

	if err := h.provisionSvc.Teardown(r.Context(), agent.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no telephony attached")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
