package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/voxlane/voice-platform/internal/domain"
	"github.com/voxlane/voice-platform/internal/repository"
	"github.com/voxlane/voice-platform/internal/services/outbound"
	"github.com/voxlane/voice-platform/internal/transcript"
)

// CallHandler handles HTTP requests for calls and call records
type CallHandler struct {
	agents      *AgentHandler
	outboundSvc *outbound.Service
	callRepo    repository.CallRecordRepository
	agentRepo   repository.AgentConfigRepository
}

// NewCallHandler creates a new call handler
func NewCallHandler(agents *AgentHandler, outboundSvc *outbound.Service, callRepo repository.CallRecordRepository, agentRepo repository.AgentConfigRepository) *CallHandler {
	return &CallHandler{
		agents:      agents,
		outboundSvc: outboundSvc,
		callRepo:    callRepo,
		agentRepo:   agentRepo,
	}
}

// StartOutboundCall godoc
// @Summary Start an outbound call
// @Description Dial a phone number from the agent's attached number
// @Tags calls
// @Accept json
// @Produce json
// @Param id path string true "Agent ID (UUID)" format(uuid)
// @Param request body domain.OutboundCallRequest true "Callee"
// @Success 201 {object} domain.OutboundCallResponse "Call initiated"
// @Failure 400 {object} map[string]string "Invalid request or no telephony"
// @Failure 403 {object} map[string]string "Not the owner"
// @Failure 404 {object} map[string]string "Agent not found"
// @Router /api/agents/{id}/calls [post]
func (h *CallHandler) StartOutboundCall(w http.ResponseWriter, r *http.Request) {
	agent := h.agents.loadOwnedAgent(w, r)
	if agent == nil {
		return
	}

	var req domain.OutboundCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.To == "" {
		writeError(w, http.StatusBadRequest, "to is required")
		return
	}

	resp, err := h.outboundSvc.StartCall(r.Context(), agent, &req)
	if err != nil {
		if errors.Is(err, outbound.ErrNoTelephony) {
			writeError(w, http.StatusBadRequest, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// ListCalls godoc
// @Summary List recent calls for an agent
// @Tags calls
// @Produce json
// @Param id path string true "Agent ID (UUID)" format(uuid)
// @Param limit query int false "Max records, default 50"
// @Success 200 {array} domain.CallRecord "Call records"
// @Failure 403 {object} map[string]string "Not the owner"
// @Failure 404 {object} map[string]string "Agent not found"
// @Router /api/agents/{id}/calls [get]
func (h *CallHandler) ListCalls(w http.ResponseWriter, r *http.Request) {
	agent := h.agents.loadOwnedAgent(w, r)
	if agent == nil {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	records, err := h.callRepo.GetByAgentID(r.Context(), agent.ID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if records == nil {
		records = []*domain.CallRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// loadOwnedCall fetches a call record and enforces ownership through the
// owning agent.
func (h *CallHandler) loadOwnedCall(w http.ResponseWriter, r *http.Request) (*domain.CallRecord, *domain.AgentConfig) {
	id := mux.Vars(r)["id"]

	rec, err := h.callRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "call not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return nil, nil
	}

	agent, err := h.agentRepo.GetByID(r.Context(), rec.AgentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, nil
	}

	if agent.UserID != UserID(r) {
		writeError(w, http.StatusForbidden, "call belongs to another user")
		return nil, nil
	}

	return rec, agent
}

// GetCall godoc
// @Summary Get a call record
// @Tags calls
// @Produce json
// @Param id path string true "Call ID (UUID)" format(uuid)
// @Success 200 {object} domain.CallRecord "Call record"
// @Failure 403 {object} map[string]string "Not the owner"
// @Failure 404 {object} map[string]string "Call not found"
// @Router /api/calls/{id} [get]
func (h *CallHandler) GetCall(w http.ResponseWriter, r *http.Request) {
	rec, _ := h.loadOwnedCall(w, r)
	if rec == nil {
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// GetTranscriptPDF godoc
// @Summary Download a call transcript as PDF
// @Tags calls
// @Produce application/pdf
// @Param id path string true "Call ID (UUID)" format(uuid)
// @Success 200 {file} binary "Transcript PDF"
// @Failure 403 {object} map[string]string "Not the owner"
// @Failure 404 {object} map[string]string "Call not found"
// @Router /api/calls/{id}/transcript.pdf [get]
func (h *CallHandler) GetTranscriptPDF(w http.ResponseWriter, r *http.Request) {
	rec, agent := h.loadOwnedCall(w, r)
	if rec == nil {
		return
	}

	data, err := transcript.RenderPDF(agent.Name, rec)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "transcript-"+rec.ID+".pdf"))
	w.Write(data)
}

// CreateCallRecord godoc
// @Summary Open a call record (service)
// @Description Worker-facing endpoint, authenticated with the shared service key
// @Tags internal
// @Accept json
// @Produce json
// @Param record body domain.CreateCallRecordRequest true "Call open request"
// @Success 201 {object} domain.CallRecord "Call record opened"
// @Failure 400 {object} map[string]string "Invalid request"
// @Router /api/calls [post]
func (h *CallHandler) CreateCallRecord(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateCallRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AgentID == "" || req.Direction == "" {
		writeError(w, http.StatusBadRequest, "agent_id and direction are required")
		return
	}

	rec := &domain.CallRecord{
		AgentID:      req.AgentID,
		Direction:    req.Direction,
		RoomName:     req.RoomName,
		PeerIdentity: req.PeerIdentity,
		Status:       domain.CallStatusActive,
		StartedAt:    time.Now().UTC(),
	}
	if err := h.callRepo.Create(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

// UpdateCallRecord godoc
// @Summary Update a call record (service)
// @Description Worker-facing endpoint closing or annotating a call
// @Tags internal
// @Accept json
// @Produce json
// @Param id path string true "Call ID (UUID)" format(uuid)
// @Param record body domain.UpdateCallRecordRequest true "Fields to update"
// @Success 200 {object} domain.CallRecord "Updated call record"
// @Failure 404 {object} map[string]string "Call not found"
// @Router /api/calls/{id} [patch]
func (h *CallHandler) UpdateCallRecord(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req domain.UpdateCallRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := h.callRepo.Update(r.Context(), id, &req)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "call not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, rec)
}
