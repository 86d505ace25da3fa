package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	lk "github.com/voxlane/voice-platform/internal/adapters/livekit"
	"github.com/voxlane/voice-platform/internal/domain"
	"github.com/voxlane/voice-platform/internal/repository"
	"github.com/voxlane/voice-platform/internal/services/session"
	"github.com/voxlane/voice-platform/internal/tasks"
	"github.com/voxlane/voice-platform/pkg/logger"
	"github.com/voxlane/voice-platform/pkg/twilio"
)

// shareSessionTTL bounds anonymous sessions started from a share link.
const shareSessionTTL = 30 * time.Minute

// VoiceTokenRequest asks for a browser session with one of the user's agents.
type VoiceTokenRequest struct {
	AgentID string `json:"agent_id" validate:"required"`
}

// VoiceTokenResponse carries everything the browser needs to join the room.
type VoiceTokenResponse struct {
	Token        string `json:"token"`
	ServerURL    string `json:"server_url"`
	RoomName     string `json:"room_name"`
	CallID       string `json:"call_id"`
	SessionGrant string `json:"session_grant,omitempty"`
}

// VoiceHandler hands out room tokens for browser voice sessions
type VoiceHandler struct {
	agentRepo   repository.AgentConfigRepository
	callRepo    repository.CallRecordRepository
	rooms       *lk.RoomService
	taskBus     tasks.Bus
	turnService *twilio.TokenService
	serverURL   string
	shareSecret []byte
}

// NewVoiceHandler creates a new voice handler
func NewVoiceHandler(agentRepo repository.AgentConfigRepository, callRepo repository.CallRecordRepository, rooms *lk.RoomService, taskBus tasks.Bus, turnService *twilio.TokenService, serverURL, shareSecret string) *VoiceHandler {
	return &VoiceHandler{
		agentRepo:   agentRepo,
		callRepo:    callRepo,
		rooms:       rooms,
		taskBus:     taskBus,
		turnService: turnService,
		serverURL:   serverURL,
		shareSecret: []byte(shareSecret),
	}
}

// CreateToken godoc
// @Summary Start a browser voice session
// @Description Creates a per-call room and returns a participant token for it
// @Tags voice
// @Accept json
// @Produce json
// @Param request body VoiceTokenRequest true "Agent to talk to"
// @Success 200 {object} VoiceTokenResponse "Session credentials"
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 403 {object} map[string]string "Not the owner"
// @Failure 404 {object} map[string]string "Agent not found"
// @Router /api/voice/token [post]
func (h *VoiceHandler) CreateToken(w http.ResponseWriter, r *http.Request) {
	var req VoiceTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AgentID == "" {
		writeError(w, http.StatusBadRequest, "agent_id is required")
		return
	}

	agent, err := h.agentRepo.GetByID(r.Context(), req.AgentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "agent not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	if agent.UserID != UserID(r) {
		writeError(w, http.StatusForbidden, "agent belongs to another user")
		return
	}

	resp, err := h.startSession(r, agent, "user-"+agent.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// ShareSessionRequest starts an anonymous session against a shared agent.
type ShareSessionRequest struct {
	DisplayName string `json:"display_name,omitempty"`
}

// CreateShareToken godoc
// @Summary Start a voice session from a share link
// @Description Public, rate-limited endpoint keyed by share code
// @Tags shared
// @Accept json
// @Produce json
// @Param code path string true "Share code"
// @Param request body ShareSessionRequest false "Session options"
// @Success 200 {object} VoiceTokenResponse "Session credentials"
// @Failure 404 {object} map[string]string "Unknown share code"
// @Router /api/shared/{code}/session [post]
func (h *VoiceHandler) CreateShareToken(w http.ResponseWriter, r *http.Request) {
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

	var req ShareSessionRequest
	// Body is optional on this endpoint.
	_ = json.NewDecoder(r.Body).Decode(&req)

	identity := "guest-" + code
	if req.DisplayName != "" {
		identity = "guest-" + req.DisplayName
	}

	resp, err := h.startSession(r, agent, identity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	grant, err := h.signShareGrant(agent.ID, code, resp.RoomName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp.SessionGrant = grant

	writeJSON(w, http.StatusOK, resp)
}

// startSession creates the room, opens a call record, mints the participant
// token and wakes a worker through the task bus.
func (h *VoiceHandler) startSession(r *http.Request, agent *domain.AgentConfig, identity string) (*VoiceTokenResponse, error) {
	roomName := session.RoomName(agent.ID)

	rec := &domain.CallRecord{
		AgentID:      agent.ID,
		Direction:    domain.CallDirectionWeb,
		RoomName:     roomName,
		PeerIdentity: identity,
		Status:       domain.CallStatusInitiated,
		StartedAt:    time.Now().UTC(),
	}
	if err := h.callRepo.Create(r.Context(), rec); err != nil {
		return nil, err
	}

	resolved := session.Resolve(agent, domain.CallDirectionWeb)
	resolved.CallID = rec.ID

	metadata, err := session.Metadata(resolved)
	if err != nil {
		return nil, err
	}

	if _, err := h.rooms.CreateRoom(r.Context(), roomName, metadata); err != nil {
		return nil, err
	}

	token, err := h.rooms.MintAccessToken(roomName, identity, "", 2*time.Hour)
	if err != nil {
		return nil, err
	}

	if h.taskBus != nil {
		task := tasks.SessionTask{
			Type:     tasks.TaskTypeJoinRoom,
			RoomName: roomName,
			CallID:   rec.ID,
			Resolved: resolved,
		}
		if err := h.taskBus.Publish(r.Context(), task); err != nil {
			logger.L().Warn("failed to publish session task",
				zap.String("room_name", roomName), zap.Error(err))
		}
	}

	return &VoiceTokenResponse{
		Token:     token,
		ServerURL: h.serverURL,
		RoomName:  roomName,
		CallID:    rec.ID,
	}, nil
}

// signShareGrant issues a short-lived proof that an anonymous session was
// started through a valid share link, scoped to one room.
func (h *VoiceHandler) signShareGrant(agentID, shareCode, roomName string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  "share:" + shareCode,
		"aid":  agentID,
		"room": roomName,
		"iat":  now.Unix(),
		"exp":  now.Add(shareSessionTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.shareSecret)
}

// GetWebRTCConfig godoc
// @Summary Get WebRTC ICE configuration
// @Description TURN/STUN servers for browser clients behind restrictive NATs
// @Tags voice
// @Produce json
// @Success 200 {object} map[string]interface{} "ICE servers"
// @Router /api/voice/webrtc-config [get]
func (h *VoiceHandler) GetWebRTCConfig(w http.ResponseWriter, r *http.Request) {
	iceServers := []map[string]interface{}{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
	}

	if h.turnService != nil && h.turnService.IsEnabled() {
		for _, cred := range h.turnService.GetTURNCredentials() {
			iceServers = append(iceServers, map[string]interface{}{
				"urls":       cred.URLs,
				"username":   cred.Username,
				"credential": cred.Credential,
			})
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"iceServers": iceServers,
	})
}
