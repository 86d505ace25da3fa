package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/voxlane/voice-platform/internal/adapters/googleauth"
	"github.com/voxlane/voice-platform/internal/domain"
	"github.com/voxlane/voice-platform/internal/repository"
	"github.com/voxlane/voice-platform/pkg/logger"
)

// CalendarHandler executes calendar operations on behalf of the agent worker.
// Tokens stay server-side; the worker only sees event payloads.
type CalendarHandler struct {
	google    *googleauth.Client
	oauthRepo repository.OAuthConnectionRepository
}

// NewCalendarHandler creates a new calendar handler
func NewCalendarHandler(google *googleauth.Client, oauthRepo repository.OAuthConnectionRepository) *CalendarHandler {
	return &CalendarHandler{
		google:    google,
		oauthRepo: oauthRepo,
	}
}

// tokenFor loads the user's Google connection and refreshes it if needed,
// persisting the rotated token.
func (h *CalendarHandler) tokenFor(w http.ResponseWriter, r *http.Request) (*oauth2.Token, bool) {
	userID := mux.Vars(r)["userId"]

	conn, err := h.oauthRepo.Get(r.Context(), userID, domain.OAuthProviderGoogle)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no Google connection for user")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return nil, false
	}

	token, rotated, err := h.google.FreshToken(r.Context(), conn)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return nil, false
	}

	if rotated {
		conn.AccessToken = token.AccessToken
		if token.RefreshToken != "" {
			conn.RefreshToken = token.RefreshToken
		}
		conn.Expiry = token.Expiry
		if err := h.oauthRepo.Upsert(r.Context(), conn); err != nil {
			logger.L().Warn("failed to persist refreshed Google token",
				zap.String("user_id", userID), zap.Error(err))
		}
	}

	return token, true
}

// CreateEvent godoc
// @Summary Create a calendar event for a user
// @Description Service endpoint used by the agent worker's calendar tool
// @Tags internal
// @Accept json
// @Produce json
// @Param userId path string true "User ID (UUID)" format(uuid)
// @Param event body googleauth.CalendarEvent true "Event to create"
// @Success 201 {object} googleauth.CalendarEvent "Created event"
// @Failure 404 {object} map[string]string "No Google connection"
// @Failure 502 {object} map[string]string "Google API error"
// @Router /api/internal/users/{userId}/calendar/events [post]
func (h *CalendarHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var event googleauth.CalendarEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if event.Summary == "" || event.Start.DateTime == "" || event.End.DateTime == "" {
		writeError(w, http.StatusBadRequest, "summary, start and end are required")
		return
	}

	token, ok := h.tokenFor(w, r)
	if !ok {
		return
	}

	created, err := h.google.CreateCalendarEvent(r.Context(), token, &event)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// ListEvents godoc
// @Summary List upcoming calendar events for a user
// @Tags internal
// @Produce json
// @Param userId path string true "User ID (UUID)" format(uuid)
// @Param max query int false "Maximum events to return"
// @Success 200 {array} googleauth.CalendarEvent "Upcoming events"
// @Failure 404 {object} map[string]string "No Google connection"
// @Router /api/internal/users/{userId}/calendar/events [get]
func (h *CalendarHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	max := 10
	if raw := r.URL.Query().Get("max"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			max = parsed
		}
	}

	token, ok := h.tokenFor(w, r)
	if !ok {
		return
	}

	events, err := h.google.ListCalendarEvents(r.Context(), token, time.Now(), max)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	if events == nil {
		events = []googleauth.CalendarEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}
