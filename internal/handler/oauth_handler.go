package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/voxlane/voice-platform/internal/adapters/googleauth"
	"github.com/voxlane/voice-platform/internal/domain"
	"github.com/voxlane/voice-platform/internal/repository"
	"github.com/voxlane/voice-platform/pkg/logger"
)

// OAuthHandler handles the Google account connect flow
type OAuthHandler struct {
	google      *googleauth.Client
	states      *googleauth.StateStore
	oauthRepo   repository.OAuthConnectionRepository
	frontendURL string
}

// NewOAuthHandler creates a new OAuth handler
func NewOAuthHandler(google *googleauth.Client, states *googleauth.StateStore, oauthRepo repository.OAuthConnectionRepository, frontendURL string) *OAuthHandler {
	return &OAuthHandler{
		google:      google,
		states:      states,
		oauthRepo:   oauthRepo,
		frontendURL: frontendURL,
	}
}

// Connect godoc
// @Summary Start the Google connect flow
// @Description Issues a single-use state and redirects to the Google consent page
// @Tags oauth
// @Success 302 "Redirect to Google"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /api/oauth/google/connect [get]
func (h *OAuthHandler) Connect(w http.ResponseWriter, r *http.Request) {
	state, err := h.states.Issue(r.Context(), UserID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusFound)
}

// Callback godoc
// @Summary Google OAuth callback
// @Description Redeems the state, exchanges the code and stores the connection
// @Tags oauth
// @Success 302 "Redirect to frontend"
// @Failure 400 {object} map[string]string "Invalid state or code"
// @Router /api/oauth/google/callback [get]
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if errParam := q.Get("error"); errParam != "" {
		// User declined consent; send them back without a connection.
		http.Redirect(w, r, h.frontendURL+"?oauth=declined", http.StatusFound)
		return
	}

	userID, err := h.states.Redeem(r.Context(), q.Get("state"))
	if err != nil {
		if errors.Is(err, googleauth.ErrStateInvalid) {
			writeError(w, http.StatusBadRequest, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	code := q.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	token, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	email, err := h.google.FetchEmail(r.Context(), token)
	if err != nil {
		logger.L().Warn("failed to fetch connected account email", zap.Error(err))
	}

	conn := &domain.OAuthConnection{
		UserID:         userID,
		Provider:       domain.OAuthProviderGoogle,
		AccessToken:    token.AccessToken,
		RefreshToken:   token.RefreshToken,
		Expiry:         token.Expiry,
		Scope:          googleauth.GrantedScope(token),
		ConnectedEmail: email,
	}
	if err := h.oauthRepo.Upsert(r.Context(), conn); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	http.Redirect(w, r, h.frontendURL+"?oauth=connected", http.StatusFound)
}

// Status godoc
// @Summary Google connection status
// @Description Reports whether a Google account is connected. Tokens are never returned.
// @Tags oauth
// @Produce json
// @Success 200 {object} domain.OAuthStatus "Connection status"
// @Router /api/oauth/google/status [get]
func (h *OAuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	status := domain.OAuthStatus{Provider: domain.OAuthProviderGoogle}

	conn, err := h.oauthRepo.Get(r.Context(), UserID(r), domain.OAuthProviderGoogle)
	if err == nil {
		status.Connected = true
		status.ConnectedEmail = conn.ConnectedEmail
	} else if !errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// Disconnect godoc
// @Summary Disconnect the Google account
// @Tags oauth
// @Success 204 "Disconnected"
// @Failure 404 {object} map[string]string "No connection"
// @Router /api/oauth/google [delete]
func (h *OAuthHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	err := h.oauthRepo.Delete(r.Context(), UserID(r), domain.OAuthProviderGoogle)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no Google connection")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
