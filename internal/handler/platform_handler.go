package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/voxlane/voice-platform/internal/repository"
)

// PlatformHandler handles global platform settings
type PlatformHandler struct {
	settingRepo repository.PlatformSettingRepository
}

// NewPlatformHandler creates a new platform handler
func NewPlatformHandler(settingRepo repository.PlatformSettingRepository) *PlatformHandler {
	return &PlatformHandler{settingRepo: settingRepo}
}

// ListSettings godoc
// @Summary List platform settings (service)
// @Tags platform
// @Produce json
// @Success 200 {array} domain.PlatformSetting "Settings"
// @Router /api/platform/settings [get]
func (h *PlatformHandler) ListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingRepo.GetAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, settings)
}

// GetSetting godoc
// @Summary Get a platform setting (service)
// @Tags platform
// @Produce json
// @Param key path string true "Setting key"
// @Success 200 {object} domain.PlatformSetting "Setting"
// @Failure 404 {object} map[string]string "Unknown setting"
// @Router /api/platform/settings/{key} [get]
func (h *PlatformHandler) GetSetting(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	setting, err := h.settingRepo.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "setting not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, setting)
}

// PutSetting godoc
// @Summary Set a platform setting (service)
// @Tags platform
// @Accept json
// @Produce json
// @Param key path string true "Setting key"
// @Success 200 {object} domain.PlatformSetting "Updated setting"
// @Failure 400 {object} map[string]string "Invalid request"
// @Router /api/platform/settings/{key} [put]
func (h *PlatformHandler) PutSetting(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	var body struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	setting, err := h.settingRepo.Set(r.Context(), key, body.Value)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, setting)
}
