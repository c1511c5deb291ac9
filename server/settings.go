package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jupark12/meeting-minutes/models"
	"github.com/jupark12/meeting-minutes/store"
)

type saveModelConfigRequest struct {
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	WhisperModel string  `json:"whisperModel"`
	APIKey       *string `json:"apiKey"`
}

func (s *Server) settingsAvailable(w http.ResponseWriter) bool {
	if s.settings == nil {
		writeError(w, http.StatusServiceUnavailable, "Settings are not configured")
		return false
	}
	return true
}

// handleGetModelConfig returns the saved model configuration with the
// provider's API key when one is stored.
func (s *Server) handleGetModelConfig(w http.ResponseWriter, r *http.Request) {
	if !s.settingsAvailable(w) {
		return
	}

	cfg, err := s.settings.GetModelConfig(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Model configuration not set")
		return
	}
	if err != nil {
		s.log.Error(r.Context(), "Error getting model config: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	key, err := s.settings.GetAPIKey(r.Context(), cfg.Provider)
	switch {
	case err == nil:
		cfg.APIKey = &key
	case !errors.Is(err, store.ErrNotFound):
		s.log.Error(r.Context(), "Error getting API key for %s: %v", cfg.Provider, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleSaveModelConfig(w http.ResponseWriter, r *http.Request) {
	if !s.settingsAvailable(w) {
		return
	}

	var req saveModelConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Provider = strings.ToLower(strings.TrimSpace(req.Provider))
	if req.Provider == "" || strings.TrimSpace(req.Model) == "" {
		writeError(w, http.StatusBadRequest, "provider and model are required")
		return
	}

	err := s.settings.SaveModelConfig(r.Context(), &models.ModelConfig{
		Provider:     req.Provider,
		Model:        strings.TrimSpace(req.Model),
		WhisperModel: strings.TrimSpace(req.WhisperModel),
	})
	if err != nil {
		s.log.Error(r.Context(), "Error saving model config: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if req.APIKey != nil {
		if err := s.settings.SaveAPIKey(r.Context(), req.Provider, *req.APIKey); err != nil {
			s.log.Error(r.Context(), "Error saving API key for %s: %v", req.Provider, err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if s.onAPIKey != nil && *req.APIKey != "" {
			if err := s.onAPIKey(req.Provider, *req.APIKey); err != nil {
				s.log.Warn(r.Context(), "Saved API key for %s but could not apply it: %v", req.Provider, err)
			}
		}
	}

	s.log.Info(r.Context(), "Saved model config %s/%s", req.Provider, req.Model)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Model configuration saved successfully",
	})
}

// handleGetAPIKey returns the stored key for a provider as a JSON string,
// or null when none is saved.
func (s *Server) handleGetAPIKey(w http.ResponseWriter, r *http.Request) {
	if !s.settingsAvailable(w) {
		return
	}

	key, err := s.settings.GetAPIKey(r.Context(), r.PathValue("provider"))
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	if err != nil {
		s.log.Error(r.Context(), "Error getting API key: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, key)
}
