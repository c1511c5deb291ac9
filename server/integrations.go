package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/jupark12/meeting-minutes/connectors"
)

type tokenRequest struct {
	Code string `json:"code"`
}

type joinRequest struct {
	MeetingID   string `json:"meeting_id"`
	AccessToken string `json:"access_token"`
}

func (s *Server) handleListIntegrations(w http.ResponseWriter, r *http.Request) {
	enabled := s.connectors.Enabled()
	if enabled == nil {
		enabled = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"enabled": enabled})
}

// connector resolves the provider path value, writing the error reply when
// it cannot be used.
func (s *Server) connector(w http.ResponseWriter, r *http.Request) (connectors.Connector, bool) {
	c, err := s.connectors.Get(r.PathValue("provider"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	if !c.Enabled() {
		writeError(w, http.StatusForbidden, c.Name()+" integration disabled")
		return nil, false
	}
	return c, true
}

func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	c, ok := s.connector(w, r)
	if !ok {
		return
	}

	state := r.URL.Query().Get("state")
	if state == "" {
		state = uuid.New().String()
	}
	authURL, err := c.AuthorizationURL(state)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": authURL, "state": state})
}

func (s *Server) handleExchangeToken(w http.ResponseWriter, r *http.Request) {
	c, ok := s.connector(w, r)
	if !ok {
		return
	}

	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	token, err := c.Exchange(r.Context(), req.Code)
	if err != nil {
		s.log.Warn(r.Context(), "Token exchange with %s failed: %v", c.Name(), err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (s *Server) handleJoinMeeting(w http.ResponseWriter, r *http.Request) {
	c, ok := s.connector(w, r)
	if !ok {
		return
	}

	var req joinRequest
	if err := decodeJSON(r, &req); err != nil || req.MeetingID == "" || req.AccessToken == "" {
		writeError(w, http.StatusBadRequest, "meeting_id and access_token are required")
		return
	}

	result, err := c.JoinMeeting(r.Context(), req.MeetingID, req.AccessToken)
	if errors.Is(err, connectors.ErrDisabled) {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}
	if err != nil {
		s.log.Warn(r.Context(), "Joining %s meeting %s failed: %v", c.Name(), req.MeetingID, err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}
