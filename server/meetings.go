package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jupark12/meeting-minutes/models"
	"github.com/jupark12/meeting-minutes/store"
)

type meetingSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type createMeetingRequest struct {
	MeetingTitle string                     `json:"meeting_title"`
	Transcripts  []models.TranscriptSegment `json:"transcripts"`
}

type titleRequest struct {
	MeetingID string `json:"meeting_id"`
	Title     string `json:"title"`
}

type deleteRequest struct {
	MeetingID string `json:"meeting_id"`
}

func (s *Server) handleListMeetings(w http.ResponseWriter, r *http.Request) {
	meetings, err := s.meetings.ListMeetings(r.Context())
	if err != nil {
		s.log.Error(r.Context(), "Error listing meetings: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]meetingSummary, 0, len(meetings))
	for _, m := range meetings {
		out = append(out, meetingSummary{ID: m.ID, Title: m.Title})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetMeeting(w http.ResponseWriter, r *http.Request) {
	meeting, err := s.meetings.GetMeeting(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Meeting not found")
		return
	}
	if err != nil {
		s.log.Error(r.Context(), "Error getting meeting: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, meeting)
}

func (s *Server) handleCreateMeeting(w http.ResponseWriter, r *http.Request) {
	var req createMeetingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	now := s.now().UTC()
	meeting := &models.Meeting{
		ID:          models.NewMeetingID(now),
		Title:       req.MeetingTitle,
		CreatedAt:   now,
		UpdatedAt:   now,
		Transcripts: req.Transcripts,
	}
	for i := range meeting.Transcripts {
		if meeting.Transcripts[i].ID == "" {
			meeting.Transcripts[i].ID = uuid.New().String()
		}
	}

	if err := s.meetings.SaveMeeting(r.Context(), meeting); err != nil {
		s.log.Error(r.Context(), "Error saving transcript: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.log.Info(r.Context(), "Saved meeting %s with %d transcript segments", meeting.ID, len(meeting.Transcripts))
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "success",
		"message":    "Transcript saved successfully",
		"meeting_id": meeting.ID,
	})
}

func (s *Server) handleSaveTitle(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.saveTitle(w, r, r.PathValue("id"), req.Title)
}

func (s *Server) handleSaveTitleLegacy(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if err := decodeJSON(r, &req); err != nil || req.MeetingID == "" {
		writeError(w, http.StatusBadRequest, "meeting_id is required")
		return
	}
	s.saveTitle(w, r, req.MeetingID, req.Title)
}

func (s *Server) saveTitle(w http.ResponseWriter, r *http.Request, id, title string) {
	if strings.TrimSpace(title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	err := s.meetings.UpdateMeetingTitle(r.Context(), id, title)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Meeting not found")
		return
	}
	if err != nil {
		s.log.Error(r.Context(), "Error saving meeting title: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Meeting title saved successfully"})
}

func (s *Server) handleDeleteMeeting(w http.ResponseWriter, r *http.Request) {
	s.deleteMeeting(w, r, r.PathValue("id"))
}

func (s *Server) handleDeleteMeetingLegacy(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := decodeJSON(r, &req); err != nil || req.MeetingID == "" {
		writeError(w, http.StatusBadRequest, "meeting_id is required")
		return
	}
	s.deleteMeeting(w, r, req.MeetingID)
}

func (s *Server) deleteMeeting(w http.ResponseWriter, r *http.Request, id string) {
	err := s.meetings.DeleteMeeting(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Meeting not found")
		return
	}
	if err != nil {
		s.log.Error(r.Context(), "Error deleting meeting: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete meeting")
		return
	}
	s.log.Info(r.Context(), "Deleted meeting %s", id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Meeting deleted successfully"})
}
