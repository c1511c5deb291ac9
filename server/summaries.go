package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jupark12/meeting-minutes/ledger"
	"github.com/jupark12/meeting-minutes/models"
	"github.com/jupark12/meeting-minutes/pipeline"
	"github.com/jupark12/meeting-minutes/store"
	"github.com/jupark12/meeting-minutes/transcript"
)

// transcriptRequest is the body of a summary submission. Nil ChunkSize and
// Overlap take the configured defaults.
type transcriptRequest struct {
	MeetingID string `json:"meeting_id"`
	Text      string `json:"text"`
	Model     string `json:"model"`
	ModelName string `json:"model_name"`
	ChunkSize *int   `json:"chunk_size"`
	Overlap   *int   `json:"overlap"`
}

// summaryResponse is the body of every summary status reply.
type summaryResponse struct {
	Status      string                  `json:"status"`
	MeetingName *string                 `json:"meetingName"`
	MeetingID   string                  `json:"meeting_id"`
	Start       *time.Time              `json:"start"`
	End         *time.Time              `json:"end"`
	Error       *string                 `json:"error"`
	Data        *models.SummaryDocument `json:"data"`
}

var errBadRequest = errors.New("bad request")

func (s *Server) handleProcessTranscript(w http.ResponseWriter, r *http.Request) {
	req, err := s.readTranscriptRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.MeetingID = r.PathValue("id")
	s.submit(w, r, req)
}

func (s *Server) handleProcessTranscriptLegacy(w http.ResponseWriter, r *http.Request) {
	req, err := s.readTranscriptRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.MeetingID == "" {
		writeError(w, http.StatusBadRequest, "meeting_id is required")
		return
	}
	s.submit(w, r, req)
}

// handleRegenerateSummary resubmits the latest stored transcript of a
// meeting with the parameters it was first submitted with.
func (s *Server) handleRegenerateSummary(w http.ResponseWriter, r *http.Request) {
	meetingID := r.PathValue("id")

	rec, err := s.meetings.LatestTranscript(r.Context(), meetingID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "No transcript saved for this meeting")
		return
	}
	if err != nil {
		s.log.Error(r.Context(), "Error loading transcript of %s: %v", meetingID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.submit(w, r, transcriptRequest{
		MeetingID: meetingID,
		Text:      rec.Text,
		Model:     rec.Model,
		ModelName: rec.ModelName,
		ChunkSize: &rec.ChunkSize,
		Overlap:   &rec.Overlap,
	})
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request, req transcriptRequest) {
	processID, err := s.submitter.Submit(r.Context(), pipeline.SubmitRequest{
		MeetingID: req.MeetingID,
		Text:      req.Text,
		Model:     req.Model,
		ModelName: req.ModelName,
		ChunkSize: req.ChunkSize,
		Overlap:   req.Overlap,
	})
	if err != nil {
		s.log.Error(r.Context(), "Error submitting transcript for %s: %v", req.MeetingID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":    "Processing started",
		"process_id": processID,
	})
}

func (s *Server) handleAsyncSummary(w http.ResponseWriter, r *http.Request) {
	var req transcriptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	processID, err := s.submitter.Submit(r.Context(), pipeline.SubmitRequest{
		Text:      req.Text,
		Model:     req.Model,
		ModelName: req.ModelName,
		ChunkSize: req.ChunkSize,
		Overlap:   req.Overlap,
	})
	if err != nil {
		s.log.Error(r.Context(), "Error submitting async summary: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"task_id": processID})
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	s.writeSummaryStatus(w, r, r.PathValue("id"))
}

func (s *Server) handleGetAsyncSummary(w http.ResponseWriter, r *http.Request) {
	s.writeSummaryStatus(w, r, r.PathValue("id"))
}

func (s *Server) writeSummaryStatus(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := s.jobs.Get(r.Context(), id)
	if err != nil && !errors.Is(err, ledger.ErrNotFound) {
		s.log.Error(r.Context(), "Error getting summary for %s: %v", id, err)
		msg := "Internal server error: " + err.Error()
		writeJSON(w, http.StatusInternalServerError, summaryResponse{Status: "error", MeetingID: id, Error: &msg})
		return
	}

	status, body := summaryStatus(id, rec)
	if status == http.StatusInternalServerError {
		s.log.Error(r.Context(), "Summary %s: %s", id, *body.Error)
	}
	writeJSON(w, status, body)
}

// summaryStatus maps a ledger record to the reply a poller sees. rec is nil
// when no record exists.
func summaryStatus(id string, rec *models.JobRecord) (int, summaryResponse) {
	if rec == nil {
		msg := "Meeting ID not found"
		return http.StatusNotFound, summaryResponse{Status: "error", MeetingID: id, Error: &msg}
	}

	body := summaryResponse{
		Status:    string(rec.Status),
		MeetingID: id,
		Start:     rec.StartTime,
		End:       rec.EndTime,
		Error:     rec.Error,
	}

	switch rec.Status {
	case models.StatusCreated, models.StatusProcessing:
		body.Status = string(models.StatusProcessing)
		return http.StatusAccepted, body

	case models.StatusFailed:
		return http.StatusBadRequest, body

	case models.StatusCompleted:
		doc, err := ledger.DecodeResult(rec)
		if err != nil {
			msg := "Completed but summary data is missing or invalid"
			body.Status = "error"
			body.Error = &msg
			return http.StatusInternalServerError, body
		}
		body.Data = doc
		if doc.MeetingName != "" {
			name := doc.MeetingName
			body.MeetingName = &name
		}
		return http.StatusOK, body

	default:
		msg := fmt.Sprintf("Unknown or unexpected status: %s", rec.Status)
		body.Status = "error"
		body.Error = &msg
		return http.StatusInternalServerError, body
	}
}

// readTranscriptRequest accepts either a JSON body or a multipart form with
// an optional transcriptFile upload whose text replaces the text field.
func (s *Server) readTranscriptRequest(w http.ResponseWriter, r *http.Request) (transcriptRequest, error) {
	var req transcriptRequest
	maxBytes := int64(s.cfg.MaxUploadMB) << 20

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := decodeJSON(r, &req); err != nil {
			return req, fmt.Errorf("%w: invalid request body", errBadRequest)
		}
		return req, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return req, fmt.Errorf("%w: invalid multipart form: %v", errBadRequest, err)
	}

	req.MeetingID = r.FormValue("meeting_id")
	req.Text = r.FormValue("text")
	req.Model = r.FormValue("model")
	req.ModelName = r.FormValue("model_name")

	var err error
	if req.ChunkSize, err = formInt(r, "chunk_size"); err != nil {
		return req, err
	}
	if req.Overlap, err = formInt(r, "overlap"); err != nil {
		return req, err
	}

	file, header, err := r.FormFile("transcriptFile")
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil
	}
	if err != nil {
		return req, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return req, fmt.Errorf("%w: failed to read transcript file: %v", errBadRequest, err)
	}
	text, err := transcript.Extract(header.Filename, data)
	if err != nil {
		return req, err
	}
	req.Text = text
	return req, nil
}

func formInt(r *http.Request, key string) (*int, error) {
	raw := strings.TrimSpace(r.FormValue(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", errBadRequest, key)
	}
	return &v, nil
}
