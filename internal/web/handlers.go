package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/diemxuan/face-attendance/internal/gallery"
	"github.com/diemxuan/face-attendance/internal/hr"
	"github.com/diemxuan/face-attendance/internal/session"
)

const errInvalidRequestBody = "invalid request body"

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type startSessionRequest struct {
	Action string `json:"action"`
}

type sessionResponse struct {
	ID     string          `json:"id"`
	Action string          `json:"action"`
	Phase  string          `json:"phase"`
	Frame  int             `json:"frame"`
	Label  string          `json:"label,omitempty"`
	Box    *[4]float64     `json:"box,omitempty"`
	Done   bool            `json:"done"`
	Result *outcomePayload `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type outcomePayload struct {
	Outcome   string `json:"outcome"` // accepted or timed_out
	Identity  string `json:"identity,omitempty"`
	Name      string `json:"name,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Recorded  bool   `json:"recorded"`
	SinkError string `json:"sink_error,omitempty"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	action, err := hr.ParseAction(req.Action)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	loop, err := s.newLoop(action)
	if err != nil {
		s.logger.Error("failed to build session loop", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to prepare session")
		return
	}

	// Detach from the request context; the session outlives this call.
	id, err := s.manager.Start(context.Background(), loop)
	if err != nil {
		if errors.Is(err, session.ErrBusy) {
			respondError(w, http.StatusConflict, "a session or gallery sync is already running")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{
		"id":     id.String(),
		"action": string(action),
	})
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	st, err := s.manager.Status(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, sessionStatusPayload(st))
}

func sessionStatusPayload(st session.Status) sessionResponse {
	resp := sessionResponse{
		ID:    st.ID.String(),
		Phase: st.Phase.String(),
		Frame: st.Frame,
		Done:  st.Done,
		Error: st.RunError,
	}
	if st.Last.Name != "" {
		resp.Label = st.Last.Name
	}
	if st.Last.HasBox {
		box := st.Last.Box
		resp.Box = &box
	}
	if st.Outcome != nil {
		resp.Action = string(st.Outcome.Action)
		out := &outcomePayload{
			Outcome:  st.Outcome.Phase.String(),
			Identity: st.Outcome.Identity,
			Name:     st.Outcome.Name,
			Recorded: st.Outcome.Recorded,
		}
		if st.Outcome.Phase == session.PhaseAccepted {
			out.Timestamp = st.Outcome.Timestamp.Format("2006-01-02 15:04:05")
		}
		if st.Outcome.SinkErr != nil {
			out.SinkError = st.Outcome.SinkErr.Error()
		}
		resp.Result = out
	}
	return resp
}

func (s *Server) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	if err := s.manager.Cancel(id); err != nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

type galleryEntryPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s *Server) handleListGallery(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ReadAll(r.Context())
	if err != nil {
		s.logger.Error("failed to read gallery", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to read gallery")
		return
	}

	out := make([]galleryEntryPayload, 0, len(entries))
	for _, e := range entries {
		out = append(out, galleryEntryPayload{ID: e.ID, Name: e.Name})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":   len(out),
		"entries": out,
	})
}

func (s *Server) handleSyncGallery(w http.ResponseWriter, r *http.Request) {
	release, err := s.manager.BeginSync()
	if err != nil {
		respondError(w, http.StatusConflict, "a session or gallery sync is already running")
		return
	}
	defer release()

	employees, err := s.roster.FetchEmployees(r.Context())
	if err != nil {
		s.logger.Error("failed to fetch roster", zap.Error(err))
		respondError(w, http.StatusBadGateway, "failed to fetch employee roster")
		return
	}

	res, err := s.enroller.SyncRoster(r.Context(), employees, nil)
	if err != nil {
		s.logger.Error("gallery sync failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "gallery sync failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int{
		"enrolled": res.Enrolled,
		"skipped":  res.Skipped,
	})
}

type nearestRequest struct {
	Embedding []float32 `json:"embedding"`
	K         int       `json:"k"`
}

type neighborPayload struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
}

// handleNearest answers approximate nearest-neighbor lookups against the
// current gallery. Operators use it to debug borderline matches.
func (s *Server) handleNearest(w http.ResponseWriter, r *http.Request) {
	var req nearestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(req.Embedding) != gallery.EmbeddingDim {
		respondError(w, http.StatusBadRequest, "embedding has wrong dimension")
		return
	}
	if req.K <= 0 {
		req.K = 5
	}

	entries, err := s.store.ReadAll(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read gallery")
		return
	}

	idx := gallery.NewIndex(entries)
	neighbors, err := idx.Nearest(req.Embedding, req.K)
	if err != nil {
		respondError(w, http.StatusNotFound, "gallery is empty")
		return
	}

	out := make([]neighborPayload, 0, len(neighbors))
	for _, n := range neighbors {
		out = append(out, neighborPayload{
			ID:         n.Entry.ID,
			Name:       n.Entry.Name,
			Similarity: n.Similarity,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"neighbors": out})
}
