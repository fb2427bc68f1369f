package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/ordervox/ordervox/internal/dialog"
	"github.com/ordervox/ordervox/internal/orchestrator"
	"github.com/ordervox/ordervox/internal/session"
	"github.com/ordervox/ordervox/internal/voice"
	"github.com/ordervox/ordervox/pkg/types"
)

type newCarRequest struct {
	RestaurantID int `json:"restaurant_id"`
}

type newCarResponse struct {
	SessionID        string           `json:"session_id"`
	GreetingAudioURL string           `json:"greeting_audio_url,omitempty"`
	Session          *session.Session `json:"session"`
}

// handleNewCar starts a session for the car that just pulled up and returns
// the greeting audio. A previous unfinished session is cancelled by the
// store.
func (s *Server) handleNewCar(w http.ResponseWriter, r *http.Request) {
	var req newCarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.RestaurantID <= 0 {
		writeError(w, http.StatusBadRequest, "restaurant_id is required")
		return
	}

	sess, err := s.sessions.NewCar(r.Context(), req.RestaurantID)
	if err != nil {
		s.logger.Error("new car failed", "restaurant_id", req.RestaurantID, "error", err)
		writeError(w, statusFor(err), "could not start session")
		return
	}

	resp := newCarResponse{SessionID: sess.ID, Session: sess}
	// The greeting is pre-rendered per restaurant; a voice failure only
	// costs the audio, not the session.
	if res, err := s.voice.Generate(r.Context(), voice.Request{
		PhraseType:   dialog.PhraseGreeting,
		RestaurantID: req.RestaurantID,
	}); err != nil {
		s.logger.Error("greeting generation failed",
			"session_id", sess.ID, "error", err)
	} else {
		resp.GreetingAudioURL = res.AudioURL
	}

	writeJSON(w, http.StatusCreated, resp)
}

// handleNextCar finishes with the current car and clears the lane.
func (s *Server) handleNextCar(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.NextCar(r.Context()); err != nil {
		s.logger.Error("next car failed", "error", err)
		writeError(w, statusFor(err), "could not advance the lane")
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

// handleCurrentSession returns the lane's active session.
func (s *Server) handleCurrentSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Current(r.Context())
	if err != nil {
		writeError(w, statusFor(err), "no active session")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleUpdateSession applies a partial update to a session by id. Writes
// against a session that is no longer the lane's current one are rejected
// with 409.
func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sess, err := s.sessions.Patch(r.Context(), id, fields)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("session update failed", "session_id", id, "error", err)
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type turnResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	*orchestrator.TurnResult
}

// handleProcessAudio accepts one multipart utterance and runs it through
// the pipeline. Fields: audio_file (required), restaurant_id (required),
// session_id (optional, defaults to the current session), language
// (optional BCP-47 hint).
func (s *Server) handleProcessAudio(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	restaurantID, err := strconv.Atoi(r.FormValue("restaurant_id"))
	if err != nil || restaurantID <= 0 {
		writeError(w, http.StatusBadRequest, "restaurant_id is required")
		return
	}

	file, header, err := r.FormFile("audio_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio_file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read audio_file")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "audio_file is empty")
		return
	}

	clip := types.AudioClip{
		Data:     data,
		Format:   clipFormat(header.Filename),
		Language: r.FormValue("language"),
	}

	// Retain the raw clip for audit. Best effort: a storage failure must not
	// cost the turn.
	if _, err := s.voice.SaveRecording(r.Context(), restaurantID, header.Filename, clip); err != nil {
		s.logger.Warn("recording retention failed",
			"restaurant_id", restaurantID, "filename", header.Filename, "error", err)
	}

	result, err := s.turns.ProcessAudio(r.Context(), orchestrator.TurnRequest{
		SessionID: r.FormValue("session_id"),
		Clip:      clip,
	})
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("turn failed", "error", err)
		}
		writeJSON(w, status, turnResponse{Success: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, turnResponse{Success: true, TurnResult: result})
}

// clipFormat derives the codec hint from the uploaded filename.
func clipFormat(filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(filename)), ".")
	if ext == "" {
		return "wav"
	}
	return ext
}

// writeJSON encodes v as JSON with the given status code. On encoding
// failure it falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
	}
}

// writeError writes the standard error envelope.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
