package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/crowdchess/crowdchess/internal/coordinator"
	"github.com/crowdchess/crowdchess/internal/engine"
	"github.com/crowdchess/crowdchess/internal/game"
	"github.com/crowdchess/crowdchess/internal/models"
	"github.com/crowdchess/crowdchess/internal/rules"
)

const adminTokenHeader = "X-Admin-Token"

type joinRequest struct {
	PlayerID    string       `json:"player_id"`
	DisplayName string       `json:"display_name"`
	Color       models.Color `json:"color"`
}

type playerRequest struct {
	PlayerID string `json:"player_id"`
}

type moveRequest struct {
	PlayerID  string `json:"player_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

type kickRequest struct {
	DisplayName string `json:"display_name"`
}

type okResponse struct {
	Version int64 `json:"version"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !decode(w, r, &req) {
		return
	}
	if req.PlayerID == "" || req.DisplayName == "" || !req.Color.Valid() {
		writeBadRequest(w, "player_id, display_name and color are required")
		return
	}
	state, err := s.app.Join(r.Context(), req.PlayerID, req.DisplayName, req.Color)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Version: state.Version})
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if !decode(w, r, &req) {
		return
	}
	if req.PlayerID == "" {
		writeBadRequest(w, "player_id is required")
		return
	}
	state, err := s.app.Leave(r.Context(), req.PlayerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Version: state.Version})
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if !decode(w, r, &req) {
		return
	}
	if req.PlayerID == "" {
		writeBadRequest(w, "player_id is required")
		return
	}
	state, err := s.app.ConfirmReady(r.Context(), req.PlayerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Version: state.Version})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if !decode(w, r, &req) {
		return
	}
	if req.PlayerID == "" || req.From == "" || req.To == "" {
		writeBadRequest(w, "player_id, from and to are required")
		return
	}
	mv := models.Move{From: req.From, To: req.To, Promotion: req.Promotion}
	state, err := s.app.Move(r.Context(), req.PlayerID, mv)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Version: state.Version})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	state, err := s.app.Reset(r.Context(), r.Header.Get(adminTokenHeader))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Version: state.Version})
}

func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	state, err := s.app.ClearAll(r.Context(), r.Header.Get(adminTokenHeader))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Version: state.Version})
}

func (s *Server) handleKick(w http.ResponseWriter, r *http.Request) {
	var req kickRequest
	if !decode(w, r, &req) {
		return
	}
	if req.DisplayName == "" {
		writeBadRequest(w, "display_name is required")
		return
	}
	state, err := s.app.KickByName(r.Context(), r.Header.Get(adminTokenHeader), req.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Version: state.Version})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	view, err := s.app.View(r.Context(), r.URL.Query().Get("viewer_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.app.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	stats["observers"] = int64(s.hub.ConnectionCount())
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	if err := s.hub.Subscribe(w, r, r.URL.Query().Get("viewer_id")); err != nil {
		log.Error().Err(err).Msg("observer subscription failed")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		log.Debug().Err(err).Msg("failed to write health response")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeBadRequest(w, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("failed to encode response")
	}
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// writeError maps business failures onto status codes; the error classes are
// deterministic, so the mapping is exhaustive by sentinel.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrAlreadyQueued):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "already_queued"})
	case errors.Is(err, engine.ErrAlreadyPlaying):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "already_playing"})
	case errors.Is(err, engine.ErrNotYourTurn):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "not_your_turn"})
	case errors.Is(err, engine.ErrNothingToConfirm):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "nothing_to_confirm"})
	case errors.Is(err, engine.ErrNotConfirmed):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "not_confirmed"})
	case errors.Is(err, engine.ErrConfirmationExpired):
		writeJSON(w, http.StatusGone, errorResponse{Error: "confirmation_expired"})
	case errors.Is(err, engine.ErrMoveExpired):
		writeJSON(w, http.StatusGone, errorResponse{Error: "move_expired"})
	case errors.Is(err, rules.ErrIllegalMove):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "illegal_move"})
	case errors.Is(err, engine.ErrPlayerNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found"})
	case errors.Is(err, game.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
	case errors.Is(err, coordinator.ErrConcurrentModification):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "concurrent_modification"})
	case errors.Is(err, coordinator.ErrStoreUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "store_unavailable"})
	default:
		log.Error().Err(err).Msg("unhandled operation error")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal"})
	}
}
