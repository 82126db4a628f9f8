package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/mkarlsen/geocoin/internal/board"
	"github.com/mkarlsen/geocoin/internal/game"
	"github.com/mkarlsen/geocoin/internal/survey"
)

// maxEventWait caps the long-poll duration so requests stay inside the
// router's timeout middleware.
const maxEventWait = 25 * time.Second

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, StateResponse{
		State:   s.ctrl.Snapshot(),
		Version: Version,
	})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", "invalid JSON request body")
		return
	}

	var err error
	switch {
	case req.Lat != nil && req.Lng != nil:
		err = s.ctrl.MoveTo(board.Point{Lat: *req.Lat, Lng: *req.Lng})
	case req.Direction != "":
		err = s.ctrl.Move(game.Direction(req.Direction))
	default:
		s.errorHandler.HandleValidationError(w, r, "direction", "either direction or lat+lng is required")
		return
	}

	if errors.Is(err, game.ErrUnknownDirection) {
		s.errorHandler.HandleValidationError(w, r, "direction", err.Error())
		return
	}
	if err != nil {
		s.errorHandler.HandleError(w, r, err, http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, MutationResponse{
		Changed: true,
		State:   s.ctrl.Snapshot(),
		Version: Version,
	})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleCoinTransfer(w, r, s.ctrl.Withdraw)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	s.handleCoinTransfer(w, r, s.ctrl.Deposit)
}

func (s *Server) handleCoinTransfer(w http.ResponseWriter, r *http.Request, op func(i, j int64) (bool, error)) {
	var req CellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", "invalid JSON request body")
		return
	}

	changed, err := op(req.I, req.J)
	if errors.Is(err, game.ErrCacheNotVisible) {
		apiErr := NewError(ErrTypeNotVisible, err.Error()).
			WithContext("i", req.I).
			WithContext("j", req.J).
			Build()
		s.errorHandler.HandleError(w, r, apiErr, http.StatusNotFound)
		return
	}
	if err != nil {
		s.errorHandler.HandleError(w, r, err, http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, MutationResponse{
		Changed: changed,
		State:   s.ctrl.Snapshot(),
		Version: Version,
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Reset(); err != nil {
		s.errorHandler.HandleError(w, r, err, http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, MutationResponse{
		Changed: true,
		State:   s.ctrl.Snapshot(),
		Version: Version,
	})
}

func (s *Server) handleCells(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if errLat != nil || errLng != nil {
		s.errorHandler.HandleValidationError(w, r, "lat/lng", "lat and lng query parameters are required numbers")
		return
	}

	s.writeJSON(w, http.StatusOK, CellsResponse{
		Cells:   s.ctrl.CellsNear(board.Point{Lat: lat, Lng: lng}),
		Version: Version,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var since uint64
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			s.errorHandler.HandleValidationError(w, r, "since", "since must be a non-negative integer")
			return
		}
		since = parsed
	}

	var wait time.Duration
	if raw := r.URL.Query().Get("wait_ms"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms < 0 {
			s.errorHandler.HandleValidationError(w, r, "wait_ms", "wait_ms must be a non-negative integer")
			return
		}
		wait = time.Duration(ms) * time.Millisecond
		if wait > maxEventWait {
			wait = maxEventWait
		}
	}

	var evts []game.Event
	if wait > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), wait)
		defer cancel()

		var err error
		evts, err = s.ctrl.WaitEvents(ctx, since)
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			s.errorHandler.HandleError(w, r, err, http.StatusInternalServerError)
			return
		}
	} else {
		evts = s.ctrl.EventsSince(since)
	}

	latest := since
	if len(evts) > 0 {
		latest = evts[len(evts)-1].Seq
	}
	s.writeJSON(w, http.StatusOK, EventsResponse{
		Events:    evts,
		LatestSeq: latest,
		Version:   Version,
	})
}

func (s *Server) handleSurvey(w http.ResponseWriter, r *http.Request) {
	if s.scanner == nil {
		s.errorHandler.HandleError(w, r,
			NewError(ErrTypeInternal, "survey is not enabled").Build(),
			http.StatusNotImplemented)
		return
	}

	req := survey.Request{}
	fields := []struct {
		name string
		dst  *int64
	}{
		{"min_i", &req.MinI},
		{"min_j", &req.MinJ},
		{"max_i", &req.MaxI},
		{"max_j", &req.MaxJ},
	}
	for _, f := range fields {
		parsed, err := strconv.ParseInt(r.URL.Query().Get(f.name), 10, 64)
		if err != nil {
			s.errorHandler.HandleValidationError(w, r, f.name, f.name+" query parameter is a required integer")
			return
		}
		*f.dst = parsed
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.errorHandler.HandleValidationError(w, r, "limit", "limit must be a non-negative integer")
			return
		}
		req.Limit = limit
	}

	result, err := s.scanner.Scan(r.Context(), req)
	if err != nil {
		// The scanner only fails on malformed regions.
		s.errorHandler.HandleValidationError(w, r, "region", err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, SurveyResponse{
		Survey:  result,
		Version: Version,
	})
}
