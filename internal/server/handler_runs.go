package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/me/memsched/internal/engine"
	"github.com/me/memsched/pkg/model"
)

// createRunRequest is the POST /runs body: a model document plus scheduling
// options.
type createRunRequest struct {
	Model     string `json:"model"`
	Algorithm string `json:"algorithm,omitempty"`
	Seed      int64  `json:"seed,omitempty"`
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 4<<20))
	if err != nil {
		respondErr(w, reqID, http.StatusBadRequest,
			model.NewValidationError("read body: "+err.Error()))
		return
	}
	var req createRunRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondErr(w, reqID, http.StatusBadRequest,
			model.NewValidationError("invalid JSON body: "+err.Error()))
		return
	}
	if req.Model == "" {
		respondErr(w, reqID, http.StatusBadRequest,
			model.NewValidationError("model document is required"))
		return
	}
	if req.Algorithm != "" && !model.ValidAlgorithm(req.Algorithm) {
		respondErr(w, reqID, http.StatusBadRequest,
			model.NewValidationError("unknown algorithm: "+req.Algorithm))
		return
	}

	result, err := engine.Execute(engine.Request{
		Model:     []byte(req.Model),
		Algorithm: req.Algorithm,
		Seed:      req.Seed,
	}, s.logger)
	if err != nil {
		// Parser validation failures carry per-field details; pass them
		// through instead of flattening to a string.
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			respondErr(w, reqID, http.StatusUnprocessableEntity, apiErr)
			return
		}
		respondErr(w, reqID, http.StatusUnprocessableEntity,
			model.NewValidationError(err.Error()))
		return
	}

	if err := s.store.CreateRun(r.Context(), result.Run); err != nil {
		s.logger.Error("persist run", "error", err)
		respondErr(w, reqID, http.StatusInternalServerError,
			model.NewInternalError("persist run"))
		return
	}
	respond(w, http.StatusCreated, reqID, result.Run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts := model.DefaultListOptions()
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondErr(w, reqID, http.StatusBadRequest,
				model.NewValidationError("invalid limit"))
			return
		}
		opts.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondErr(w, reqID, http.StatusBadRequest,
				model.NewValidationError("invalid offset"))
			return
		}
		opts.Offset = n
	}
	opts.Clamp()

	runs, total, err := s.store.ListRuns(r.Context(), opts)
	if err != nil {
		s.logger.Error("list runs", "error", err)
		respondErr(w, reqID, http.StatusInternalServerError,
			model.NewInternalError("list runs"))
		return
	}
	if runs == nil {
		runs = []*model.Run{}
	}
	respondPage(w, reqID, runs, &model.Pagination{
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+len(runs) < total,
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		s.logger.Error("get run", "id", id, "error", err)
		respondErr(w, reqID, http.StatusInternalServerError,
			model.NewInternalError("get run"))
		return
	}
	if run == nil {
		respondErr(w, reqID, http.StatusNotFound, model.NewNotFoundError("run", id))
		return
	}
	respond(w, http.StatusOK, reqID, run)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	err := s.store.DeleteRun(r.Context(), id)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrNotFound {
			respondErr(w, reqID, http.StatusNotFound, apiErr)
			return
		}
		s.logger.Error("delete run", "id", id, "error", err)
		respondErr(w, reqID, http.StatusInternalServerError,
			model.NewInternalError("delete run"))
		return
	}
	respond(w, http.StatusOK, reqID, map[string]string{"id": id, "deleted": "true"})
}
