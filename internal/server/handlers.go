package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/leapopt/internal/state"
	"github.com/leapstack-labs/leapopt/pkg/compiler"
	"github.com/leapstack-labs/leapopt/pkg/lint"
	"github.com/leapstack-labs/leapopt/pkg/solver"
)

// modelRequest is the body of compile, solve and lint requests.
type modelRequest struct {
	Source string         `json:"source"`
	Name   string         `json:"name,omitempty"`
	Tables map[string]any `json:"tables,omitempty"`
	// Options is decoded into solveOptions.
	Options map[string]any `json:"options,omitempty"`
}

type compileResponse struct {
	Valid    bool              `json:"valid"`
	Errors   []string          `json:"errors,omitempty"`
	Program  string            `json:"program,omitempty"`
	Summary  *compiler.Summary `json:"summary,omitempty"`
	RecordID string            `json:"record_id,omitempty"`
	Result   *solver.Result    `json:"result,omitempty"`
}

type lintResponse struct {
	Diagnostics []lint.Diagnostic `json:"diagnostics"`
	HasErrors   bool              `json:"has_errors"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	resp, _ := s.compileRequest(r, req, nil)
	status := http.StatusOK
	if !resp.Valid {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	opts, err := s.solveOptions(req.Options)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, _ := s.compileRequest(r, req, &opts)
	status := http.StatusOK
	if !resp.Valid {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleLint(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	diags := s.analyzer.Analyze(req.Source)
	if diags == nil {
		diags = []lint.Diagnostic{}
	}
	writeJSON(w, http.StatusOK, lintResponse{Diagnostics: diags, HasErrors: lint.HasErrors(diags)})
}

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, errors.New("history is disabled"))
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}

	var (
		records []*state.Record
		err     error
	)
	if class := r.URL.Query().Get("class"); class != "" {
		records, err = s.store.ListByClass(r.Context(), class, limit)
	} else {
		records, err = s.store.List(r.Context(), limit)
	}
	if err != nil {
		s.logger.Error("failed to list history", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if records == nil {
		records = []*state.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleHistoryGet(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, errors.New("history is disabled"))
		return
	}
	rec, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, state.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request) (*modelRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req modelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return nil, false
	}
	if strings.TrimSpace(req.Source) == "" {
		writeError(w, http.StatusBadRequest, errors.New("source is required"))
		return nil, false
	}
	return &req, true
}

// compileRequest compiles one request, solving it when solve is non-nil,
// and records it in the history store.
func (s *Server) compileRequest(r *http.Request, req *modelRequest, solve *compiler.SolveOptions) (*compileResponse, error) {
	ctx := r.Context()
	opts := s.compile
	opts.Name = req.Name
	if len(req.Tables) > 0 {
		tables := make(map[string]any, len(s.compile.Tables)+len(req.Tables))
		for k, v := range s.compile.Tables {
			tables[k] = v
		}
		for k, v := range req.Tables {
			tables[k] = v
		}
		opts.Tables = tables
	}

	resp := &compileResponse{}
	m, err := compiler.Compile(ctx, req.Source, opts)
	rec := state.NewRecord(req.Name, req.Source)
	rec.SetCompiled(m, err)
	if err != nil {
		resp.Errors = rec.Errors
	} else {
		resp.Valid = true
		resp.Program = m.Program()
		summary := m.Summary()
		resp.Summary = &summary
		if solve != nil {
			resp.Result = m.Solve(ctx, *solve)
			rec.SetResult(resp.Result)
		}
	}

	if s.store != nil {
		if serr := s.store.Save(ctx, rec); serr != nil {
			s.logger.Warn("failed to record history", slog.String("error", serr.Error()))
		} else {
			resp.RecordID = rec.ID
		}
	}
	return resp, err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
