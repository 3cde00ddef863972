package web

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/schemalink/internal/dataset"
	"github.com/schemalink/internal/linkage"
	"github.com/schemalink/internal/pipeline"
	"github.com/schemalink/internal/store"
	"github.com/schemalink/internal/transform"
)

// runRequest is the POST /api/runs body. Rows may be inline or referenced
// by stored dataset id (store required for the latter).
type runRequest struct {
	Source          []dataset.Row `json:"source"`
	Target          []dataset.Row `json:"target"`
	SourceDatasetID string        `json:"sourceDatasetId"`
	TargetDatasetID string        `json:"targetDatasetId"`

	Procedure    string   `json:"procedure"`
	Mode         string   `json:"mode"`
	MatchColumns []string `json:"matchColumns"`
	Fuzzy        struct {
		Algorithm string  `json:"algorithm"`
		Threshold float64 `json:"threshold"`
	} `json:"fuzzy"`

	// Persist stores the run summary when a store is configured.
	Persist bool `json:"persist"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"storeReady": s.store != nil,
	})
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	source, err := s.resolveRows(r, req.Source, req.SourceDatasetID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	target, err := s.resolveRows(r, req.Target, req.TargetDatasetID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := pipeline.Run(r.Context(), pipeline.Request{
		Source:    source,
		Target:    target,
		Procedure: req.Procedure,
		Link: linkage.Options{
			Mode:         linkage.Mode(req.Mode),
			MatchColumns: req.MatchColumns,
			Algorithm:    req.Fuzzy.Algorithm,
			Threshold:    req.Fuzzy.Threshold,
		},
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, transform.ErrMalformedProcedure) || errors.Is(err, linkage.ErrInvalidJoinSpec) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	if req.Persist && s.store != nil {
		summary := &store.Run{
			ID:           result.RunID,
			Mode:         req.Mode,
			MatchColumns: req.MatchColumns,
			SuccessCount: result.SuccessCount,
			ErrorCount:   result.ErrorCount,
			Stats:        result.Stats,
			Metrics:      result.Metrics,
		}
		if err := s.store.SaveRun(r.Context(), summary); err != nil {
			writeError(w, http.StatusInternalServerError, "persist run: "+err.Error())
			return
		}
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns(r.Context(), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	run, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "run not found: "+id)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleSaveDataset(w http.ResponseWriter, r *http.Request) {
	var ds dataset.Dataset
	if err := json.NewDecoder(r.Body).Decode(&ds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if len(ds.Columns) == 0 {
		ds.Columns = dataset.ColumnUnion(ds.Rows)
	}

	id, err := s.store.SaveDataset(r.Context(), &ds)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ds, err := s.store.GetDataset(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "dataset not found: "+id)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

// resolveRows prefers inline rows, falling back to a stored dataset id.
func (s *Server) resolveRows(r *http.Request, inline []dataset.Row, datasetID string) ([]dataset.Row, error) {
	if len(inline) > 0 || datasetID == "" {
		return inline, nil
	}
	if s.store == nil {
		return nil, errors.New("dataset references need a configured store")
	}
	ds, err := s.store.GetDataset(r.Context(), datasetID)
	if err != nil {
		return nil, err
	}
	return ds.Rows, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
