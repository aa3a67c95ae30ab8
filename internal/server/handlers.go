package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/siri1404/NeuroRAG/internal/core"
)

type searchRequest struct {
	QueryVector []float32         `json:"query_vector"`
	K           int               `json:"k"`
	Threshold   float32           `json:"threshold"`
	Filters     map[string]string `json:"filters,omitempty"`
	TimeoutMs   int               `json:"timeout_ms,omitempty"`
}

type searchResponse struct {
	IDs       []int64             `json:"ids"`
	Scores    []float32           `json:"scores"`
	Metadata  []map[string]string `json:"metadata"`
	FromCache bool                `json:"from_cache"`
	LatencyMs float64             `json:"latency_ms"`
}

type vectorPayload struct {
	ID       int64             `json:"id"`
	Values   []float32         `json:"values"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type addVectorsRequest struct {
	Vectors []vectorPayload `json:"vectors"`
}

type removeVectorsRequest struct {
	IDs []int64 `json:"ids"`
}

type fileRequest struct {
	Path string `json:"path"`
}

func (sr searchRequest) toCore() core.SearchRequest {
	req := core.SearchRequest{
		Query:     sr.QueryVector,
		K:         sr.K,
		Threshold: sr.Threshold,
		Filters:   sr.Filters,
		RequestID: uuid.NewString(),
	}
	if sr.TimeoutMs > 0 {
		req.Deadline = time.Now().Add(time.Duration(sr.TimeoutMs) * time.Millisecond)
	}
	return req
}

func toResponse(res core.SearchResult) searchResponse {
	out := searchResponse{
		IDs:       res.IDs,
		Scores:    res.Scores,
		Metadata:  res.Metadata,
		FromCache: res.FromCache,
		LatencyMs: float64(res.Latency.Microseconds()) / 1000,
	}
	if out.IDs == nil {
		out.IDs = []int64{}
	}
	if out.Scores == nil {
		out.Scores = []float32{}
	}
	if out.Metadata == nil {
		out.Metadata = []map[string]string{}
	}
	return out
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case core.IsValidation(err):
		return http.StatusBadRequest
	case core.IsCapacity(err):
		return http.StatusServiceUnavailable
	case core.IsTimeout(err):
		return http.StatusGatewayTimeout
	case core.IsUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.engine.Search(r.Context(), req.toCore())
	if err != nil {
		s.logger.Debug("search failed", zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, toResponse(res))
}

func (s *Server) handleBatchSearch(w http.ResponseWriter, r *http.Request) {
	var reqs []searchRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	coreReqs := make([]core.SearchRequest, len(reqs))
	for i, sr := range reqs {
		coreReqs[i] = sr.toCore()
	}
	results, errs := s.engine.BatchSearch(r.Context(), coreReqs)

	type batchItem struct {
		Result *searchResponse `json:"result,omitempty"`
		Error  string          `json:"error,omitempty"`
	}
	items := make([]batchItem, len(results))
	for i := range results {
		if errs[i] != nil {
			items[i] = batchItem{Error: errs[i].Error()}
			continue
		}
		resp := toResponse(results[i])
		items[i] = batchItem{Result: &resp}
	}
	s.respondJSON(w, http.StatusOK, items)
}

func (s *Server) handleAddVectors(w http.ResponseWriter, r *http.Request) {
	var req addVectorsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Vectors) == 0 {
		s.respondError(w, http.StatusBadRequest, "vectors is required")
		return
	}

	entries := make([]core.VectorEntry, len(req.Vectors))
	for i, v := range req.Vectors {
		entries[i] = core.VectorEntry{ID: v.ID, Values: v.Values, Metadata: v.Metadata}
	}
	if err := s.engine.AddVectors(r.Context(), entries); err != nil {
		s.logger.Debug("add vectors failed", zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]int{"inserted": len(entries)})
}

func (s *Server) handleRemoveVectors(w http.ResponseWriter, r *http.Request) {
	var req removeVectorsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		s.respondError(w, http.StatusBadRequest, "ids is required")
		return
	}

	removed, err := s.engine.RemoveVectors(r.Context(), req.IDs)
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) handleVectorMetadata(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid vector id")
		return
	}

	meta, err := s.engine.VectorMetadata(r.Context(), id)
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"id": id, "metadata": meta})
}

func (s *Server) handleCompact(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Compact(r.Context()); err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "compacted"})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	// Body is optional; an empty path saves to the configured location.
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := s.engine.Save(req.Path); err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}

	n, err := s.engine.BulkImport(r.Context(), req.Path)
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int{"imported": n})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}

	n, err := s.engine.BulkExport(r.Context(), req.Path)
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int{"exported": n})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.engine.Statistics())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.engine.Healthy() {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
