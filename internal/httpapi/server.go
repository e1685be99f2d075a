package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"incident-search/internal/domain"
	"incident-search/internal/insights"
	"incident-search/internal/logging"
)

const maxK = 100

// Server exposes the search service over HTTP.
type Server struct {
	svc       domain.SearchService
	gatherer  prometheus.Gatherer
	log       *zap.Logger
	topModels int
	router    *mux.Router
}

// New routes the JSON API, health check and, when gatherer is non-nil, the
// Prometheus scrape endpoint. topModels bounds the insights model ranking.
func New(svc domain.SearchService, gatherer prometheus.Gatherer, topModels int, log *zap.Logger) *Server {
	s := &Server{svc: svc, gatherer: gatherer, topModels: topModels, log: logging.OrNop(log)}
	r := mux.NewRouter()
	// routes stay on the root router: a PathPrefix subrouter reports a
	// method mismatch as 404 instead of 405
	r.HandleFunc("/api/search", s.handleSearch).Methods(http.MethodGet)
	r.HandleFunc("/api/records", s.handleRecords).Methods(http.MethodGet)
	r.HandleFunc("/api/insights", s.handleInsights).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	s.router = r
	return s
}

// ServeHTTP dispatches to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

// ListenAndServe serves on addr until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info("http server listening", zap.String("addr", addr))
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	}
}

type searchResponse struct {
	Query   string               `json:"query"`
	K       int                  `json:"k"`
	Results []domain.QueryResult `json:"results"`
}

type recordsResponse struct {
	Total   int                     `json:"total"`
	Offset  int                     `json:"offset"`
	Records []domain.IncidentRecord `json:"records"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	k, err := intParam(r, "k", 0)
	if err != nil || k < 0 || k > maxK {
		writeError(w, http.StatusBadRequest, "k must be an integer between 0 and 100")
		return
	}
	res, err := s.svc.FindSimilar(r.Context(), q, k)
	switch {
	case errors.Is(err, domain.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, "Please enter a description.")
		return
	case errors.Is(err, domain.ErrIndexNotBuilt):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		s.log.Error("search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if res == nil {
		res = []domain.QueryResult{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: q, K: k, Results: res})
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	offset, err1 := intParam(r, "offset", 0)
	limit, err2 := intParam(r, "limit", 50)
	if err1 != nil || err2 != nil || offset < 0 || limit <= 0 {
		writeError(w, http.StatusBadRequest, "offset and limit must be non-negative integers")
		return
	}
	all := s.svc.Records()
	start := min(offset, len(all))
	end := start + min(limit, len(all)-start)
	writeJSON(w, http.StatusOK, recordsResponse{Total: len(all), Offset: start, Records: all[start:end]})
}

func (s *Server) handleInsights(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, insights.Compute(s.svc.Records(), s.topModels))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "records": s.svc.Count()})
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
