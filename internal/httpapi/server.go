// Package httpapi exposes the generation pipeline and the arbiter status
// over HTTP.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"vramd/internal/service"
	"vramd/pkg/types"
)

// maxBodyBytes caps JSON request bodies at 1 MiB.
const maxBodyBytes int64 = 1 << 20

// Generator is the slice of the generation service the HTTP layer needs.
type Generator interface {
	Submit(p types.GenerationParams) (*service.Request, error)
	Get(id string) (types.RequestSnapshot, error)
	Cancel(id string) (bool, error)
	List() []types.RequestSnapshot
	LoadModel() error
	UnloadModel() error
	Status() types.ServiceStatus
}

// VRAMReporter provides the arbiter-wide snapshot.
type VRAMReporter interface {
	Status() types.VRAMStatus
}

type server struct {
	gen       Generator
	vram      VRAMReporter
	log       zerolog.Logger
	startTime time.Time
}

// NewMux builds the HTTP handler: generation pipeline, status, healthz and
// prometheus metrics.
func NewMux(gen Generator, vram VRAMReporter, log zerolog.Logger) http.Handler {
	s := &server{gen: gen, vram: vram, log: log, startTime: time.Now()}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))
	r.Use(MetricsMiddleware)
	r.Use(s.requestLogger)

	r.Post("/generate", s.handleGenerate)
	r.Get("/requests", s.handleListRequests)
	r.Get("/requests/{id}", s.handleGetRequest)
	r.Post("/requests/{id}/cancel", s.handleCancelRequest)
	r.Post("/load", s.handleLoad)
	r.Post("/unload", s.handleUnload)
	r.Get("/status", s.handleStatus)
	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, status: 200}
		next.ServeHTTP(sr, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sr.status).
			Dur("dur", time.Since(start)).
			Msg("http request")
	})
}

// handleGenerate accepts a generation request and returns 202 with the
// pending snapshot; the worker picks it up asynchronously.
func (s *server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var params types.GenerationParams
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req, err := s.gen.Submit(params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, req.Snapshot())
}

func (s *server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	reqs := s.gen.List()
	if reqs == nil {
		reqs = []types.RequestSnapshot{}
	}
	writeJSON(w, http.StatusOK, types.RequestsResponse{Requests: reqs})
}

func (s *server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	snap, err := s.gen.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleCancelRequest cancels logically: an in-flight generation is not
// interrupted. Cancelling an already-terminal request returns 409.
func (s *server) handleCancelRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cancelled, err := s.gen.Cancel(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !cancelled {
		writeJSONError(w, http.StatusConflict, "request already terminal")
		return
	}
	snap, err := s.gen.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if err := s.gen.LoadModel(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.gen.Status())
}

func (s *server) handleUnload(w http.ResponseWriter, r *http.Request) {
	if err := s.gen.UnloadModel(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.gen.Status())
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	writeJSON(w, http.StatusOK, types.StatusResponse{
		VRAM:           s.vram.Status(),
		Service:        s.gen.Status(),
		UptimeSeconds:  int64(now.Sub(s.startTime) / time.Second),
		ServerTimeUnix: now.Unix(),
	})
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"ok":true}`))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
