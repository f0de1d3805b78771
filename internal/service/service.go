// Package service implements the HTTP facade (C7): argument parsing,
// the profile/context registry, and dispatch into C2-C6. See spec.md
// section 4.7.
package service

import (
	"log"
	"net/http"
	"os"
	"sync"

	"github.com/gorilla/mux"

	"github.com/sdss-spectro/spectro-service/internal/config"
	"github.com/sdss-spectro/spectro-service/internal/dataset"
	"github.com/sdss-spectro/spectro-service/internal/metrics"
)

// Version is the service's reported version string, used by the "/"
// liveness endpoint.
const Version = "1.0.0"

// Service holds everything a request handler needs: the immutable
// configuration snapshot, the metrics registry, a process-wide logger,
// and the process-wide debug flag. spec.md section 5 calls the debug
// flag deliberately unsynchronized; we still guard it here to keep
// `go test -race` quiet without changing its observable single-process
// semantics.
type Service struct {
	Config   *config.Config
	Registry *dataset.Registry
	Metrics  *metrics.Registry
	Logger   *log.Logger // defaults to a stderr logger if nil
	Pool     *WorkerPool // non-nil only in --sync mode

	debugMu sync.Mutex
	debug   bool
}

// New builds a Service from a loaded, validated configuration and the
// catalog client every dataset context is served by.
func New(cfg *config.Config, catalog dataset.CatalogClient, reg *metrics.Registry) *Service {
	return &Service{
		Config:   cfg,
		Registry: cfg.Registry(catalog),
		Metrics:  reg,
		Logger:   log.New(os.Stderr, "", log.LstdFlags),
	}
}

func (s *Service) logger() *log.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return log.Default()
}

func (s *Service) toggleDebug() bool {
	s.debugMu.Lock()
	defer s.debugMu.Unlock()
	s.debug = !s.debug
	return s.debug
}

func (s *Service) debugEnabled() bool {
	s.debugMu.Lock()
	defer s.debugMu.Unlock()
	return s.debug
}

// Router builds the complete gorilla/mux route table under /spec,
// wrapped in gzip (and, in --sync mode, worker-pool) middleware.
func (s *Service) Router() http.Handler {
	root := mux.NewRouter()
	r := root.PathPrefix("/spec").Subrouter()

	r.HandleFunc("/", s.timed("/", s.handleRoot)).Methods("GET")
	r.HandleFunc("/ping", s.timed("/ping", s.handlePing)).Methods("GET")
	r.HandleFunc("/available", s.timed("/available", s.handleAvailable)).Methods("GET")
	r.HandleFunc("/shutdown", s.timed("/shutdown", s.handleShutdown)).Methods("GET")
	r.HandleFunc("/debug", s.timed("/debug", s.handleDebug)).Methods("GET")
	r.HandleFunc("/profiles", s.timed("/profiles", s.handleProfiles)).Methods("GET")
	r.HandleFunc("/contexts", s.timed("/contexts", s.handleContexts)).Methods("GET")
	r.HandleFunc("/catalogs", s.timed("/catalogs", s.handleCatalogs)).Methods("GET")
	r.HandleFunc("/validate", s.timed("/validate", s.handleValidate)).Methods("GET")
	r.HandleFunc("/query", s.timed("/query", s.handleQuery)).Methods("GET")
	r.HandleFunc("/getSpec", s.timed("/getSpec", s.handleGetSpec)).Methods("POST")
	r.HandleFunc("/preview", s.timed("/preview", s.handlePreview)).Methods("GET")
	r.HandleFunc("/plotGrid", s.timed("/plotGrid", s.handlePlotGrid)).Methods("POST")
	r.HandleFunc("/listSpan", s.timed("/listSpan", s.handleListSpan)).Methods("POST")
	r.HandleFunc("/stackedImage", s.timed("/stackedImage", s.handleStackedImage)).Methods("POST")

	var handler http.Handler = root
	if s.Pool != nil {
		handler = s.Pool.Middleware(handler)
	}
	return gzipMiddleware(handler)
}
