// Package server exposes the scanning pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/dataguardian/dataguardian/internal/alert"
	"github.com/dataguardian/dataguardian/internal/breach"
	"github.com/dataguardian/dataguardian/internal/config"
	"github.com/dataguardian/dataguardian/internal/detect"
	"github.com/dataguardian/dataguardian/internal/events"
	"github.com/dataguardian/dataguardian/internal/logger"
	"github.com/dataguardian/dataguardian/internal/patterns"
	"github.com/dataguardian/dataguardian/internal/scan"
	"github.com/dataguardian/dataguardian/internal/store"
	"github.com/dataguardian/dataguardian/internal/web"
)

// Server is the main scanning API server.
type Server struct {
	mu        sync.RWMutex
	config    *config.Config
	limits    scan.Limits
	detectors []detect.Detector

	logger   *logger.Logger
	router   *mux.Router
	server   *http.Server
	store    store.Store
	hub      *events.Hub
	notifier *alert.Notifier
	breaches *breach.Client
	limiter  *clientLimiter
	version  string
}

// New wires the detector pipeline, report store and event hub into an HTTP
// server.
func New(cfg *config.Config, log *logger.Logger, version string) (*Server, error) {
	pats := patterns.Resolve(context.Background(), cfg.Patterns, log.WithComponent("patterns").Logger)
	detectors := []detect.Detector{
		detect.NewRegexDetector(pats, log.WithComponent("detect").Logger),
	}
	if cfg.NER.Enabled {
		ner := detect.NewEntityDetector(detect.NERModelConfig{
			ModelPath:  cfg.NER.ModelPath,
			VocabPath:  cfg.NER.VocabPath,
			LabelsPath: cfg.NER.LabelsPath,
			MaxLength:  cfg.NER.MaxLength,
		}, cfg.NER.Labels, log.WithComponent("ner").Logger)
		if ner.Available() {
			detectors = append(detectors, ner)
		} else {
			log.Warn("NER detector enabled but backend unavailable, continuing without it")
		}
	}

	reportStore, err := newStore(cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create report store: %w", err)
	}

	hub := events.NewHub(cfg.Events.AllowedOrigins, log.WithComponent("events").Logger)

	var breaches *breach.Client
	var checker alert.AccountChecker
	if cfg.Breach.Enabled {
		breaches = breach.NewClient(cfg.Breach, log.WithComponent("breach").Logger)
		checker = breaches
	}
	notifier := alert.NewNotifier(cfg.Alerts, checker, log.WithComponent("alerts").Logger)

	s := &Server{
		config:    cfg,
		limits:    limitsFromConfig(cfg.Scan),
		detectors: detectors,
		logger:    log.WithComponent("server"),
		router:    mux.NewRouter(),
		store:     reportStore,
		hub:       hub,
		notifier:  notifier,
		breaches:  breaches,
		limiter:   newClientLimiter(cfg.Server.RateLimit.RequestsPerSecond, cfg.Server.RateLimit.Burst),
		version:   version,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s, nil
}

// newStore picks PostgreSQL when a database URL is configured, otherwise an
// in-memory store.
func newStore(cfg store.Config, log *logger.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Info("No database configured, using in-memory report store")
		return store.NewMemoryStore(), nil
	}
	return store.NewPostgresStore(cfg, log.WithComponent("store").Logger)
}

func limitsFromConfig(cfg config.ScanConfig) scan.Limits {
	return scan.Limits{
		MaxRows:            cfg.MaxRows,
		MaxUniquePerColumn: cfg.MaxUniquePerColumn,
		MaxCharsPerCell:    cfg.MaxCharsPerCell,
		MaskKeepLast:       cfg.MaskKeepLast,
	}
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	s.router.HandleFunc("/", web.ServeDashboard).Methods("GET")
	s.router.HandleFunc("/dashboard", web.ServeDashboard).Methods("GET")

	if s.config.Events.Enabled {
		path := s.config.Events.Path
		if path == "" {
			path = "/ws"
		}
		s.router.HandleFunc(path, s.hub.ServeWS).Methods("GET")
	}

	api := s.router.PathPrefix("/").Subrouter()
	api.Use(s.loggingMiddleware)
	if s.config.Server.RateLimit.Enabled {
		api.Use(s.rateLimitMiddleware)
	}
	api.HandleFunc("/scan/text", s.handleScanText).Methods("POST")
	api.HandleFunc("/scan/upload", s.handleScanUpload).Methods("POST")
	api.HandleFunc("/scan/path", s.handleScanPath).Methods("POST")
	api.HandleFunc("/reports", s.handleListReports).Methods("GET")
	api.HandleFunc("/reports/{id}", s.handleGetReport).Methods("GET")
	if s.breaches != nil {
		api.HandleFunc("/breach/check", s.handleBreachCheck).Methods("POST")
	}
}

// newScanner snapshots the current limits so in-flight scans are unaffected
// by a concurrent config reload.
func (s *Server) newScanner() *scan.Scanner {
	s.mu.RLock()
	limits := s.limits
	s.mu.RUnlock()
	return scan.New(s.detectors, limits, s.logger.Logger)
}

// Reload applies a changed configuration to the running server. Only scan
// limits take effect live, everything else needs a restart.
func (s *Server) Reload(cfg *config.Config) {
	s.mu.Lock()
	s.limits = limitsFromConfig(cfg.Scan)
	s.config.Scan = cfg.Scan
	s.mu.Unlock()

	s.logger.Info("Applied configuration reload",
		zap.Int("max_rows", cfg.Scan.MaxRows),
		zap.Int("max_unique_per_column", cfg.Scan.MaxUniquePerColumn),
	)
}

// Start runs the event hub and serves HTTP until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("Starting DataGuardian server",
		zap.Int("port", s.config.Server.Port),
		zap.String("version", s.version),
		zap.Bool("events_enabled", s.config.Events.Enabled),
	)

	go s.hub.Run()

	return s.server.ListenAndServe()
}

// Stop gracefully shuts the server down and closes the report store.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping DataGuardian server")
	err := s.server.Shutdown(ctx)
	if closeErr := s.store.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	for _, d := range s.detectors {
		if closer, ok := d.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().UTC().Format(time.RFC3339))
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	scanner := s.newScanner()
	writeJSON(w, http.StatusOK, map[string]any{
		"name":      "dataguardian",
		"version":   s.version,
		"detectors": scanner.DetectorNames(),
		"limits":    s.currentLimits(),
	})
}

func (s *Server) currentLimits() scan.Limits {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.limits
}
