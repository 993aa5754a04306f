// Package server wires the application form into an HTTP service.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gabrielmiguelok/applyform/client"
	"github.com/gabrielmiguelok/applyform/internal/application"
	"github.com/gabrielmiguelok/applyform/internal/config"
	"github.com/gabrielmiguelok/applyform/internal/lookup"
	"github.com/gabrielmiguelok/applyform/internal/submit"
	"github.com/gabrielmiguelok/applyform/pkg/health"
	"github.com/gabrielmiguelok/applyform/pkg/logging"
	"github.com/gabrielmiguelok/applyform/pkg/protocol"
	"github.com/gabrielmiguelok/applyform/pkg/router"
	"github.com/gabrielmiguelok/applyform/pkg/shutdown"
	"github.com/gabrielmiguelok/applyform/pkg/transport"
	"github.com/gabrielmiguelok/applyform/pkg/uploads"
	"github.com/gabrielmiguelok/applyform/pkg/wizard"
)

// URL layout.
const (
	FormPath   = "/"
	UploadPath = "/uploads/"
	AssetsPath = "/_live/"
)

// memoryLimit marks the service unhealthy when the Go heap grows past it.
const memoryLimit = 1 << 30

// Options configures New.
type Options struct {
	Config  config.Config
	Logger  logging.Logger
	Version string

	// Submitter replaces the sinks derived from Config.
	Submitter wizard.Submitter
	// Lookups replaces the lookup client derived from Config.
	Lookups application.Lookups
}

// Server is the HTTP service.
type Server struct {
	cfg    config.Config
	logger logging.Logger
	router *router.Router
	health *health.Checker
}

// New builds the router, the live form route, the upload endpoint, the
// health probes and the client asset route.
func New(opts Options) (*Server, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger{}
	}

	schema := application.NewSchema(application.SchemaOptions{PhoneRegion: cfg.PhoneRegion})
	steps := application.Steps()
	if err := steps.Validate(schema); err != nil {
		return nil, fmt.Errorf("step layout: %w", err)
	}

	codecs := protocol.NewCodecRegistry()
	if err := codecs.SetDefault(cfg.Codec); err != nil {
		return nil, err
	}
	tc := transport.DefaultConfig()
	tc.AllowedOrigins = cfg.AllowedOrigins
	tc.Codecs = codecs

	s := &Server{cfg: cfg, logger: logger}
	s.router = router.New(
		router.WithLogger(logger.With(logging.Component("router"))),
		router.WithTransport(tc),
		router.WithTimeouts(cfg.Timeouts()),
		router.WithMaxSessions(cfg.MaxSessions),
		router.WithConnLimit(cfg.MaxConnsPerClient),
		router.WithErrorHandler(s.renderError),
	)
	s.router.Use(logging.RequestLogger(logger))
	s.router.Use(router.Recovery(logger))
	s.router.Use(router.SecureHeaders())

	uploadCfg := uploads.Config{
		Extensions:      application.ValidResumeExtensions,
		MaxFileSize:     application.MaxResumeSizeInBytes,
		MaxEntries:      application.MaxFiles,
		MaxRequestBytes: cfg.MaxUploadBytes,
	}

	s.router.Live("GET "+FormPath+"{$}", application.Factory(application.Config{
		Schema:     schema,
		Steps:      steps,
		Defaults:   application.Defaults{TimeZone: cfg.Zone(), MaxResumes: application.MaxFiles},
		Submitter:  s.submitter(opts.Submitter),
		Lookups:    s.lookups(opts.Lookups),
		Uploads:    uploadCfg,
		UploadPath: UploadPath,
		Logger:     logger.With(logging.Component("application")),
	}), router.WithLayout(application.Document(application.DocumentOptions{
		Title:     "Job application",
		ScriptURL: AssetsPath + client.Script,
	})))

	s.router.Handle("POST "+UploadPath+"{session}",
		router.RateLimit(cfg.UploadRate)(uploads.NewHandler(uploadCfg, s.deliverUploads, logger.With(logging.Component("uploads")))))
	s.router.Handle("GET "+AssetsPath, http.StripPrefix(AssetsPath, client.Handler()))

	s.health = health.NewChecker(opts.Version)
	s.health.AddCritical("sessions", health.CapacityCheck("sessions", s.router.Sessions().Count, cfg.MaxSessions), time.Second)
	s.health.Add("memory", health.MemoryCheck(memoryLimit), time.Second)
	s.router.Handle("GET /healthz", s.health.LivenessHandler())
	s.router.Handle("GET /readyz", s.health.ReadinessHandler())

	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Sessions returns the live session manager.
func (s *Server) Sessions() *router.SessionManager {
	return s.router.Sessions()
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done or the listener fails, then shuts
// down gracefully: the HTTP server first, then the live sessions.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	timeouts := s.cfg.Timeouts()
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return logging.ContextWithLogger(context.Background(), s.logger)
		},
	}

	stopCleanup := make(chan struct{})
	s.router.Sessions().StartCleanupRoutine(timeouts.SessionCleanup, timeouts.SessionIdle, stopCleanup)

	hooks := shutdown.NewHandler(timeouts.GracefulShutdown, s.logger)
	hooks.Register("http", shutdown.PriorityHTTP, srv.Shutdown)
	hooks.Register("sessions", shutdown.PrioritySessions, s.router.Shutdown)
	hooks.Register("session-cleanup", shutdown.PriorityLast, func(context.Context) error {
		close(stopCleanup)
		return nil
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		serveErr <- err
		cancel()
	}()
	s.logger.Info("listening", logging.String("address", ln.Addr().String()))

	err := hooks.Wait(ctx)
	return errors.Join(<-serveErr, err)
}

// deliverUploads hands uploaded file metadata to the session that owns the
// form.
func (s *Server) deliverUploads(ctx context.Context, target string, entries []uploads.Entry) error {
	sess, ok := s.router.Sessions().Get(target)
	if !ok {
		return uploads.ErrUnknownTarget
	}
	err := sess.Send(application.ResumeUploaded{Entries: entries})
	if errors.Is(err, router.ErrSessionClosed) {
		return fmt.Errorf("%w: %w", uploads.ErrUnknownTarget, err)
	}
	return err
}

func (s *Server) submitter(override wizard.Submitter) wizard.Submitter {
	if override != nil {
		return override
	}
	sinks := submit.Multi{submit.LogSink{Logger: s.logger}}
	if s.cfg.WebhookURL != "" {
		sinks = append(sinks, submit.NewWebhook(s.cfg.WebhookURL, submit.WithLogger(s.logger)))
	}
	return sinks
}

func (s *Server) lookups(override application.Lookups) application.Lookups {
	if override != nil {
		return override
	}
	if !s.cfg.LookupsEnabled {
		return nil
	}
	return lookup.NewClient(
		lookup.WithTimeout(s.cfg.LookupTimeout),
		lookup.WithLogger(s.logger.With(logging.Component("lookup"))),
	)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	logging.L(r.Context()).Error("render failed", logging.String("path", r.URL.Path), logging.Err(err))
	http.Error(w, "The application form is unavailable. Please try again shortly.", http.StatusInternalServerError)
}
