// Package web implements the application host for the random-list front-end. It serves the bundle
// with the mount node, hands startup flags to the page and turns state-save requests into
// the stream of snapshots consumed by the persistence bridge.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/didip/tollbooth/v8"
	"github.com/didip/tollbooth/v8/limiter"
	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/umputun/randlist/app/bridge"
)

//go:embed static/*
var staticFS embed.FS

var (
	errNotReady = errors.New("application not initialized")
	errShutdown = errors.New("server is shutting down")
)

// Versioner reports the current front-end assets version
type Versioner interface {
	Version() string
}

// Config holds server configuration
type Config struct {
	Version   string    // application version
	StaticDir string    // front-end bundle location, embedded placeholder if empty
	AuthHash  string    // bcrypt hash for basic auth on api (empty to disable)
	SaveRate  float64   // max state saves per second per client, 0 for default
	Assets    Versioner // optional, assets version provider
	QueueSize int       // buffered state snapshots, 0 for default
}

// Server is a http host of the front-end, implements bridge.Program
type Server struct {
	version   string
	staticDir string
	authHash  string
	assets    Versioner
	limiter   *limiter.Limiter
	queueSize int

	mu       sync.RWMutex // guards events
	events   chan any
	sendLock chan struct{} // one push at a time, served flags follow the queue order
	done     chan struct{}
	stop     sync.Once

	flagsMu sync.RWMutex
	flags   *bridge.Flags // startup flags, state replaced by every accepted snapshot
}

// New creates a new web server
func New(cfg Config) *Server {
	rate := cfg.SaveRate
	if rate <= 0 {
		rate = 10
	}
	lmt := tollbooth.NewLimiter(rate, nil)
	lmt.SetIPLookup(limiter.IPLookup{Name: "RemoteAddr", IndexFromRight: 0})
	lmt.SetMessage(`{"error":"too many requests"}`)
	lmt.SetMessageContentType("application/json")

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 16
	}

	return &Server{
		version:   cfg.Version,
		staticDir: cfg.StaticDir,
		authHash:  cfg.AuthHash,
		assets:    cfg.Assets,
		limiter:   lmt,
		queueSize: queueSize,
		sendLock:  make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// Init accepts startup flags and returns the channel of state snapshots sent by clients.
// Can be called once.
func (s *Server) Init(flags bridge.Flags) (<-chan any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentFlags() != nil {
		return nil, fmt.Errorf("web application already initialized")
	}
	if flags.Node == "" {
		return nil, fmt.Errorf("mount node is required")
	}
	s.setFlags(flags)
	s.events = make(chan any, s.queueSize)
	log.Printf("[INFO] web application initialized, node %q, saved state %v", flags.Node, flags.State != nil)
	return s.events, nil
}

// Run starts the web server, blocks until ctx canceled. The state channel is closed on exit.
func (s *Server) Run(ctx context.Context, address string) error {
	defer s.shutdown()

	server := &http.Server{
		Addr:              address,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.stop.Do(func() { close(s.done) })
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] failed to shutdown server: %v", err)
		}
	}()

	log.Printf("[INFO] starting web server on %s", address)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server failed: %w", err)
	}
	return nil
}

// shutdown rejects new snapshots and closes the state channel once pending pushes are done
func (s *Server) shutdown() {
	s.stop.Do(func() { close(s.done) })
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.events != nil {
		close(s.events)
		s.events = nil
	}
}

// push sends state snapshot to the bridge, blocks while the queue is full.
// Accepted state replaces the one in served flags, so a reloaded page starts from it.
func (s *Server) push(ctx context.Context, state any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.events == nil {
		select {
		case <-s.done:
			return errShutdown
		default:
			return errNotReady
		}
	}

	select {
	case <-s.done:
		return errShutdown
	default:
	}

	select {
	case s.sendLock <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return errShutdown
	}
	defer func() { <-s.sendLock }()

	select {
	case s.events <- state:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return errShutdown
	}

	flags := s.currentFlags()
	s.setFlags(bridge.Flags{Node: flags.Node, State: state})
	return nil
}

func (s *Server) currentFlags() *bridge.Flags {
	s.flagsMu.RLock()
	defer s.flagsMu.RUnlock()
	return s.flags
}

func (s *Server) setFlags(flags bridge.Flags) {
	s.flagsMu.Lock()
	s.flags = &flags
	s.flagsMu.Unlock()
}

// routes returns the http.Handler with all routes configured
func (s *Server) routes() http.Handler {
	router := routegroup.New(http.NewServeMux())

	// global middleware - applied to all routes
	router.Use(
		rest.RealIP,
		rest.Recoverer(log.Default()),
		rest.Throttle(1000),
		rest.AppInfo("randlist", "umputun", s.version),
		rest.Ping,
		rest.SizeLimit(256*1024), // saved state is small, 256KB max request size
		logger.New(logger.Log(log.Default()), logger.Prefix("[DEBUG]")).Handler,
	)

	router.Mount("/api/v1").Route(func(api *routegroup.Bundle) {
		api.Use(rest.NoCache)
		if s.authHash != "" {
			log.Printf("[INFO] authentication enabled for api")
			api.Use(s.authMiddleware)
		}
		api.HandleFunc("GET /flags", s.handleFlags)
		api.HandleFunc("GET /version", s.handleVersion)
		api.With(tollbooth.HTTPMiddleware(s.limiter)).HandleFunc("PUT /state", s.handleSaveState)
	})

	router.Handle("GET /", http.FileServer(s.bundle()))
	return router
}

// bundle returns file system with front-end assets
func (s *Server) bundle() http.FileSystem {
	if s.staticDir != "" {
		return http.Dir(s.staticDir)
	}
	fsys, err := fs.Sub(staticFS, "static")
	if err != nil {
		log.Printf("[ERROR] failed to create static file system: %v", err)
		return http.FS(staticFS)
	}
	return http.FS(fsys)
}
