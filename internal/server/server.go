// Package server provides the HTTP server setup and routing configuration.
package server

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"sync"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/jaisil18/tv-transmision-sub000/internal/api"
	"github.com/jaisil18/tv-transmision-sub000/internal/config"
	"github.com/jaisil18/tv-transmision-sub000/internal/liveness"
	"github.com/jaisil18/tv-transmision-sub000/internal/logger"
	"github.com/jaisil18/tv-transmision-sub000/internal/media"
	"github.com/jaisil18/tv-transmision-sub000/internal/metrics"
	"github.com/jaisil18/tv-transmision-sub000/internal/middleware"
	"github.com/jaisil18/tv-transmision-sub000/internal/presence"
	"github.com/jaisil18/tv-transmision-sub000/internal/store"
	"github.com/jaisil18/tv-transmision-sub000/internal/streaming"
)

// Server represents the HTTP server
type Server struct {
	config     *config.Config
	screens    *store.ScreenRegistry
	library    *media.Library
	metrics    *metrics.Metrics
	hub        *presence.Hub
	reconciler *liveness.Reconciler
	manager    *streaming.Manager
	prober     *media.FFprobe
	watcher    *media.Watcher
	router     *gin.Engine
	server     *http.Server

	// lifecycle serializes worker start-up against Shutdown
	lifecycle sync.Mutex
	closed    bool
}

// New wires the store, presence bus, reconciler, and pipeline manager
func New(cfg *config.Config) *Server {
	screens := store.NewScreenRegistry(cfg.Storage.ScreensPath())
	playlists := store.NewPlaylistRegistry(cfg.Storage.PlaylistsPath())
	library := media.NewLibrary(cfg.Media.LibraryPath)
	prober := media.NewFFprobe(cfg.Media.FFprobePath)
	m := metrics.New()

	hub := presence.NewHub(cfg.Presence, screens, nil, m)
	reconciler := liveness.New(screens, hub, cfg.Liveness.Timeout, m)
	hub.SetRecorder(reconciler)

	manager := streaming.NewManager(cfg.Streaming, streaming.Deps{
		Screens:   screens,
		Playlists: playlists,
		Library:   library,
		Prober:    prober,
		Metrics:   m,
	})
	hub.Subscribe(manager.HandleEvent)

	s := &Server{
		config:     cfg,
		screens:    screens,
		library:    library,
		metrics:    m,
		hub:        hub,
		reconciler: reconciler,
		manager:    manager,
		prober:     prober,
	}

	if cfg.Media.WatchEnabled {
		s.watcher = media.NewWatcher(library, s.onLibraryChange)
	}

	s.setupRouter()
	s.server = &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        s.router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	return s
}

// onLibraryChange tells admins which files landed in the library
func (s *Server) onLibraryChange(paths []string) {
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		names = append(names, path.Base(p))
	}
	delivered := s.hub.NotifyFilesUploaded(names)
	logger.Log.Info().
		Strs("files", names).
		Int("delivered", delivered).
		Msg("Media library changed")
}

// checkEncoder reports whether both ffmpeg and ffprobe are on the path
func (s *Server) checkEncoder() error {
	if err := streaming.CheckFFmpegInstalled(s.config.Streaming.FFmpegPath); err != nil {
		return err
	}
	return s.prober.CheckInstalled()
}

// setupRouter initializes the Gin router with middleware and routes
func (s *Server) setupRouter() {
	if s.config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()

	s.router.Use(middleware.RequestLogger(s.metrics))
	s.router.Use(gin.Recovery())
	s.router.Use(cors.Default())

	apiGroup := s.router.Group("/api")
	hlsGroup := s.router.Group("/hls")

	api.SetupHealthRoutes(apiGroup, api.NewHealthHandler(s.screens, s.checkEncoder, s.manager.SessionCount))
	api.SetupStreamRoutes(apiGroup, hlsGroup, api.NewStreamHandler(s.manager))
	api.SetupPresenceRoutes(s.router, apiGroup, api.NewPresenceHandler(s.hub))
	api.SetupLivenessRoutes(apiGroup, api.NewLivenessHandler(s.reconciler))

	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler(s.manager.UpdateMetrics)))
}

// Start runs an initial liveness sweep, starts the background workers, and
// serves HTTP until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	if err := s.startWorkers(ctx); err != nil {
		return err
	}

	logger.Log.Info().
		Str("host", s.config.Server.Host).
		Int("port", s.config.Server.Port).
		Msg("Starting HTTP server")

	return s.server.ListenAndServe()
}

func (s *Server) startWorkers(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.closed {
		return http.ErrServerClosed
	}

	if result, err := s.reconciler.ForceCheck(ctx); err != nil {
		logger.Log.Warn().Err(err).Msg("Initial liveness sweep failed")
	} else {
		logger.Log.Info().
			Int("checked", result.Checked).
			Int("demoted", len(result.Demoted)).
			Msg("Initial liveness sweep complete")
	}

	if err := s.reconciler.Start(s.config.Liveness.SweepInterval); err != nil {
		return fmt.Errorf("failed to start liveness reconciler: %w", err)
	}

	if err := s.manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start pipeline manager: %w", err)
	}

	if s.watcher != nil {
		if err := s.watcher.Start(); err != nil {
			// uploads still work, admins just miss the notification
			logger.Log.Warn().Err(err).Str("root", s.library.Root()).Msg("Media watcher disabled")
		}
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Log.Info().Msg("Shutting down server gracefully")

	s.lifecycle.Lock()
	s.closed = true
	if s.watcher != nil {
		s.watcher.Stop()
	}
	s.reconciler.Stop()
	s.manager.Stop()
	s.hub.Close()
	s.lifecycle.Unlock()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Log.Info().Msg("Server stopped")
	return nil
}
