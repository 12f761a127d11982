// Package server implements the signing server the upload client talks to.
//
// Routes, relative to the configured base path:
//
//	POST {base}/:profile/request   authorize a file, answer {key, url}
//	GET  {base}/:profile/*key      302 to a signed download URL, or 404
//
// With the local storage driver the server also stores the bytes itself:
//
//	PUT  /_blob/*key               signed upload target
//	GET  /_blob/*key               signed download target
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/five82/slingshot/internal/config"
	"github.com/five82/slingshot/internal/slingshot"
	"github.com/five82/slingshot/internal/storage"
)

const shutdownTimeout = 5 * time.Second

// AuthorizeFunc runs before any policy check. A non-nil error rejects the
// file with the error's message.
type AuthorizeFunc func(ctx context.Context, profile config.Profile, file slingshot.FileDescriptor, meta slingshot.Meta) error

// Options configure a Server.
type Options struct {
	Config    config.Config
	Adapter   storage.Adapter
	Authorize AuthorizeFunc
	Logger    *slog.Logger
}

// Server is the gin-backed signing server.
type Server struct {
	cfg       config.Server
	profiles  map[string]config.Profile
	adapter   storage.Adapter
	local     *storage.Local
	authorize AuthorizeFunc
	log       *slog.Logger
	engine    *gin.Engine
}

// New validates opts and registers routes.
func New(opts Options) (*Server, error) {
	if opts.Adapter == nil {
		return nil, errors.New("server: storage adapter is required")
	}
	if err := opts.Config.ValidateServer(); err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		cfg:       opts.Config.Server,
		profiles:  make(map[string]config.Profile, len(opts.Config.Profiles)),
		adapter:   opts.Adapter,
		authorize: opts.Authorize,
		log:       logger,
	}
	for _, p := range opts.Config.Profiles {
		s.profiles[p.Name] = p
	}
	if local, ok := opts.Adapter.(*storage.Local); ok {
		s.local = local
	}
	s.engine = s.routes()
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on the configured listen address until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("signing server listening",
			"addr", s.cfg.Listen,
			"base_path", s.cfg.BasePath,
			"public_url", s.cfg.PublicURL,
			"profiles", len(s.profiles),
			"local_blobs", s.local != nil,
		)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info("signing server stopped")
	return nil
}

func (s *Server) routes() *gin.Engine {
	engine := gin.New()
	engine.Use(requestID(), requestLogger(s.log), recovery(s.log))

	api := engine.Group(s.cfg.BasePath)
	api.POST("/:profile/request", s.handleRequest)
	api.GET("/:profile/*key", s.handleResolve)

	if s.local != nil {
		engine.PUT(storage.BlobPrefix+"/*key", s.handleBlobPut)
		engine.GET(storage.BlobPrefix+"/*key", s.handleBlobGet)
		engine.HEAD(storage.BlobPrefix+"/*key", s.handleBlobGet)
	}

	engine.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "Not found")
	})
	return engine
}

func respondError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, slingshot.ErrorResponse{Error: msg})
}
