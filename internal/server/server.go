package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fastcrud/apiserver/config"
	"github.com/fastcrud/apiserver/internal/db"
	"github.com/fastcrud/apiserver/internal/handlers"
	"github.com/fastcrud/apiserver/internal/logging"
	"github.com/fastcrud/apiserver/internal/mq"
	"github.com/fastcrud/apiserver/internal/security"
	"github.com/fastcrud/apiserver/internal/services"
	"github.com/fastcrud/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server wraps the HTTP server, router and the connections it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	broker     *mq.MQ
	logger     *slog.Logger
}

// New wires the user directory, security primitives and services from cfg
// and mounts the routes under cfg.APIPrefix.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{logger: logger}

	repo, err := s.openUserRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}

	hasher := security.NewBcryptHasher(cfg.Auth.BcryptCost)
	codec, err := security.NewJWTCodec(cfg.Auth)
	if err != nil {
		s.closeResources()
		return nil, fmt.Errorf("token codec: %w", err)
	}

	s.broker, err = mq.Open(ctx, cfg.MQ)
	if err != nil {
		s.closeResources()
		return nil, fmt.Errorf("open mq: %w", err)
	}
	var events services.EventPublisher
	if s.broker != nil {
		events = s.broker
		logger.Info("publishing identity events", "backend", s.broker.Backend())
	}

	userService := services.NewUserService(repo, hasher, events, logger)
	authService, err := services.NewAuthService(repo, hasher, codec, logger)
	if err != nil {
		s.closeResources()
		return nil, err
	}

	authHandler := handlers.NewAuthHandler(authService, logger)
	userHandler := handlers.NewUserHandler(userService, logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	if s.db != nil {
		router.Get("/readyz", handlers.Readyz(s.db))
	} else {
		router.Get("/readyz", handlers.Readyz(nil))
	}
	router.Route(cfg.APIPrefix, func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			handlers.UserRouter(r, userHandler, authHandler.RequireAuth)
		})
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, authHandler)
		})
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.router = router
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *Server) openUserRepository(ctx context.Context, cfg config.Config) (services.UserRepository, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		s.logger.Warn("using in-memory user directory; data is lost on restart")
		return store.NewMemoryUserRepository(), nil
	default:
		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		s.db = conn
		return store.NewUserRepository(conn), nil
	}
}

// Router exposes the chi router for route registration and tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then closes the broker and database.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.closeResources()
	return err
}

func (s *Server) closeResources() {
	if s.broker != nil {
		if err := s.broker.Close(); err != nil {
			s.logger.Error("close mq", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("close database", "error", err)
		}
	}
}
