package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/foodgram/apiserver/config"
	"github.com/foodgram/apiserver/internal/auth"
	"github.com/foodgram/apiserver/internal/db"
	"github.com/foodgram/apiserver/internal/handlers"
	"github.com/foodgram/apiserver/internal/logger"
	"github.com/foodgram/apiserver/internal/metrics"
	"github.com/foodgram/apiserver/internal/mq"
	"github.com/foodgram/apiserver/internal/services"
	"github.com/foodgram/apiserver/internal/storage"
	"github.com/foodgram/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const requestTimeout = 60 * time.Second

// Server wraps the HTTP server, router and the connections it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	logger     *zap.Logger
	db         *sql.DB
	redis      *redis.Client
	queue      *mq.MQ
}

// Dependencies are the services and ambient components the router serves.
type Dependencies struct {
	Logger    *zap.Logger
	Metrics   *metrics.Collector
	Gatherer  prometheus.Gatherer
	DB        handlers.Pinger
	Users     *services.UserService
	Catalog   *services.CatalogService
	Recipes   *services.RecipeService
	Relations *services.RelationService

	// MediaRoot, when set, is served as static files under MediaURL.
	MediaRoot string
	MediaURL  string
}

// New connects to every configured backend and builds the server.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*Server, error) {
	s := &Server{logger: log}
	ok := false
	defer func() {
		if !ok {
			s.closeResources()
		}
	}()

	issuer, err := auth.NewIssuer(cfg.Auth.SecretKey, cfg.Auth.Algorithm, cfg.Auth.AccessTTL())
	if err != nil {
		return nil, err
	}

	s.db, err = db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	var denylist services.Denylist
	if cfg.Auth.DenylistEnabled {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := s.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		denylist = auth.NewRedisDenylist(s.redis)
	}

	images, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	s.queue, err = mq.Open(ctx, cfg.MQ)
	if err != nil {
		return nil, fmt.Errorf("open mq: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	opts := []services.Option{services.WithLogger(log), services.WithRecorder(collector)}
	if s.queue != nil {
		opts = append(opts, services.WithPublisher(s.queue))
	}

	userRepo := store.NewUserRepository(s.db)
	catalogRepo := store.NewCatalogRepository(s.db)
	recipeRepo := store.NewRecipeRepository(s.db)
	relationRepo := store.NewRelationRepository(s.db)

	catalogService := services.NewCatalogService(catalogRepo, opts...)
	deps := Dependencies{
		Logger:    log,
		Metrics:   collector,
		Gatherer:  registry,
		DB:        s.db,
		Users:     services.NewUserService(userRepo, issuer, denylist, opts...),
		Catalog:   catalogService,
		Recipes:   services.NewRecipeService(recipeRepo, catalogService, userRepo, relationRepo, images, opts...),
		Relations: services.NewRelationService(relationRepo, userRepo, recipeRepo, opts...),
	}
	if cfg.Storage.Backend == config.StorageLocal {
		deps.MediaRoot = cfg.Storage.MediaRoot
		deps.MediaURL = cfg.Storage.MediaURL
	}

	s.router = NewRouter(deps)
	s.httpServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ok = true
	return s, nil
}

// NewRouter builds the HTTP routing tree.
func NewRouter(d Dependencies) *chi.Mux {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logger.Middleware(log),
		middleware.Recoverer,
	)
	if d.Metrics != nil {
		router.Use(d.Metrics.Middleware)
	}
	router.Use(
		middleware.StripSlashes,
		middleware.Timeout(requestTimeout),
	)

	router.Get("/healthz", handlers.Healthz(d.DB))
	if d.Gatherer != nil {
		router.Handle("/metrics", metrics.Handler(d.Gatherer))
	}
	if d.MediaRoot != "" {
		prefix := strings.TrimRight(d.MediaURL, "/")
		if prefix == "" {
			prefix = "/media"
		}
		router.Handle(prefix+"/*", http.StripPrefix(prefix+"/", http.FileServer(http.Dir(d.MediaRoot))))
	}

	authHandler := handlers.NewAuthHandler(d.Users)
	userHandler := handlers.NewUserHandler(d.Users, d.Relations)
	catalogHandler := handlers.NewCatalogHandler(d.Catalog)
	recipeHandler := handlers.NewRecipeHandler(d.Recipes, d.Relations)

	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, authHandler)
		})
		r.Route("/users", func(r chi.Router) {
			handlers.UserRouter(r, userHandler, authHandler)
		})
		r.Route("/tags", func(r chi.Router) {
			handlers.TagRouter(r, catalogHandler)
		})
		r.Route("/ingredients", func(r chi.Router) {
			handlers.IngredientRouter(r, catalogHandler)
		})
		r.Route("/recipes", func(r chi.Router) {
			handlers.RecipeRouter(r, recipeHandler, authHandler)
		})
	})

	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the backend connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.closeResources()
	return err
}

func (s *Server) closeResources() {
	if s.queue != nil {
		if err := s.queue.Close(); err != nil {
			s.logger.Warn("close mq", zap.Error(err))
		}
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
