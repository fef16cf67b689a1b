package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	_ "github.com/joho/godotenv/autoload"

	"mirror/internal/cache"
	"mirror/internal/database"
	"mirror/internal/events"
	"mirror/internal/middlewares"
	"mirror/internal/repositories"
	"mirror/internal/services"
	"mirror/internal/storage"
)

const (
	defaultPort         = 8080
	userGaugeInterval   = 30 * time.Second
	indexSetupTimeout   = 30 * time.Second
	shutdownGracePeriod = 5 * time.Second
)

type Server struct {
	port       int
	httpServer *http.Server

	db        database.Service
	feedCache cache.FeedCache
	publisher events.Publisher
	limiter   *middlewares.RateLimiter

	userService   services.UserService
	otpService    services.OTPService
	authService   services.AuthService
	socialService services.SocialService
	postService   services.PostService
	feedService   services.FeedService

	oauthProviders []string
	allowedOrigins []string

	stopBackground context.CancelFunc
}

func NewServer() *Server {
	port := defaultPort
	if portStr := os.Getenv("PORT"); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			log.Warn().Err(err).Str("port", portStr).Msg("Invalid PORT environment variable. Using default 8080.")
		} else {
			port = p
		}
	}

	db := database.New()

	ctx, cancel := context.WithTimeout(context.Background(), indexSetupTimeout)
	defer cancel()
	if err := db.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to create database indexes")
	}

	store, err := storage.NewFileStore(os.Getenv("UPLOAD_DIR"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare upload directory")
	}

	feedCache := cache.NewFromEnv()
	publisher := events.NewFromEnv()
	userRepo := repositories.NewUserRepository(db)

	s := &Server{
		port:           port,
		db:             db,
		feedCache:      feedCache,
		publisher:      publisher,
		limiter:        middlewares.NewRateLimiterFromEnv(),
		userService:    services.NewUserService(userRepo, publisher),
		otpService:     services.NewOTPService(userRepo, services.NewEmailService(), publisher),
		authService:    services.NewAuthService(userRepo, publisher),
		socialService:  services.NewSocialService(userRepo, publisher),
		postService:    services.NewPostService(userRepo, store, feedCache, publisher),
		feedService:    services.NewFeedService(userRepo, feedCache),
		oauthProviders: services.InitializeGoth(),
		allowedOrigins: middlewares.AllowedOriginsFromEnv(),
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  time.Minute,
		WriteTimeout: 2 * time.Minute,
	}

	return s
}

// Start runs the background workers and blocks serving HTTP.
func (s *Server) Start() error {
	bg, cancel := context.WithCancel(context.Background())
	s.stopBackground = cancel
	go s.limiter.CleanupVisitors(bg)
	go s.userService.RefreshUserGauge(bg, userGaugeInterval)

	log.Info().Int("port", s.port).Msg("Starting server")
	return s.httpServer.ListenAndServe()
}

func (s *Server) GracefulShutdown(done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Info().Msg("Shutting down gracefully, press Ctrl+C again to force")
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown with error")
	}

	if s.stopBackground != nil {
		s.stopBackground()
	}
	if err := s.publisher.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close event publisher")
	}
	if err := s.feedCache.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close feed cache")
	}
	if err := s.db.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to disconnect from MongoDB")
	}

	log.Info().Msg("Server exiting")
	done <- true
}
