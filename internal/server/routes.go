package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mirror/internal/handlers"
	"mirror/internal/middlewares"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	r.Use(middlewares.PrometheusMiddleware)
	r.Use(middlewares.CorsMiddleware(s.allowedOrigins))

	ch := handlers.NewCommonHandler(s.db)
	r.HandleFunc("/health", ch.HealthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	s.registerAccountRoutes(r)
	s.registerOAuthRoutes(r)
	s.registerSocialRoutes(r)
	s.registerPostRoutes(r)
	s.registerFeedRoutes(r)

	return r
}

// public rate-limits by client IP.
func (s *Server) public(h http.HandlerFunc) http.Handler {
	return s.limiter.RateLimit(h)
}

// protected requires a bearer token and rate-limits by session user.
func (s *Server) protected(h http.HandlerFunc) http.Handler {
	return middlewares.AuthMiddleware(s.limiter.RateLimit(h))
}

func (s *Server) registerAccountRoutes(r *mux.Router) {
	uh := handlers.NewUserHandler(s.userService, s.otpService)

	r.Handle("/login", s.public(uh.Login)).Methods("POST", "OPTIONS")
	r.Handle("/signup", s.public(uh.Signup)).Methods("POST", "OPTIONS")
	r.Handle("/check-username", s.public(uh.CheckUsername)).Methods("POST", "OPTIONS")
	r.Handle("/check-email", s.public(uh.CheckEmail)).Methods("POST", "OPTIONS")
	r.Handle("/send-reset-code", s.public(uh.SendResetCode)).Methods("POST", "OPTIONS")
	r.Handle("/reset-password", s.public(uh.ResetPassword)).Methods("POST", "OPTIONS")
}

func (s *Server) registerOAuthRoutes(r *mux.Router) {
	ah := handlers.NewAuthHandler(s.authService, s.oauthProviders)

	r.Handle("/auth/{provider}", s.public(ah.ProviderAuth)).Methods("GET", "OPTIONS")
	r.Handle("/auth/{provider}/callback", s.public(ah.ProviderCallback)).Methods("GET", "OPTIONS")
}

func (s *Server) registerSocialRoutes(r *mux.Router) {
	sh := handlers.NewSocialHandler(s.socialService)

	r.Handle("/follow", s.protected(sh.Follow)).Methods("POST", "OPTIONS")
	r.Handle("/profile/{username}", s.public(sh.GetProfile)).Methods("GET", "OPTIONS")
}

func (s *Server) registerPostRoutes(r *mux.Router) {
	ph := handlers.NewPostHandler(s.postService)

	r.Handle("/share", s.protected(ph.Share)).Methods("POST", "OPTIONS")
	r.Handle("/like", s.protected(ph.Like)).Methods("POST", "OPTIONS")
	r.Handle("/add-comment", s.protected(ph.AddComment)).Methods("POST", "OPTIONS")
	r.Handle("/file/{path}", s.public(ph.ServeFile)).Methods("GET", "OPTIONS")
}

func (s *Server) registerFeedRoutes(r *mux.Router) {
	fh := handlers.NewFeedHandler(s.feedService)

	r.Handle("/explore/videos", s.public(fh.ExploreVideos)).Methods("GET", "OPTIONS")
	r.Handle("/feed/images/{startFrom}", s.public(fh.FeedImages)).Methods("GET", "OPTIONS")
}
