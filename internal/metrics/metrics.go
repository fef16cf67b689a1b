package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// User Activity Metrics
	NewUsersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_new_users_total",
		Help: "Total number of new user registrations.",
	}, []string{"method"}) // method: "password" or an OAuth provider name
	LoginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_login_attempts_total",
		Help: "Total number of login attempts (successful and failed).",
	}, []string{"status"}) // status: "success", "unknown_user" or "bad_password"
	TotalUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "app_total_users",
		Help: "Total number of registered users in the application.",
	})
	ResetCodesIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_reset_codes_issued_total",
		Help: "Total number of password reset codes issued.",
	})
	PasswordResetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_password_resets_total",
		Help: "Total number of password reset attempts.",
	}, []string{"status"})

	// Social Graph Metrics
	FollowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_follows_total",
		Help: "Total number of follow requests applied.",
	})

	// Content Metrics
	PostsSharedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_posts_shared_total",
		Help: "Total number of posts shared.",
	}, []string{"type"})
	LikesToggledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_likes_toggled_total",
		Help: "Total number of like toggles.",
	}, []string{"action"}) // action: "like" or "unlike"
	CommentsAddedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_comments_added_total",
		Help: "Total number of comments added.",
	})

	// Feed Metrics
	FeedRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_feed_requests_total",
		Help: "Total number of ranked feed builds by media type and cache outcome.",
	}, []string{"type", "cache"})
)
