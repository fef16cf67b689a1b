package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/facebook"
	"github.com/markbates/goth/providers/google"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"mirror/internal/events"
	"mirror/internal/metrics"
	"mirror/internal/models"
	"mirror/internal/repositories"
	"mirror/internal/utils"
)

const (
	MaxAge                   = 86400 * 30
	defaultOAuthCallbackBase = "http://localhost:8080"
	maxUsernameAttempts      = 5
)

type AuthService interface {
	HandleLogin(ctx context.Context, u goth.User) (*models.Session, error)
}

type authService struct {
	userRepo  repositories.UserRepository
	publisher events.Publisher
}

func NewAuthService(userRepo repositories.UserRepository, publisher events.Publisher) AuthService {
	return &authService{userRepo: userRepo, publisher: publisher}
}

// InitializeGoth registers the providers whose credentials are configured and returns
// their names. It must run once before the OAuth routes serve traffic.
func InitializeGoth() []string {
	sessionKey := os.Getenv("SESSION_KEY")
	if sessionKey == "" {
		log.Warn().Msg("SESSION_KEY not set, using a random per-process key for OAuth sessions")
		sessionKey = primitive.NewObjectID().Hex() + primitive.NewObjectID().Hex()
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	store.MaxAge(MaxAge)
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = strings.HasPrefix(callbackBase(), "https://")
	store.Options.SameSite = http.SameSiteLaxMode
	gothic.Store = store

	var providers []goth.Provider
	var names []string
	if id := os.Getenv("GOOGLE_CLIENT_ID"); id != "" {
		providers = append(providers, google.New(id, os.Getenv("GOOGLE_CLIENT_SECRET"), callbackURL("google"), "email", "profile"))
		names = append(names, "google")
	}
	if id := os.Getenv("FACEBOOK_CLIENT_ID"); id != "" {
		providers = append(providers, facebook.New(id, os.Getenv("FACEBOOK_CLIENT_SECRET"), callbackURL("facebook"), "email"))
		names = append(names, "facebook")
	}
	goth.UseProviders(providers...)

	log.Info().Strs("providers", names).Msg("Goth providers initialized")
	return names
}

func callbackBase() string {
	base := os.Getenv("OAUTH_CALLBACK_BASE")
	if base == "" {
		base = defaultOAuthCallbackBase
	}
	return strings.TrimRight(base, "/")
}

func callbackURL(provider string) string {
	return fmt.Sprintf("%s/auth/%s/callback", callbackBase(), provider)
}

// HandleLogin finds the account registered under the provider's email, creating one on
// first sign-in, and issues a session for it.
func (a *authService) HandleLogin(ctx context.Context, u goth.User) (*models.Session, error) {
	log.Info().Str("email", u.Email).Str("provider", u.Provider).Msg("Attempting to handle login for user")
	if u.Email == "" {
		log.Warn().Str("provider", u.Provider).Msg("Missing email in Goth user data")
		return nil, newError(ErrBadRequest, "provider did not return an email address")
	}

	user, err := a.userRepo.FindByEmail(ctx, u.Email)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		user, err = a.createOAuthUser(ctx, u)
		if err != nil {
			return nil, err
		}
	case err != nil:
		log.Error().Err(err).Str("email", u.Email).Msg("Error finding user by email")
		return nil, err
	default:
		log.Info().Str("email", u.Email).Str("user_id", user.ID.Hex()).Msg("User found in database")
	}

	token, err := utils.GenerateJWT(user.ID, user.Username)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID.Hex()).Msg("Error generating JWT for user")
		return nil, newError(ErrInternal, "could not generate token")
	}

	metrics.LoginAttemptsTotal.WithLabelValues("oauth").Inc()
	return &models.Session{
		Message:  "Login successful",
		UserID:   user.ID.Hex(),
		Username: user.Username,
		Token:    token,
	}, nil
}

func (a *authService) createOAuthUser(ctx context.Context, u goth.User) (*models.User, error) {
	base := oauthUsername(u)
	now := time.Now()

	for attempt := 0; attempt < maxUsernameAttempts; attempt++ {
		username := base
		if attempt > 0 {
			username = fmt.Sprintf("%s%d", base, attempt+1)
		}

		taken, err := a.userRepo.ExistsByUsername(ctx, username)
		if err != nil {
			return nil, err
		}
		if taken {
			continue
		}

		user := &models.User{
			ID:           primitive.NewObjectID(),
			Username:     username,
			Email:        u.Email,
			ProfilePhoto: models.DefaultProfilePhoto,
			Followers:    []string{},
			Following:    []string{},
			Posts:        []models.Post{},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if u.AvatarURL != "" {
			user.ProfilePhoto = u.AvatarURL
		}

		created, err := a.userRepo.Create(ctx, user)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			log.Error().Err(err).Str("email", u.Email).Msg("Error creating new user")
			return nil, err
		}

		metrics.NewUsersTotal.WithLabelValues(u.Provider).Inc()
		metrics.TotalUsers.Inc()
		a.publisher.Publish(ctx, events.Event{
			Type:       events.TypeUserSignedUp,
			Actor:      created.Username,
			Attributes: map[string]string{"provider": u.Provider},
			OccurredAt: now,
		})
		log.Info().Str("email", u.Email).Str("user_id", created.ID.Hex()).Msg("New user created successfully")
		return created, nil
	}

	log.Warn().Str("email", u.Email).Str("base", base).Msg("Could not find a free username for OAuth user")
	return nil, newError(ErrConflict, "could not allocate a username")
}

func oauthUsername(u goth.User) string {
	if u.NickName != "" {
		return u.NickName
	}
	if at := strings.IndexByte(u.Email, '@'); at > 0 {
		return u.Email[:at]
	}
	return u.Email
}
