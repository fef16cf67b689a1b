package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"mirror/internal/events"
	"mirror/internal/metrics"
	"mirror/internal/models"
	"mirror/internal/repositories"
	"mirror/internal/utils"
)

const passwordHashCost = 8

// UserService covers account creation, credential checks and availability queries.
type UserService interface {
	Signup(ctx context.Context, req *models.Signup) (*models.Session, error)
	Login(ctx context.Context, creds *models.Login) (*models.Session, error)
	CheckUsername(ctx context.Context, username string) (bool, error)
	CheckEmail(ctx context.Context, email string) (bool, error)
	RefreshUserGauge(ctx context.Context, every time.Duration)
}

type userService struct {
	userRepo  repositories.UserRepository
	publisher events.Publisher
	now       func() time.Time
}

func NewUserService(userRepo repositories.UserRepository, publisher events.Publisher) UserService {
	return &userService{
		userRepo:  userRepo,
		publisher: publisher,
		now:       time.Now,
	}
}

// RefreshUserGauge keeps app_total_users current until ctx ends.
func (s *userService) RefreshUserGauge(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		s.updateUserGauge(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *userService) updateUserGauge(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	count, err := s.userRepo.CountAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Error updating total users gauge")
		return
	}
	metrics.TotalUsers.Set(float64(count))
}

func (s *userService) Signup(ctx context.Context, req *models.Signup) (*models.Session, error) {
	log.Debug().Str("username", req.Username).Str("email", req.Email).Msg("Attempting to register user")

	taken, err := s.userRepo.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		log.Warn().Str("email", req.Email).Msg("Email already registered")
		return nil, newError(ErrConflict, "email already registered")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), passwordHashCost)
	if err != nil {
		log.Error().Err(err).Msg("Failed to hash password during registration")
		return nil, newError(ErrInternal, "failed to hash password")
	}

	now := s.now()
	user := &models.User{
		ID:           primitive.NewObjectID(),
		Username:     req.Username,
		Email:        req.Email,
		Password:     string(hashedPassword),
		ProfilePhoto: models.DefaultProfilePhoto,
		Followers:    []string{},
		Following:    []string{},
		Posts:        []models.Post{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	token, err := utils.GenerateJWT(user.ID, user.Username)
	if err != nil {
		log.Error().Err(err).Str("username", req.Username).Msg("Could not generate token for new user")
		return nil, newError(ErrInternal, "could not generate token")
	}

	created, err := s.userRepo.Create(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			log.Warn().Str("username", req.Username).Str("email", req.Email).Msg("Username or email already exists during user insertion")
			return nil, newError(ErrConflict, "username or email already registered")
		}
		return nil, err
	}

	metrics.NewUsersTotal.WithLabelValues("password").Inc()
	metrics.TotalUsers.Inc()
	s.publisher.Publish(ctx, events.Event{Type: events.TypeUserSignedUp, Actor: created.Username, OccurredAt: now})
	log.Info().Str("user_id", created.ID.Hex()).Str("username", created.Username).Msg("User registered successfully")

	session := &models.Session{
		Message:  "Signup successful",
		UserID:   created.ID.Hex(),
		Username: created.Username,
		Token:    token,
	}
	return session, nil
}

func (s *userService) Login(ctx context.Context, creds *models.Login) (*models.Session, error) {
	log.Debug().Str("username", creds.Username).Msg("Attempting user login")

	user, err := s.userRepo.FindByUsername(ctx, creds.Username)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			metrics.LoginAttemptsTotal.WithLabelValues("unknown_user").Inc()
			log.Warn().Str("username", creds.Username).Msg("Login for unknown user")
			return nil, newError(ErrNotFound, "user not found")
		}
		log.Error().Err(err).Str("username", creds.Username).Msg("Error finding user for login")
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(creds.Password)); err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("bad_password").Inc()
		log.Warn().Str("username", creds.Username).Msg("Invalid credentials (password mismatch) during login attempt")
		return nil, newError(ErrUnauthorized, "incorrect password")
	}

	token, err := utils.GenerateJWT(user.ID, user.Username)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID.Hex()).Msg("Could not generate token for user")
		return nil, newError(ErrInternal, "could not generate token")
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	log.Info().Str("user_id", user.ID.Hex()).Msg("User logged in successfully")
	return &models.Session{
		Message:  "Login successful",
		UserID:   user.ID.Hex(),
		Username: user.Username,
		Token:    token,
	}, nil
}

func (s *userService) CheckUsername(ctx context.Context, username string) (bool, error) {
	taken, err := s.userRepo.ExistsByUsername(ctx, username)
	if err != nil {
		return false, err
	}
	return !taken, nil
}

func (s *userService) CheckEmail(ctx context.Context, email string) (bool, error) {
	taken, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	return !taken, nil
}
