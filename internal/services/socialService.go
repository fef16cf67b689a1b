package services

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"

	"mirror/internal/events"
	"mirror/internal/metrics"
	"mirror/internal/models"
	"mirror/internal/repositories"
)

// SocialService maintains the follow graph and serves profiles.
type SocialService interface {
	Follow(ctx context.Context, currentUser, targetUser string) (int, error)
	GetProfile(ctx context.Context, username string) (*models.Profile, error)
}

type socialServiceImpl struct {
	userRepo  repositories.UserRepository
	publisher events.Publisher
}

func NewSocialService(userRepo repositories.UserRepository, publisher events.Publisher) SocialService {
	return &socialServiceImpl{userRepo: userRepo, publisher: publisher}
}

func (s *socialServiceImpl) findUser(ctx context.Context, username string) (*models.User, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			log.Warn().Str("username", username).Msg("User not found")
			return nil, newError(ErrNotFound, "user not found")
		}
		return nil, err
	}
	return user, nil
}

// Follow records that currentUser follows targetUser and returns currentUser's following count.
// Repeating a follow changes nothing.
func (s *socialServiceImpl) Follow(ctx context.Context, currentUser, targetUser string) (int, error) {
	log.Debug().Str("current_user", currentUser).Str("target_user", targetUser).Msg("Attempting follow")

	current, err := s.findUser(ctx, currentUser)
	if err != nil {
		return 0, err
	}
	if _, err := s.findUser(ctx, targetUser); err != nil {
		return 0, err
	}

	if currentUser == targetUser {
		log.Warn().Str("username", currentUser).Msg("User attempted to follow themselves")
		return 0, newError(ErrBadRequest, "cannot follow yourself")
	}

	if slices.Contains(current.Following, targetUser) {
		return len(current.Following), nil
	}

	updated, err := s.userRepo.AddFollowing(ctx, currentUser, targetUser)
	if err != nil {
		return 0, err
	}
	if _, err := s.userRepo.AddFollower(ctx, targetUser, currentUser); err != nil {
		return 0, err
	}

	metrics.FollowsTotal.Inc()
	s.publisher.Publish(ctx, events.Event{
		Type:       events.TypeUserFollowed,
		Actor:      currentUser,
		Target:     targetUser,
		OccurredAt: time.Now(),
	})
	log.Info().Str("current_user", currentUser).Str("target_user", targetUser).Msg("Follow recorded")
	return len(updated.Following), nil
}

func (s *socialServiceImpl) GetProfile(ctx context.Context, username string) (*models.Profile, error) {
	user, err := s.findUser(ctx, username)
	if err != nil {
		return nil, err
	}
	return user.Profile(), nil
}
