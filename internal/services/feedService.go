package services

import (
	"context"
	"sort"

	"github.com/rs/zerolog/log"

	"mirror/internal/cache"
	"mirror/internal/metrics"
	"mirror/internal/models"
	"mirror/internal/repositories"
)

// FeedPageSize is the number of posts in one image feed window.
const FeedPageSize = 5

type FeedService interface {
	ExploreVideos(ctx context.Context) ([]models.FeedPost, error)
	FeedImages(ctx context.Context, startFrom int) ([]models.FeedPost, error)
}

type feedServiceImpl struct {
	userRepo  repositories.UserRepository
	feedCache cache.FeedCache
}

func NewFeedService(userRepo repositories.UserRepository, feedCache cache.FeedCache) FeedService {
	return &feedServiceImpl{userRepo: userRepo, feedCache: feedCache}
}

func (s *feedServiceImpl) ExploreVideos(ctx context.Context) ([]models.FeedPost, error) {
	return s.ranked(ctx, models.MediaTypeVideo)
}

// FeedImages returns at most FeedPageSize ranked images starting at startFrom.
func (s *feedServiceImpl) FeedImages(ctx context.Context, startFrom int) ([]models.FeedPost, error) {
	if startFrom < 0 {
		return nil, newError(ErrBadRequest, "startFrom must not be negative")
	}

	posts, err := s.ranked(ctx, models.MediaTypeImage)
	if err != nil {
		return nil, err
	}
	if startFrom >= len(posts) {
		return []models.FeedPost{}, nil
	}
	end := min(startFrom+FeedPageSize, len(posts))
	return posts[startFrom:end], nil
}

// ranked lists every post of mediaType ordered by like count, most liked first. Posts with
// equal counts keep the order in which they were scanned.
func (s *feedServiceImpl) ranked(ctx context.Context, mediaType string) ([]models.FeedPost, error) {
	gen, cacheable := s.feedCache.Generation(ctx, mediaType)
	if cacheable {
		if posts, ok := s.feedCache.GetFeed(ctx, mediaType, gen); ok {
			metrics.FeedRequestsTotal.WithLabelValues(mediaType, "hit").Inc()
			return posts, nil
		}
	}
	metrics.FeedRequestsTotal.WithLabelValues(mediaType, "miss").Inc()

	posts, err := s.userRepo.FindPostsByType(ctx, mediaType)
	if err != nil {
		log.Error().Err(err).Str("type", mediaType).Msg("Failed to load posts for feed")
		return nil, err
	}

	for i := range posts {
		posts[i].Normalize()
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].LikeCount() > posts[j].LikeCount()
	})

	if cacheable {
		s.feedCache.SetFeed(ctx, mediaType, gen, posts)
	}
	log.Debug().Str("type", mediaType).Int("count", len(posts)).Msg("Ranked feed computed")
	return posts, nil
}
