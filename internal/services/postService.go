package services

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"

	"mirror/internal/cache"
	"mirror/internal/events"
	"mirror/internal/metrics"
	"mirror/internal/models"
	"mirror/internal/repositories"
	"mirror/internal/storage"
)

const maxLikeAttempts = 3

// PostService handles media posts: sharing, likes, comments and blob retrieval.
type PostService interface {
	SharePost(ctx context.Context, post models.NewPost, media io.Reader) (string, error)
	LikePost(ctx context.Context, username, mediaPath string) (*models.LikeResult, error)
	AddComment(ctx context.Context, mediaPath string, comment models.Comment) error
	OpenFile(name string) (*os.File, error)
}

type postServiceImpl struct {
	userRepo  repositories.UserRepository
	store     storage.MediaStore
	feedCache cache.FeedCache
	publisher events.Publisher
}

func NewPostService(userRepo repositories.UserRepository, store storage.MediaStore, feedCache cache.FeedCache, publisher events.Publisher) PostService {
	return &postServiceImpl{
		userRepo:  userRepo,
		store:     store,
		feedCache: feedCache,
		publisher: publisher,
	}
}

func validMediaType(t string) bool {
	return t == models.MediaTypeImage || t == models.MediaTypeVideo
}

// SharePost stores the blob under a fresh name and appends the post to its owner.
// The blob is removed again when the post cannot be recorded.
func (s *postServiceImpl) SharePost(ctx context.Context, post models.NewPost, media io.Reader) (string, error) {
	log.Debug().Str("username", post.Username).Str("type", post.Type).Str("filename", post.Filename).Msg("Attempting to share post")

	exists, err := s.userRepo.ExistsByUsername(ctx, post.Username)
	if err != nil {
		return "", err
	}
	if !exists {
		log.Warn().Str("username", post.Username).Msg("Share by unknown user")
		return "", newError(ErrNotFound, "user not found")
	}

	if media == nil {
		return "", newError(ErrBadRequest, "media file is required")
	}
	if !validMediaType(post.Type) {
		log.Warn().Str("type", post.Type).Msg("Unsupported post type")
		return "", newError(ErrBadRequest, "type must be %q or %q", models.MediaTypeImage, models.MediaTypeVideo)
	}

	stored, err := s.store.Save(ctx, post.Filename, media)
	if err != nil {
		log.Error().Err(err).Str("username", post.Username).Msg("Failed to store media")
		return "", err
	}

	if !strings.HasPrefix(stored.MIMEType, post.Type+"/") {
		log.Warn().Str("type", post.Type).Str("mime", stored.MIMEType).Msg("Media content does not match declared type")
		s.discard(stored.Name)
		return "", newError(ErrBadRequest, "media content is %s, not %s", stored.MIMEType, post.Type)
	}

	result, err := s.userRepo.PushPost(ctx, post.Username, models.Post{
		Text:      post.Text,
		MediaPath: stored.Name,
		Type:      post.Type,
		Likes:     []string{},
		Comments:  []models.Comment{},
		CreatedAt: time.Now(),
	})
	if err != nil {
		s.discard(stored.Name)
		return "", err
	}
	if result.MatchedCount == 0 {
		s.discard(stored.Name)
		return "", newError(ErrNotFound, "user not found")
	}

	s.feedCache.Invalidate(ctx, post.Type)
	metrics.PostsSharedTotal.WithLabelValues(post.Type).Inc()
	s.publisher.Publish(ctx, events.Event{
		Type:       events.TypePostShared,
		Actor:      post.Username,
		Target:     stored.Name,
		Attributes: map[string]string{"type": post.Type, "mime": stored.MIMEType},
		OccurredAt: time.Now(),
	})
	log.Info().Str("username", post.Username).Str("media_path", stored.Name).Int64("size", stored.Size).Msg("Post shared")
	return stored.Name, nil
}

func (s *postServiceImpl) discard(name string) {
	if err := s.store.Delete(name); err != nil {
		log.Error().Err(err).Str("media_path", name).Msg("Failed to remove orphaned media")
	}
}

func (s *postServiceImpl) findPost(ctx context.Context, mediaPath string) (*models.FeedPost, error) {
	post, err := s.userRepo.FindPost(ctx, mediaPath)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			log.Warn().Str("media_path", mediaPath).Msg("Post not found")
			return nil, newError(ErrNotFound, "post not found")
		}
		return nil, err
	}
	return post, nil
}

// LikePost toggles username's like on the post. Each step is a conditional update, so a
// concurrent toggle by the same user makes the next step match instead of double-applying.
func (s *postServiceImpl) LikePost(ctx context.Context, username, mediaPath string) (*models.LikeResult, error) {
	log.Debug().Str("username", username).Str("media_path", mediaPath).Msg("Toggling like")

	post, err := s.findPost(ctx, mediaPath)
	if err != nil {
		return nil, err
	}

	liked, toggled := false, false
	for attempt := 0; attempt < maxLikeAttempts && !toggled; attempt++ {
		removed, err := s.userRepo.RemoveLike(ctx, mediaPath, username)
		if err != nil {
			return nil, err
		}
		if removed.MatchedCount > 0 {
			liked, toggled = false, true
			break
		}

		added, err := s.userRepo.AddLike(ctx, mediaPath, username)
		if err != nil {
			return nil, err
		}
		if added.MatchedCount > 0 {
			liked, toggled = true, true
		}
	}
	if !toggled {
		log.Error().Str("username", username).Str("media_path", mediaPath).Msg("Like toggle did not converge")
		return nil, newError(ErrInternal, "could not update like")
	}

	if refreshed, err := s.findPost(ctx, mediaPath); err == nil {
		post = refreshed
	} else {
		log.Warn().Err(err).Str("media_path", mediaPath).Msg("Could not reload post after like")
	}

	action, eventType := "unlike", events.TypePostUnliked
	if liked {
		action, eventType = "like", events.TypePostLiked
	}
	s.feedCache.Invalidate(ctx, post.Type)
	metrics.LikesToggledTotal.WithLabelValues(action).Inc()
	s.publisher.Publish(ctx, events.Event{
		Type:       eventType,
		Actor:      username,
		Target:     mediaPath,
		OccurredAt: time.Now(),
	})

	return &models.LikeResult{
		MediaPath: mediaPath,
		Liked:     liked,
		LikeCount: post.LikeCount(),
	}, nil
}

func (s *postServiceImpl) AddComment(ctx context.Context, mediaPath string, comment models.Comment) error {
	if len(comment) == 0 {
		return newError(ErrBadRequest, "comment is required")
	}

	post, err := s.findPost(ctx, mediaPath)
	if err != nil {
		return err
	}

	result, err := s.userRepo.PushComment(ctx, mediaPath, comment)
	if err != nil {
		return err
	}
	if result.ModifiedCount != 1 {
		log.Error().Str("media_path", mediaPath).Int64("modified", result.ModifiedCount).Msg("Comment update modified nothing")
		return newError(ErrInternal, "failed to add comment")
	}

	s.feedCache.Invalidate(ctx, post.Type)
	metrics.CommentsAddedTotal.Inc()
	s.publisher.Publish(ctx, events.Event{
		Type:       events.TypeCommentAdded,
		Actor:      comment[0],
		Target:     mediaPath,
		OccurredAt: time.Now(),
	})
	log.Info().Str("media_path", mediaPath).Msg("Comment added")
	return nil
}

func (s *postServiceImpl) OpenFile(name string) (*os.File, error) {
	f, err := s.store.Open(name)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			return nil, newError(ErrNotFound, "file not found")
		}
		return nil, err
	}
	return f, nil
}
