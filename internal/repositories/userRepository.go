package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mirror/internal/database"
	"mirror/internal/models"
	"mirror/internal/utils"
)

const userRepositoryName = "user"

type UserRepository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	SetVerificationCode(ctx context.Context, email, code string, expiresAt time.Time) (*mongo.UpdateResult, error)
	ResetPassword(ctx context.Context, email, code, hashedPassword string, now time.Time) (*mongo.UpdateResult, error)
	AddFollowing(ctx context.Context, username, target string) (*models.User, error)
	AddFollower(ctx context.Context, username, follower string) (*mongo.UpdateResult, error)
	PushPost(ctx context.Context, username string, post models.Post) (*mongo.UpdateResult, error)
	FindPost(ctx context.Context, mediaPath string) (*models.FeedPost, error)
	RemoveLike(ctx context.Context, mediaPath, username string) (*mongo.UpdateResult, error)
	AddLike(ctx context.Context, mediaPath, username string) (*mongo.UpdateResult, error)
	PushComment(ctx context.Context, mediaPath string, comment models.Comment) (*mongo.UpdateResult, error)
	FindPostsByType(ctx context.Context, mediaType string) ([]models.FeedPost, error)
	CountAll(ctx context.Context) (int64, error)
}

type userRepository struct {
	db database.Service
}

func NewUserRepository(db database.Service) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) users() *mongo.Collection {
	return r.db.Database().Collection(database.UsersCollection)
}

// trackQuery times a query and counts its failure; a missing document is not a failure.
func trackQuery(queryType string) func(*error) {
	status := "success"
	timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
		utils.DBQueryDurationSeconds.WithLabelValues(queryType, userRepositoryName, status).Observe(v)
	}))
	return func(errp *error) {
		if err := *errp; err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
			status = "error"
			utils.DBQueryErrorsTotal.WithLabelValues(queryType, userRepositoryName).Inc()
		}
		timer.ObserveDuration()
	}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) (_ *models.User, err error) {
	defer trackQuery("create")(&err)

	_, err = r.users().InsertOne(ctx, user)
	if err != nil {
		log.Error().Err(err).Str("username", user.Username).Msg("Failed to insert user into database")
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (_ *models.User, err error) {
	defer trackQuery("findByUsername")(&err)

	var user models.User
	err = r.users().FindOne(ctx, bson.M{"username": username}).Decode(&user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (_ *models.User, err error) {
	defer trackQuery("findByEmail")(&err)

	var user models.User
	err = r.users().FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) exists(ctx context.Context, filter bson.M) (bool, error) {
	count, err := r.users().CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *userRepository) ExistsByUsername(ctx context.Context, username string) (_ bool, err error) {
	defer trackQuery("existsByUsername")(&err)

	found, err := r.exists(ctx, bson.M{"username": username})
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return found, nil
}

func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (_ bool, err error) {
	defer trackQuery("existsByEmail")(&err)

	found, err := r.exists(ctx, bson.M{"email": email})
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return found, nil
}

func (r *userRepository) SetVerificationCode(ctx context.Context, email, code string, expiresAt time.Time) (_ *mongo.UpdateResult, err error) {
	defer trackQuery("setVerificationCode")(&err)

	update := bson.M{"$set": bson.M{
		"latest_verification_code":     code,
		"verification_code_expires_at": expiresAt,
		"updated_at":                   time.Now(),
	}}
	result, err := r.users().UpdateOne(ctx, bson.M{"email": email}, update)
	if err != nil {
		log.Error().Err(err).Str("email", email).Msg("Error storing verification code")
		return nil, fmt.Errorf("failed to store verification code: %w", err)
	}
	return result, nil
}

// ResetPassword swaps the password only while the given code is still current and unexpired,
// clearing the code in the same update.
func (r *userRepository) ResetPassword(ctx context.Context, email, code, hashedPassword string, now time.Time) (_ *mongo.UpdateResult, err error) {
	defer trackQuery("resetPassword")(&err)

	filter := bson.M{
		"email":                        email,
		"latest_verification_code":     code,
		"verification_code_expires_at": bson.M{"$gt": now},
	}
	update := bson.M{
		"$set": bson.M{
			"password":                 hashedPassword,
			"latest_verification_code": nil,
			"updated_at":               now,
		},
		"$unset": bson.M{"verification_code_expires_at": ""},
	}
	result, err := r.users().UpdateOne(ctx, filter, update)
	if err != nil {
		log.Error().Err(err).Str("email", email).Msg("Error resetting password")
		return nil, fmt.Errorf("failed to reset password: %w", err)
	}
	return result, nil
}

func (r *userRepository) AddFollowing(ctx context.Context, username, target string) (_ *models.User, err error) {
	defer trackQuery("addFollowing")(&err)

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$addToSet": bson.M{"following": target}}

	var user models.User
	err = r.users().FindOneAndUpdate(ctx, bson.M{"username": username}, update, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
		log.Error().Err(err).Str("username", username).Str("target", target).Msg("Error adding following")
		return nil, fmt.Errorf("failed to add following: %w", err)
	}
	return &user, nil
}

func (r *userRepository) AddFollower(ctx context.Context, username, follower string) (_ *mongo.UpdateResult, err error) {
	defer trackQuery("addFollower")(&err)

	update := bson.M{"$addToSet": bson.M{"followers": follower}}
	result, err := r.users().UpdateOne(ctx, bson.M{"username": username}, update)
	if err != nil {
		log.Error().Err(err).Str("username", username).Str("follower", follower).Msg("Error adding follower")
		return nil, fmt.Errorf("failed to add follower: %w", err)
	}
	return result, nil
}

func (r *userRepository) PushPost(ctx context.Context, username string, post models.Post) (_ *mongo.UpdateResult, err error) {
	defer trackQuery("pushPost")(&err)

	update := bson.M{
		"$push": bson.M{"posts": post},
		"$set":  bson.M{"updated_at": time.Now()},
	}
	result, err := r.users().UpdateOne(ctx, bson.M{"username": username}, update)
	if err != nil {
		log.Error().Err(err).Str("username", username).Str("media_path", post.MediaPath).Msg("Error appending post")
		return nil, fmt.Errorf("failed to append post: %w", err)
	}
	return result, nil
}

// FindPost returns the post with mediaPath together with its owner's username.
func (r *userRepository) FindPost(ctx context.Context, mediaPath string) (_ *models.FeedPost, err error) {
	defer trackQuery("findPost")(&err)

	var owner models.User
	opts := options.FindOne().SetProjection(bson.M{"username": 1, "posts.$": 1})
	err = r.users().FindOne(ctx, bson.M{"posts.mediaPath": mediaPath}, opts).Decode(&owner)
	if err != nil {
		return nil, err
	}
	if len(owner.Posts) == 0 {
		return nil, mongo.ErrNoDocuments
	}
	post := &models.FeedPost{Post: owner.Posts[0], Username: owner.Username}
	post.Normalize()
	return post, nil
}

func (r *userRepository) RemoveLike(ctx context.Context, mediaPath, username string) (_ *mongo.UpdateResult, err error) {
	defer trackQuery("removeLike")(&err)

	filter := bson.M{"posts": bson.M{"$elemMatch": bson.M{"mediaPath": mediaPath, "likes": username}}}
	update := bson.M{"$pull": bson.M{"posts.$.likes": username}}
	result, err := r.users().UpdateOne(ctx, filter, update)
	if err != nil {
		log.Error().Err(err).Str("media_path", mediaPath).Str("username", username).Msg("Error removing like")
		return nil, fmt.Errorf("failed to remove like: %w", err)
	}
	return result, nil
}

func (r *userRepository) AddLike(ctx context.Context, mediaPath, username string) (_ *mongo.UpdateResult, err error) {
	defer trackQuery("addLike")(&err)

	filter := bson.M{"posts": bson.M{"$elemMatch": bson.M{"mediaPath": mediaPath, "likes": bson.M{"$ne": username}}}}
	update := bson.M{"$addToSet": bson.M{"posts.$.likes": username}}
	result, err := r.users().UpdateOne(ctx, filter, update)
	if err != nil {
		log.Error().Err(err).Str("media_path", mediaPath).Str("username", username).Msg("Error adding like")
		return nil, fmt.Errorf("failed to add like: %w", err)
	}
	return result, nil
}

func (r *userRepository) PushComment(ctx context.Context, mediaPath string, comment models.Comment) (_ *mongo.UpdateResult, err error) {
	defer trackQuery("pushComment")(&err)

	update := bson.M{"$push": bson.M{"posts.$.comments": comment}}
	result, err := r.users().UpdateOne(ctx, bson.M{"posts.mediaPath": mediaPath}, update)
	if err != nil {
		log.Error().Err(err).Str("media_path", mediaPath).Msg("Error appending comment")
		return nil, fmt.Errorf("failed to append comment: %w", err)
	}
	return result, nil
}

// FindPostsByType flattens every user's posts of one media type, tagged with the owner,
// in user insertion order and then post order.
func (r *userRepository) FindPostsByType(ctx context.Context, mediaType string) (_ []models.FeedPost, err error) {
	defer trackQuery("findPostsByType")(&err)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"posts.type": mediaType}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
		{{Key: "$unwind", Value: "$posts"}},
		{{Key: "$match", Value: bson.M{"posts.type": mediaType}}},
		{{Key: "$replaceRoot", Value: bson.M{
			"newRoot": bson.M{"$mergeObjects": bson.A{"$posts", bson.M{"username": "$username"}}},
		}}},
	}

	cursor, err := r.users().Aggregate(ctx, pipeline)
	if err != nil {
		log.Error().Err(err).Str("type", mediaType).Msg("Failed to aggregate posts")
		return nil, fmt.Errorf("failed to aggregate posts: %w", err)
	}
	defer cursor.Close(ctx)

	posts := []models.FeedPost{}
	if err = cursor.All(ctx, &posts); err != nil {
		log.Error().Err(err).Str("type", mediaType).Msg("Failed to decode posts")
		return nil, fmt.Errorf("failed to decode posts: %w", err)
	}
	for i := range posts {
		posts[i].Normalize()
	}
	return posts, nil
}

func (r *userRepository) CountAll(ctx context.Context) (_ int64, err error) {
	defer trackQuery("countAll")(&err)

	count, err := r.users().CountDocuments(ctx, bson.M{})
	if err != nil {
		log.Error().Err(err).Msg("Failed to count total users")
		return 0, fmt.Errorf("failed to count total users: %w", err)
	}
	return count, nil
}
