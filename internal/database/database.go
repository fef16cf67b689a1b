package database

import (
	"context"
	"errors"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mirror/internal/utils"
)

const (
	DefaultDatabaseName = "mirror"
	UsersCollection     = "users"
)

type Service interface {
	Health() map[string]string
	Client() *mongo.Client
	Database() *mongo.Database
	EnsureIndexes(ctx context.Context) error
	Close() error
}

type service struct {
	db     *mongo.Client
	dbName string
}

// New connects using MONGO_URI and MONGO_DB and exits the process if the URI is missing.
func New() Service {
	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		log.Fatal().Msg("MONGO_URI environment variable not set")
	}
	dbName := os.Getenv("MONGO_DB")
	if dbName == "" {
		dbName = DefaultDatabaseName
	}

	s, err := Connect(context.Background(), mongoURI, dbName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	return s
}

// Connect opens a client against uri and pings it.
func Connect(ctx context.Context, uri, dbName string) (Service, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is empty")
	}
	opts := options.Client().
		ApplyURI(uri).
		SetPoolMonitor(poolMonitor())

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	log.Info().Str("database", dbName).Msg("Connected to MongoDB")
	return &service{db: client, dbName: dbName}, nil
}

func poolMonitor() *event.PoolMonitor {
	return &event.PoolMonitor{
		Event: func(e *event.PoolEvent) {
			switch e.Type {
			case event.ConnectionCreated:
				utils.DBConnectionsOpen.Inc()
			case event.ConnectionClosed:
				utils.DBConnectionsOpen.Dec()
			case event.GetSucceeded:
				utils.DBConnectionsInUse.Inc()
			case event.ConnectionReturned:
				utils.DBConnectionsInUse.Dec()
			}
		},
	}
}

func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	err := s.db.Ping(ctx, nil)
	if err != nil {
		log.Error().Err(err).Msg("Database health check failed")
		return map[string]string{
			"message": "db down",
			"error":   err.Error(),
		}
	}

	return map[string]string{
		"message": "It's healthy",
	}
}

func (s *service) Client() *mongo.Client {
	return s.db
}

func (s *service) Database() *mongo.Database {
	return s.db.Database(s.dbName)
}

// EnsureIndexes creates the unique indexes backing username, email and mediaPath uniqueness.
func (s *service) EnsureIndexes(ctx context.Context) error {
	users := s.Database().Collection(UsersCollection)
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_username")},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_email")},
		{
			Keys: bson.D{{Key: "posts.mediaPath", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("uniq_posts_media_path").
				SetPartialFilterExpression(bson.M{"posts.mediaPath": bson.M{"$exists": true}}),
		},
	}

	names, err := users.Indexes().CreateMany(ctx, models)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create users indexes")
		return err
	}
	log.Debug().Strs("indexes", names).Msg("Users indexes ensured")
	return nil
}

func (s *service) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.db.Disconnect(ctx)
}
