package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"mirror/internal/events"
	"mirror/internal/models"
	"mirror/internal/storage"
)

// fakeUserRepo keeps users in insertion order, mirroring the _id scan order of the real collection.
type fakeUserRepo struct {
	mu    sync.Mutex
	users []*models.User

	// commentModified, when set, overrides ModifiedCount reported by PushComment.
	commentModified *int64
	// afterFindPosts runs after FindPostsByType has read its snapshot, outside the lock.
	afterFindPosts func()
}

func newFakeUserRepo() *fakeUserRepo { return &fakeUserRepo{} }

func (f *fakeUserRepo) byUsername(username string) *models.User {
	for _, u := range f.users {
		if u.Username == username {
			return u
		}
	}
	return nil
}

func (f *fakeUserRepo) byEmail(email string) *models.User {
	for _, u := range f.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func (f *fakeUserRepo) post(mediaPath string) (*models.User, *models.Post) {
	for _, u := range f.users {
		for i := range u.Posts {
			if u.Posts[i].MediaPath == mediaPath {
				return u, &u.Posts[i]
			}
		}
	}
	return nil, nil
}

func clone(u *models.User) *models.User {
	c := *u
	c.Followers = slices.Clone(u.Followers)
	c.Following = slices.Clone(u.Following)
	c.Posts = make([]models.Post, len(u.Posts))
	for i, p := range u.Posts {
		p.Likes = slices.Clone(p.Likes)
		p.Comments = slices.Clone(p.Comments)
		c.Posts[i] = p
	}
	return &c
}

func matched(n int64) *mongo.UpdateResult {
	return &mongo.UpdateResult{MatchedCount: n, ModifiedCount: n}
}

func (f *fakeUserRepo) Create(_ context.Context, user *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byUsername(user.Username) != nil || f.byEmail(user.Email) != nil {
		return nil, mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key error"}}}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	f.users = append(f.users, clone(user))
	return user, nil
}

func (f *fakeUserRepo) FindByUsername(_ context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u := f.byUsername(username); u != nil {
		return clone(u), nil
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u := f.byEmail(email); u != nil {
		return clone(u), nil
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeUserRepo) ExistsByUsername(_ context.Context, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byUsername(username) != nil, nil
}

func (f *fakeUserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byEmail(email) != nil, nil
}

func (f *fakeUserRepo) SetVerificationCode(_ context.Context, email, code string, expiresAt time.Time) (*mongo.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byEmail(email)
	if u == nil {
		return matched(0), nil
	}
	u.LatestVerificationCode = &code
	u.VerificationCodeExpiresAt = &expiresAt
	return matched(1), nil
}

func (f *fakeUserRepo) ResetPassword(_ context.Context, email, code, hashedPassword string, now time.Time) (*mongo.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byEmail(email)
	if u == nil || u.LatestVerificationCode == nil || *u.LatestVerificationCode != code {
		return matched(0), nil
	}
	if u.VerificationCodeExpiresAt != nil && !now.Before(*u.VerificationCodeExpiresAt) {
		return matched(0), nil
	}
	u.Password = hashedPassword
	u.LatestVerificationCode = nil
	u.VerificationCodeExpiresAt = nil
	return matched(1), nil
}

func (f *fakeUserRepo) AddFollowing(_ context.Context, username, target string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byUsername(username)
	if u == nil {
		return nil, mongo.ErrNoDocuments
	}
	if !slices.Contains(u.Following, target) {
		u.Following = append(u.Following, target)
	}
	return clone(u), nil
}

func (f *fakeUserRepo) AddFollower(_ context.Context, username, follower string) (*mongo.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byUsername(username)
	if u == nil {
		return matched(0), nil
	}
	if !slices.Contains(u.Followers, follower) {
		u.Followers = append(u.Followers, follower)
	}
	return matched(1), nil
}

func (f *fakeUserRepo) PushPost(_ context.Context, username string, post models.Post) (*mongo.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byUsername(username)
	if u == nil {
		return matched(0), nil
	}
	u.Posts = append(u.Posts, post)
	return matched(1), nil
}

func (f *fakeUserRepo) FindPost(_ context.Context, mediaPath string) (*models.FeedPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, p := f.post(mediaPath)
	if p == nil {
		return nil, mongo.ErrNoDocuments
	}
	fp := &models.FeedPost{Post: *p, Username: u.Username}
	fp.Likes = slices.Clone(p.Likes)
	fp.Comments = slices.Clone(p.Comments)
	return fp, nil
}

func (f *fakeUserRepo) RemoveLike(_ context.Context, mediaPath, username string) (*mongo.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, p := f.post(mediaPath)
	if p == nil || !slices.Contains(p.Likes, username) {
		return matched(0), nil
	}
	p.Likes = slices.DeleteFunc(p.Likes, func(l string) bool { return l == username })
	return matched(1), nil
}

func (f *fakeUserRepo) AddLike(_ context.Context, mediaPath, username string) (*mongo.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, p := f.post(mediaPath)
	if p == nil || slices.Contains(p.Likes, username) {
		return matched(0), nil
	}
	p.Likes = append(p.Likes, username)
	return matched(1), nil
}

func (f *fakeUserRepo) PushComment(_ context.Context, mediaPath string, comment models.Comment) (*mongo.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, p := f.post(mediaPath)
	if p == nil {
		return matched(0), nil
	}
	if f.commentModified != nil {
		return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: *f.commentModified}, nil
	}
	p.Comments = append(p.Comments, comment)
	return matched(1), nil
}

func (f *fakeUserRepo) FindPostsByType(_ context.Context, mediaType string) ([]models.FeedPost, error) {
	out := f.snapshotPosts(mediaType)
	if f.afterFindPosts != nil {
		f.afterFindPosts()
	}
	return out, nil
}

func (f *fakeUserRepo) snapshotPosts(mediaType string) []models.FeedPost {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.FeedPost
	for _, u := range f.users {
		for _, p := range u.Posts {
			if p.Type == mediaType {
				fp := models.FeedPost{Post: p, Username: u.Username}
				fp.Likes = slices.Clone(p.Likes)
				out = append(out, fp)
			}
		}
	}
	return out
}

func (f *fakeUserRepo) CountAll(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.users)), nil
}

// memStore is a MediaStore backed by a map; MIME types are taken from the name's extension.
type memStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemStore() *memStore { return &memStore{blobs: map[string][]byte{}} }

var mimeByExt = map[string]string{
	".png": "image/png",
	".jpg": "image/jpeg",
	".mp4": "video/mp4",
	".txt": "text/plain; charset=utf-8",
}

func (m *memStore) Save(_ context.Context, originalName string, r io.Reader) (*storage.StoredMedia, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ext := filepath.Ext(originalName)
	name := primitive.NewObjectID().Hex() + ext
	m.blobs[name] = data
	return &storage.StoredMedia{Name: name, MIMEType: mimeByExt[strings.ToLower(ext)], Size: int64(len(data))}, nil
}

func (m *memStore) Open(name string) (*os.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[name]; !ok {
		return nil, storage.ErrFileNotFound
	}
	return nil, nil
}

func (m *memStore) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, name)
	return nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

// recordingCache keys entries by generation the way the Redis cache does.
type recordingCache struct {
	mu          sync.Mutex
	gens        map[string]int64
	feeds       map[string][]models.FeedPost
	invalidated []string
}

func newRecordingCache() *recordingCache {
	return &recordingCache{gens: map[string]int64{}, feeds: map[string][]models.FeedPost{}}
}

func cacheKey(mediaType string, gen int64) string {
	return fmt.Sprintf("%s:%d", mediaType, gen)
}

func (c *recordingCache) Generation(_ context.Context, mediaType string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[mediaType], true
}

func (c *recordingCache) GetFeed(_ context.Context, mediaType string, gen int64) ([]models.FeedPost, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	posts, ok := c.feeds[cacheKey(mediaType, gen)]
	return posts, ok
}

func (c *recordingCache) SetFeed(_ context.Context, mediaType string, gen int64, posts []models.FeedPost) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.feeds[cacheKey(mediaType, gen)] = posts
}

func (c *recordingCache) Invalidate(_ context.Context, mediaTypes ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range mediaTypes {
		c.gens[t]++
		c.invalidated = append(c.invalidated, t)
	}
}

func (c *recordingCache) Close() error { return nil }

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingMailer struct {
	to, subject, body string
	err               error
}

func (m *recordingMailer) SendEmail(to, subject, msg string) error {
	m.to, m.subject, m.body = to, subject, msg
	return m.err
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n")

func pngReader() io.Reader { return bytes.NewReader(pngHeader) }
