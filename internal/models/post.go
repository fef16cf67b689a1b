package models

import "time"

const (
	MediaTypeImage = "image"
	MediaTypeVideo = "video"
)

// Comment is an opaque comment payload, by convention [author, text].
type Comment []string

// Post is embedded in its owner's user document; mediaPath is its identity.
type Post struct {
	Text      string    `json:"text" bson:"text"`
	MediaPath string    `json:"mediaPath" bson:"mediaPath"`
	Type      string    `json:"type" bson:"type"`
	Likes     []string  `json:"likes" bson:"likes"`
	Comments  []Comment `json:"comments" bson:"comments"`
	CreatedAt time.Time `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
}

// FeedPost is a post flattened out of its owner's document for the explore/feed lists.
type FeedPost struct {
	Post     `bson:",inline"`
	Username string `json:"username" bson:"username"`
}

func (p *Post) normalize() {
	if p.Likes == nil {
		p.Likes = []string{}
	}
	if p.Comments == nil {
		p.Comments = []Comment{}
	}
}

func (p *Post) LikeCount() int {
	return len(p.Likes)
}

func (p *FeedPost) Normalize() {
	p.Post.normalize()
}

// LikeResult reports the state of a post after a like toggle.
type LikeResult struct {
	MediaPath string `json:"mediaPath"`
	Liked     bool   `json:"liked"`
	LikeCount int    `json:"likeCount"`
}
