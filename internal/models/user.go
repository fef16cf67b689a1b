package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const DefaultProfilePhoto = "default.jpg"

type User struct {
	ID                        primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Username                  string             `json:"username" bson:"username"`
	Email                     string             `json:"email" bson:"email"`
	Password                  string             `json:"-" bson:"password"`
	ProfilePhoto              string             `json:"profilePhoto" bson:"profilePhoto"`
	Followers                 []string           `json:"followers" bson:"followers"`
	Following                 []string           `json:"following" bson:"following"`
	Posts                     []Post             `json:"posts" bson:"posts"`
	LatestVerificationCode    *string            `json:"-" bson:"latest_verification_code"`
	VerificationCodeExpiresAt *time.Time         `json:"-" bson:"verification_code_expires_at,omitempty"`
	CreatedAt                 time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt                 time.Time          `json:"updated_at" bson:"updated_at"`
}

// Profile is the public view of a user returned by GET /profile/{username}.
type Profile struct {
	ProfilePhoto string   `json:"profilePhoto"`
	Followers    []string `json:"followers"`
	Following    []string `json:"following"`
	Posts        []Post   `json:"posts"`
}

func (u *User) Profile() *Profile {
	p := &Profile{
		ProfilePhoto: u.ProfilePhoto,
		Followers:    u.Followers,
		Following:    u.Following,
		Posts:        u.Posts,
	}
	if p.Followers == nil {
		p.Followers = []string{}
	}
	if p.Following == nil {
		p.Following = []string{}
	}
	if p.Posts == nil {
		p.Posts = []Post{}
	}
	for i := range p.Posts {
		p.Posts[i].normalize()
	}
	return p
}
