package models

type FollowRequest struct {
	CurrentUser string `json:"currentUser"`
	TargetUser  string `json:"targetUser" validate:"required"`
}

type LikeRequest struct {
	Username  string `json:"username"`
	MediaPath string `json:"mediaPath" validate:"required"`
}

type AddCommentRequest struct {
	MediaPath string  `json:"mediaPath" validate:"required"`
	Comment   Comment `json:"comment" validate:"required,min=1"`
}

// NewPost carries the validated fields of a share request; the blob travels separately.
type NewPost struct {
	Username string
	Text     string
	Type     string
	Filename string
}
