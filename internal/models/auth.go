package models

type Login struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type Signup struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UsernameCheck struct {
	Username string `json:"username" validate:"required"`
}

type EmailCheck struct {
	Email string `json:"email" validate:"required"`
}

type PasswordRecoveryRequest struct {
	Email string `json:"email" validate:"required"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required"`
	Code        string `json:"code" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// Session is returned to clients after any successful sign-in.
type Session struct {
	Message  string `json:"message"`
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username"`
	Token    string `json:"token,omitempty"`
}
