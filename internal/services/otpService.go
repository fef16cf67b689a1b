package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"mirror/internal/events"
	"mirror/internal/metrics"
	"mirror/internal/models"
	"mirror/internal/repositories"
	"mirror/internal/utils"
)

const (
	OTPLength             = 6
	OTPExpirationMinutes  = 10
	resetCodeEmailSubject = "Your password reset code"
	resetCodeEmailBody    = "Your verification code is: <b>%s</b>. It expires in %d minutes."
)

// OTPService issues and redeems the numeric codes used for password recovery.
type OTPService interface {
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, req *models.ResetPasswordRequest) error
}

type otpService struct {
	userRepo     repositories.UserRepository
	emailService EmailService
	publisher    events.Publisher
	now          func() time.Time
}

func NewOTPService(userRepo repositories.UserRepository, emailService EmailService, publisher events.Publisher) OTPService {
	return &otpService{
		userRepo:     userRepo,
		emailService: emailService,
		publisher:    publisher,
		now:          time.Now,
	}
}

func (s *otpService) findByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			log.Warn().Str("email", email).Msg("No user registered with email")
			return nil, newError(ErrNotFound, "user not found")
		}
		return nil, err
	}
	return user, nil
}

func (s *otpService) RequestPasswordReset(ctx context.Context, email string) error {
	if _, err := s.findByEmail(ctx, email); err != nil {
		return err
	}

	code, err := utils.GenerateSecureOTP(OTPLength)
	if err != nil {
		log.Error().Err(err).Msg("Failed to generate verification code")
		return newError(ErrInternal, "failed to generate verification code")
	}

	expiresAt := s.now().Add(OTPExpirationMinutes * time.Minute)
	if _, err := s.userRepo.SetVerificationCode(ctx, email, code, expiresAt); err != nil {
		return err
	}

	body := fmt.Sprintf(resetCodeEmailBody, code, OTPExpirationMinutes)
	if err := s.emailService.SendEmail(email, resetCodeEmailSubject, body); err != nil {
		return newError(ErrInternal, "failed to send verification code")
	}

	metrics.ResetCodesIssuedTotal.Inc()
	log.Info().Str("email", email).Time("expires_at", expiresAt).Msg("Verification code issued")
	return nil
}

func (s *otpService) ResetPassword(ctx context.Context, req *models.ResetPasswordRequest) error {
	user, err := s.findByEmail(ctx, req.Email)
	if err != nil {
		return err
	}

	now := s.now()
	if user.LatestVerificationCode == nil ||
		subtle.ConstantTimeCompare([]byte(*user.LatestVerificationCode), []byte(req.Code)) != 1 {
		metrics.PasswordResetsTotal.WithLabelValues("bad_code").Inc()
		log.Warn().Str("email", req.Email).Msg("Verification code mismatch")
		return newError(ErrBadRequest, "verification code is incorrect")
	}
	if user.VerificationCodeExpiresAt != nil && !now.Before(*user.VerificationCodeExpiresAt) {
		metrics.PasswordResetsTotal.WithLabelValues("expired").Inc()
		log.Warn().Str("email", req.Email).Msg("Verification code expired")
		return newError(ErrBadRequest, "verification code expired")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), passwordHashCost)
	if err != nil {
		log.Error().Err(err).Msg("Failed to hash new password")
		return newError(ErrInternal, "failed to hash password")
	}

	result, err := s.userRepo.ResetPassword(ctx, req.Email, req.Code, string(hashedPassword), now)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		// Redeemed or replaced between the read and the write.
		metrics.PasswordResetsTotal.WithLabelValues("bad_code").Inc()
		return newError(ErrBadRequest, "verification code is incorrect")
	}

	metrics.PasswordResetsTotal.WithLabelValues("success").Inc()
	s.publisher.Publish(ctx, events.Event{Type: events.TypePasswordReset, Actor: user.Username, OccurredAt: now})
	log.Info().Str("user_id", user.ID.Hex()).Msg("Password reset successfully")
	return nil
}
