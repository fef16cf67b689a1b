package services

import (
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"
)

type EmailService interface {
	SendEmail(to, subject, msg string) error
}

type emailService struct {
	from   string
	dialer *gomail.Dialer
}

// NewEmailService sends through SMTP_HOST when it is set. Without it messages are written
// to the log, which is how reset codes reach developers running locally.
func NewEmailService() EmailService {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		log.Info().Msg("SMTP_HOST not set, emails will be logged instead of sent")
		return logEmailService{}
	}

	port, err := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if err != nil || port == 0 {
		port = 587
	}
	from := os.Getenv("SMTP_FROM")
	if from == "" {
		from = os.Getenv("SMTP_USERNAME")
	}

	return &emailService{
		from:   from,
		dialer: gomail.NewDialer(host, port, os.Getenv("SMTP_USERNAME"), os.Getenv("SMTP_PASSWORD")),
	}
}

func (e *emailService) SendEmail(to, subject, msg string) error {
	m := gomail.NewMessage()

	m.SetHeader("From", e.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", msg)

	if err := e.dialer.DialAndSend(m); err != nil {
		log.Error().Err(err).Str("to", to).Msg("Failed to send email")
		return err
	}
	log.Info().Str("to", to).Str("subject", subject).Msg("Email sent")
	return nil
}

type logEmailService struct{}

func (logEmailService) SendEmail(to, subject, msg string) error {
	log.Warn().Str("to", to).Str("subject", subject).Str("body", msg).Msg("Email delivery stubbed")
	return nil
}
