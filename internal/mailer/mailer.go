// Package mailer delivers registration verification codes.
package mailer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Mailer sends transactional mail. SendGrid in production, log output in
// development.
type Mailer interface {
	SendVerificationCode(ctx context.Context, email, firstName, code string) error
}

func verificationBody(firstName, code string) string {
	return fmt.Sprintf("Hello %s,\n\nYour verification code is %s.\n\n- Blizzard", firstName, code)
}

// LogMailer writes the mail to the log instead of sending it. Used in
// development where no SendGrid key is configured.
type LogMailer struct {
	logger zerolog.Logger
}

// NewLogMailer creates a mailer that only logs.
func NewLogMailer(logger zerolog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendVerificationCode(ctx context.Context, email, firstName, code string) error {
	m.logger.Info().
		Str("email", email).
		Str("code", code).
		Msg(verificationBody(firstName, code))
	return nil
}

// SendGridMailer sends mail through the SendGrid v3 API.
type SendGridMailer struct {
	client *sendgrid.Client
	from   string
}

// NewSendGridMailer creates a mailer backed by SendGrid.
func NewSendGridMailer(apiKey, from string) *SendGridMailer {
	return &SendGridMailer{client: sendgrid.NewSendClient(apiKey), from: from}
}

func (m *SendGridMailer) SendVerificationCode(ctx context.Context, email, firstName, code string) error {
	from := mail.NewEmail("HuskyChat", m.from)
	to := mail.NewEmail(firstName, email)
	body := verificationBody(firstName, code)
	message := mail.NewSingleEmail(from, "Your HuskyChat verification code", to, body, body)

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid rejected verification email: status %d", resp.StatusCode)
	}
	return nil
}
