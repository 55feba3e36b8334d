package handlers

import (
	"errors"
	"os"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

const emailFromName = "Resolve Community Tribunal"
const emailFromAddr = "no-reply@resolvehq.io"

// Notifier dispatches emails through sendgrid. Send is a field so tests can
// swap the transport; NotifyAsync is the fire-and-forget path used for
// lifecycle side effects, whose failures are logged and never surface as the
// failure of the triggering transition.
type Notifier struct {
	Send func(toEmail, subject, plain, html string) error
}

// NewNotifier returns a sendgrid-backed notifier
func NewNotifier() *Notifier {
	return &Notifier{Send: sendWithSendgrid}
}

func sendWithSendgrid(toEmail, subject, plain, html string) error {
	if os.Getenv("SENDGRID_API_KEY") == "" {
		return errors.New("SENDGRID_API_KEY is not set")
	}
	from := mail.NewEmail(emailFromName, emailFromAddr)
	to := mail.NewEmail("", toEmail)
	msg := mail.NewSingleEmail(from, subject, to, plain, html)
	client := sendgrid.NewSendClient(os.Getenv("SENDGRID_API_KEY"))
	response, err := client.Send(msg)
	if err != nil {
		return err
	}
	if response.StatusCode >= 300 {
		zap.S().Warnw("email sent with non-2xx status",
			"email", toEmail,
			"statusCode", response.StatusCode,
			"body", response.Body)
	}
	return nil
}

// NotifyAsync sends the email from a detached goroutine
func (n *Notifier) NotifyAsync(toEmail, subject, plain, html string) {
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				zap.S().Errorw("panic in email dispatch", "email", toEmail, "panic", rec)
			}
		}()
		if err := n.Send(toEmail, subject, plain, html); err != nil {
			zap.S().Errorw("failed to send email", "email", toEmail, "error", err)
		}
	}()
}
