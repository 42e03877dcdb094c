package jobqueue

import (
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/badmintontv/badmintontv/app/repository"
	"github.com/badmintontv/badmintontv/internal/pkg/env"
	"github.com/badmintontv/badmintontv/internal/pkg/mail"
)

// processEmailDeliveryJob sends transactional mail for a user
func (q *Queue) processEmailDeliveryJob(job *Job) error {
	payload, err := EmailDeliveryJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid email delivery payload: %w", err)
	}

	user, err := repository.GetGlobalRepositories().User.GetByID(payload.UserID)
	if err != nil {
		return fmt.Errorf("user %d not found: %w", payload.UserID, err)
	}

	switch payload.Kind {
	case EmailKindConfirmation:
		return sendConfirmationMail(user.Email, user.Username, user.ConfirmationToken)
	case EmailKindPasswordReset:
		return sendPasswordResetMail(user.Email, user.Username, user.ResetToken)
	default:
		return fmt.Errorf("unknown email kind: %s", payload.Kind)
	}
}

func sendConfirmationMail(to, username, token string) error {
	domain := env.GetEnv("PUBLIC_DOMAIN", "http://localhost:4000")
	confirmURL := fmt.Sprintf("%s/confirm/%s", domain, token)

	subject := "Please confirm your account"
	body := fmt.Sprintf(
		"<p>Hi %s,</p>"+
			"<p>Thanks for signing up. Please confirm your account by clicking the link below:</p>"+
			"<p><a href=\"%s\">%s</a></p>"+
			"<p>If you did not create this account you can ignore this email.</p>",
		username, confirmURL, confirmURL,
	)

	if err := mail.SendMail(to, subject, body); err != nil {
		return fmt.Errorf("failed to send confirmation mail to %s: %w", to, err)
	}

	log.Infof("[JobQueue] Confirmation mail sent to %s", to)
	return nil
}

func sendPasswordResetMail(to, username, token string) error {
	domain := env.GetEnv("PUBLIC_DOMAIN", "http://localhost:4000")
	resetURL := fmt.Sprintf("%s/account/password_reset?reset_token=%s", domain, token)

	subject := "Password reset"
	body := fmt.Sprintf(
		"<p>Hi %s,</p>"+
			"<p>Someone requested a password reset for your account. You can pick a new password here:</p>"+
			"<p><a href=\"%s\">%s</a></p>"+
			"<p>The link is valid for 24 hours. If this was not you, no action is needed.</p>",
		username, resetURL, resetURL,
	)

	if err := mail.SendMail(to, subject, body); err != nil {
		return fmt.Errorf("failed to send password reset mail to %s: %w", to, err)
	}

	log.Infof("[JobQueue] Password reset mail sent to %s", to)
	return nil
}
