package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"text/template"

	"github.com/hibiken/asynq"

	"github.com/sizang-hub/sizang-hub/internal/auth"
	jobmetrics "github.com/sizang-hub/sizang-hub/internal/jobs"
	"github.com/sizang-hub/sizang-hub/internal/platform/mail"
)

var _ auth.Mailer = (*Client)(nil)

// SendVerification enqueues the verification email.
func (c *Client) SendVerification(ctx context.Context, to auth.Recipient, token string) error {
	task, err := NewSendEmailTask(SendEmailPayload{Kind: EmailVerification, Recipient: to, Token: token})
	return c.enqueue(ctx, task, err)
}

// SendWelcome enqueues the welcome email.
func (c *Client) SendWelcome(ctx context.Context, to auth.Recipient) error {
	task, err := NewSendEmailTask(SendEmailPayload{Kind: EmailWelcome, Recipient: to})
	return c.enqueue(ctx, task, err)
}

// SendPasswordReset enqueues the password reset email.
func (c *Client) SendPasswordReset(ctx context.Context, to auth.Recipient, token string) error {
	task, err := NewSendEmailTask(SendEmailPayload{Kind: EmailPasswordReset, Recipient: to, Token: token})
	return c.enqueue(ctx, task, err)
}

type emailTemplate struct {
	subject string
	body    *template.Template
}

var emailTemplates = map[EmailKind]emailTemplate{
	EmailVerification: {
		subject: "Confirm your Sizang Hub account",
		body: template.Must(template.New("verification").Parse(`Hi {{.Name}},

Welcome to Sizang Hub. Confirm your email address to finish signing up:

{{.Link}}

The link expires in 24 hours. If you did not sign up, ignore this email.
`)),
	},
	EmailWelcome: {
		subject: "Welcome to Sizang Hub",
		body: template.Must(template.New("welcome").Parse(`Hi {{.Name}},

Your email is confirmed. Join the conversation in the forums, find a group
and share resources with the community:

{{.Link}}
`)),
	},
	EmailPasswordReset: {
		subject: "Reset your Sizang Hub password",
		body: template.Must(template.New("password_reset").Parse(`Hi {{.Name}},

Someone asked to reset the password for this account. Choose a new password here:

{{.Link}}

The link expires in 24 hours. If it was not you, no action is needed.
`)),
	},
}

// EmailJob renders and sends account email.
type EmailJob struct {
	Sender  mail.Sender
	BaseURL string
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Render builds the message for payload.
func (j *EmailJob) Render(payload SendEmailPayload) (mail.Message, error) {
	tmpl, ok := emailTemplates[payload.Kind]
	if !ok {
		return mail.Message{}, fmt.Errorf("email: unknown kind %q", payload.Kind)
	}
	if payload.Recipient.Email == "" {
		return mail.Message{}, errors.New("email: recipient address required")
	}
	name := payload.Recipient.DisplayName
	if name == "" {
		name = "there"
	}
	var body bytes.Buffer
	err := tmpl.body.Execute(&body, map[string]string{"Name": name, "Link": j.link(payload)})
	if err != nil {
		return mail.Message{}, err
	}
	return mail.Message{To: payload.Recipient.Email, Subject: tmpl.subject, Body: body.String()}, nil
}

func (j *EmailJob) link(payload SendEmailPayload) string {
	base := strings.TrimRight(j.BaseURL, "/")
	switch payload.Kind {
	case EmailVerification:
		return base + "/auth/verify?token=" + url.QueryEscape(payload.Token)
	case EmailPasswordReset:
		return base + "/auth/reset-password?token=" + url.QueryEscape(payload.Token)
	}
	return base + "/"
}

// Handle processes TaskSendEmail tasks.
func (j *EmailJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode email payload: %v: %w", err, asynq.SkipRetry)
	}
	tracker := j.Metrics.Track(TaskSendEmail)
	defer func() { resultErr = tracker.End(resultErr) }()

	msg, err := j.Render(payload)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err := j.Sender.Send(ctx, msg); err != nil {
		return err
	}
	j.Metrics.AddDelivered("email", 1)
	j.logger().Info("email sent", slog.String("kind", string(payload.Kind)), slog.String("user_id", payload.Recipient.UserID))
	return nil
}

func (j *EmailJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
