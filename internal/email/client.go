package email

import (
	"context"

	"github.com/resend/resend-go/v2"
	"github.com/telecare/billingcore/internal/config"
	ierr "github.com/telecare/billingcore/internal/errors"
	"github.com/telecare/billingcore/internal/logger"
)

// Message is a plain text email
type Message struct {
	To      string
	Subject string
	Text    string
}

// Sender delivers a single email and returns the provider message id
type Sender interface {
	Send(ctx context.Context, msg *Message) (string, error)
	IsEnabled() bool
}

// Client sends email through Resend
type Client struct {
	client      *resend.Client
	enabled     bool
	fromAddress string
	replyTo     string
	logger      *logger.Logger
}

// NewClient returns a disabled client when email is off or has no API key
func NewClient(cfg *config.Configuration, logger *logger.Logger) Sender {
	emailCfg := cfg.Notifications.Email
	if !emailCfg.Enabled || emailCfg.APIKey == "" {
		logger.Infow("email notifications disabled",
			"enabled", emailCfg.Enabled,
			"has_api_key", emailCfg.APIKey != "",
		)
		return &Client{enabled: false, logger: logger}
	}

	return &Client{
		client:      resend.NewClient(emailCfg.APIKey),
		enabled:     true,
		fromAddress: emailCfg.FromAddress,
		replyTo:     emailCfg.ReplyTo,
		logger:      logger,
	}
}

func (c *Client) IsEnabled() bool {
	return c.enabled
}

func (c *Client) Send(ctx context.Context, msg *Message) (string, error) {
	if !c.enabled {
		return "", ierr.NewError("email client is disabled").
			Mark(ierr.ErrSystem)
	}

	params := &resend.SendEmailRequest{
		From:    c.fromAddress,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Text,
	}
	if c.replyTo != "" {
		params.ReplyTo = c.replyTo
	}

	sent, err := c.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		c.logger.Errorw("failed to send email",
			"error", err,
			"subject", msg.Subject,
		)
		return "", ierr.WithError(err).
			WithHint("Unable to send email").
			Mark(ierr.ErrHTTPClient)
	}

	c.logger.Infow("email sent",
		"message_id", sent.Id,
		"subject", msg.Subject,
	)
	return sent.Id, nil
}
