package notification

import (
	"bytes"
	"context"
	"strings"
	"text/template"
	"time"

	"github.com/telecare/billingcore/internal/config"
	"github.com/telecare/billingcore/internal/domain/customer"
	"github.com/telecare/billingcore/internal/email"
	ierr "github.com/telecare/billingcore/internal/errors"
	"github.com/telecare/billingcore/internal/logger"
	"github.com/telecare/billingcore/internal/types"
)

var (
	retryScheduledTemplate = template.Must(template.New("retry_scheduled").Parse(
		`Hello,

We were unable to process your payment of {{.Amount}}.{{if .Reason}} Reason: {{.Reason}}.{{end}}

We will try again on {{.RetryDate}}. Your care continues in the meantime.
{{if .PortalURL}}
You can update your payment method at any time: {{.PortalURL}}
{{end}}`))

	recoveryExhaustedTemplate = template.Must(template.New("recovery_exhausted").Parse(
		`Hello,

We tried several times but could not collect your payment of {{.Amount}}.
Our billing team will reach out to you shortly.
{{if .PortalURL}}
To resolve this now, update your payment method here: {{.PortalURL}}
{{end}}`))

	staffEscalationTemplate = template.Must(template.New("staff_escalation").Parse(
		`Payment recovery exhausted after {{.Attempt}} retries.

Payment intent: {{.PaymentIntentID}}
Subscription: {{.SubscriptionID}}
Customer: {{.CustomerID}}
Amount: {{.Amount}}
Last error: {{.Reason}}
`))
)

type emailData struct {
	Amount          string
	Reason          string
	RetryDate       string
	Attempt         int
	PortalURL       string
	PaymentIntentID string
	SubscriptionID  string
	CustomerID      string
}

type emailNotifier struct {
	sender    email.Sender
	customers customer.Repository
	config    *config.EmailConfig
	logger    *logger.Logger
}

// NewEmailNotifier emails patients about scheduled and exhausted payment
// recoveries, and staff about exhausted ones. Other events are ignored.
func NewEmailNotifier(sender email.Sender, customers customer.Repository, cfg *config.Configuration, logger *logger.Logger) Notifier {
	return &emailNotifier{
		sender:    sender,
		customers: customers,
		config:    &cfg.Notifications.Email,
		logger:    logger,
	}
}

func (n *emailNotifier) Notify(ctx context.Context, event *types.NotificationEvent) error {
	switch event.Name {
	case types.NotificationRecoveryScheduled:
		return n.notifyPatient(ctx, event, "Action needed: your payment did not go through", retryScheduledTemplate)
	case types.NotificationRecoveryExhausted:
		if err := n.notifyStaff(ctx, event); err != nil {
			return err
		}
		return n.notifyPatient(ctx, event, "We could not collect your payment", recoveryExhaustedTemplate)
	default:
		return nil
	}
}

func (n *emailNotifier) data(event *types.NotificationEvent) emailData {
	d := emailData{
		Reason:          event.Message,
		Attempt:         event.AttemptNumber,
		PortalURL:       n.config.PortalURL,
		PaymentIntentID: event.RemotePaymentIntentID,
		SubscriptionID:  event.RemoteSubscriptionID,
		CustomerID:      event.RemoteCustomerID,
	}
	if event.Amount != nil {
		d.Amount = event.Amount.StringFixed(2) + " " + strings.ToUpper(event.Currency)
	}
	if event.NextAttemptAt != nil {
		d.RetryDate = event.NextAttemptAt.UTC().Format(time.DateOnly)
	}
	return d
}

func (n *emailNotifier) notifyPatient(ctx context.Context, event *types.NotificationEvent, subject string, tmpl *template.Template) error {
	if event.RemoteCustomerID == "" {
		n.logger.Debugw("no customer on notification, skipping patient email",
			"event_id", event.ID,
			"event_name", event.Name,
		)
		return nil
	}

	ps, err := n.customers.GetByRemoteCustomerID(ctx, event.RemoteCustomerID)
	if err != nil {
		if ierr.IsNotFound(err) {
			n.logger.Warnw("no patient for customer, skipping patient email",
				"event_id", event.ID,
				"stripe_customer_id", event.RemoteCustomerID,
			)
			return nil
		}
		return err
	}
	if ps.Email == "" {
		n.logger.Warnw("patient has no email address",
			"event_id", event.ID,
			"patient_id", ps.PatientID,
		)
		return nil
	}

	return n.send(ctx, ps.Email, subject, tmpl, n.data(event))
}

func (n *emailNotifier) notifyStaff(ctx context.Context, event *types.NotificationEvent) error {
	if n.config.StaffAddress == "" {
		return nil
	}
	subject := "Payment recovery exhausted: " + event.RemotePaymentIntentID
	return n.send(ctx, n.config.StaffAddress, subject, staffEscalationTemplate, n.data(event))
}

func (n *emailNotifier) send(ctx context.Context, to, subject string, tmpl *template.Template, data emailData) error {
	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return ierr.WithError(err).
			WithHintf("Unable to render %s email", tmpl.Name()).
			Mark(ierr.ErrSystem)
	}

	_, err := n.sender.Send(ctx, &email.Message{
		To:      to,
		Subject: subject,
		Text:    body.String(),
	})
	return err
}

type multiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier fans an event out to every notifier and returns the
// first error after all of them ran
func NewMultiNotifier(notifiers ...Notifier) Notifier {
	return &multiNotifier{notifiers: notifiers}
}

func (m *multiNotifier) Notify(ctx context.Context, event *types.NotificationEvent) error {
	var firstErr error
	for _, notifier := range m.notifiers {
		if err := notifier.Notify(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
