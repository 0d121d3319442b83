package stripe

import (
	"context"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/telecare/billingcore/internal/config"
	ierr "github.com/telecare/billingcore/internal/errors"
	"github.com/telecare/billingcore/internal/idempotency"
	"github.com/telecare/billingcore/internal/logger"
)

// MetadataPatientID is the metadata key linking provider objects to a patient
const MetadataPatientID = "patient_id"

// Provider is the outbound billing capability used by the portal
type Provider interface {
	CreateCustomer(ctx context.Context, email string, metadata map[string]string) (string, error)
	CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL, cancelURL string) (string, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	VerifySignature(payload []byte, header, secret string) bool
}

// Client implements Provider on the Stripe API
type Client struct {
	sc       *stripe.Client
	verifier *Verifier
	idemp    *idempotency.Generator
	timeout  time.Duration
	logger   *logger.Logger
}

func NewClient(cfg *config.Configuration, verifier *Verifier, logger *logger.Logger) Provider {
	logger.Infow("initialising stripe client",
		"has_secret_key", cfg.Stripe.SecretKey != "",
		"has_webhook_secret", cfg.Stripe.WebhookSecret != "",
		"timeout", cfg.Stripe.Timeout,
	)

	return &Client{
		sc:       stripe.NewClient(cfg.Stripe.SecretKey, nil),
		verifier: verifier,
		idemp:    idempotency.NewGenerator(),
		timeout:  cfg.Stripe.Timeout,
		logger:   logger,
	}
}

// withTimeout bounds a single provider call
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) CreateCustomer(ctx context.Context, email string, metadata map[string]string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	params := &stripe.CustomerCreateParams{
		Email:    stripe.String(email),
		Metadata: metadata,
	}
	if patientID := metadata[MetadataPatientID]; patientID != "" {
		params.SetIdempotencyKey(c.idemp.GenerateKey(idempotency.ScopeProviderCustomer, map[string]interface{}{
			MetadataPatientID: patientID,
		}))
	}

	cust, err := c.sc.V1Customers.Create(ctx, params)
	if err != nil {
		c.logger.Errorw("failed to create stripe customer",
			"error", err,
			MetadataPatientID, metadata[MetadataPatientID],
		)
		return "", ierr.WithError(err).
			WithHint("Unable to create billing customer").
			WithReportableDetails(map[string]interface{}{
				MetadataPatientID: metadata[MetadataPatientID],
			}).
			Mark(ierr.ErrHTTPClient)
	}

	c.logger.Infow("created stripe customer",
		"stripe_customer_id", cust.ID,
		MetadataPatientID, metadata[MetadataPatientID],
	)
	return cust.ID, nil
}

func (c *Client) CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL, cancelURL string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	params := &stripe.CheckoutSessionCreateParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:   stripe.String(customerID),
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
	}

	session, err := c.sc.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		c.logger.Errorw("failed to create stripe checkout session",
			"error", err,
			"stripe_customer_id", customerID,
			"price_id", priceID,
		)
		return "", ierr.WithError(err).
			WithHint("Unable to start checkout").
			WithReportableDetails(map[string]interface{}{
				"price_id": priceID,
			}).
			Mark(ierr.ErrHTTPClient)
	}

	return session.URL, nil
}

func (c *Client) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	params := &stripe.BillingPortalSessionCreateParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}

	session, err := c.sc.V1BillingPortalSessions.Create(ctx, params)
	if err != nil {
		c.logger.Errorw("failed to create stripe billing portal session",
			"error", err,
			"stripe_customer_id", customerID,
		)
		return "", ierr.WithError(err).
			WithHint("Unable to open the billing portal").
			Mark(ierr.ErrHTTPClient)
	}

	return session.URL, nil
}

func (c *Client) VerifySignature(payload []byte, header, secret string) bool {
	return c.verifier.Verify(payload, header, secret)
}
