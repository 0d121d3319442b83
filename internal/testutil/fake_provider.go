package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/telecare/billingcore/internal/integration/stripe"
)

// FakeProvider implements stripe.Provider in memory. CreateCustomer is
// idempotent per patient id, like the idempotency key sent to Stripe.
type FakeProvider struct {
	mu              sync.Mutex
	customers       map[string]string
	customerCalls   atomic.Int64
	sequence        atomic.Int64
	Err             error
	VerifyResult    bool
	CheckoutCalls   []CheckoutCall
	PortalCustomers []string
}

// CheckoutCall records the arguments of a CreateCheckoutSession call
type CheckoutCall struct {
	CustomerID string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

var _ stripe.Provider = (*FakeProvider)(nil)

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		customers:    make(map[string]string),
		VerifyResult: true,
	}
}

// CustomerCalls returns how many times CreateCustomer was called
func (p *FakeProvider) CustomerCalls() int64 {
	return p.customerCalls.Load()
}

func (p *FakeProvider) CreateCustomer(_ context.Context, _ string, metadata map[string]string) (string, error) {
	p.customerCalls.Add(1)
	if p.Err != nil {
		return "", p.Err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	patientID := metadata[stripe.MetadataPatientID]
	if id, ok := p.customers[patientID]; ok && patientID != "" {
		return id, nil
	}
	id := fmt.Sprintf("cus_test_%d", p.sequence.Add(1))
	if patientID != "" {
		p.customers[patientID] = id
	}
	return id, nil
}

func (p *FakeProvider) CreateCheckoutSession(_ context.Context, customerID, priceID, successURL, cancelURL string) (string, error) {
	if p.Err != nil {
		return "", p.Err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CheckoutCalls = append(p.CheckoutCalls, CheckoutCall{
		CustomerID: customerID,
		PriceID:    priceID,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
	})
	return "https://checkout.stripe.test/" + customerID, nil
}

func (p *FakeProvider) CreatePortalSession(_ context.Context, customerID, returnURL string) (string, error) {
	if p.Err != nil {
		return "", p.Err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PortalCustomers = append(p.PortalCustomers, customerID)
	return "https://billing.stripe.test/" + customerID, nil
}

func (p *FakeProvider) VerifySignature(_ []byte, _, _ string) bool {
	return p.VerifyResult
}
