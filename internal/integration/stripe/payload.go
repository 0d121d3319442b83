package stripe

import (
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	ierr "github.com/telecare/billingcore/internal/errors"
	"github.com/telecare/billingcore/internal/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Event objects are decoded into local shapes that accept both the older and
// the current API layouts of the fields read here.

// ExpandableID decodes a reference that is either an id string, null, or an
// expanded object carrying an "id".
type ExpandableID string

func (e *ExpandableID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*e = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = ExpandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*e = ExpandableID(obj.ID)
	return nil
}

func (e ExpandableID) String() string {
	return string(e)
}

// Envelope is the outer shape of every Stripe event
type Envelope struct {
	ID       string `json:"id"`
	Object   string `json:"object"`
	Type     string `json:"type"`
	Created  int64  `json:"created"`
	Livemode bool   `json:"livemode"`
	Data     struct {
		Object jsoniter.RawMessage `json:"object"`
	} `json:"data"`
}

// ParseEnvelope decodes and sanity-checks the event envelope. Created stays
// zero when the event carries no timestamp.
func ParseEnvelope(payload []byte) (*types.ProviderEvent, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Malformed webhook payload").
			Mark(ierr.ErrValidation)
	}
	if env.ID == "" || env.Type == "" {
		return nil, ierr.NewError("webhook event missing id or type").
			WithHint("Malformed webhook payload").
			Mark(ierr.ErrValidation)
	}

	var created time.Time
	if env.Created > 0 {
		created = time.Unix(env.Created, 0).UTC()
	}

	return &types.ProviderEvent{
		ID:       env.ID,
		Type:     env.Type,
		Kind:     types.WebhookEventKindFromStripe(env.Type),
		Created:  created,
		Livemode: env.Livemode,
		Object:   []byte(env.Data.Object),
		Payload:  payload,
	}, nil
}

// PaymentIntent is the subset of a payment_intent object the ledger needs
type PaymentIntent struct {
	ID               string            `json:"id"`
	Amount           int64             `json:"amount"`
	Currency         string            `json:"currency"`
	Status           string            `json:"status"`
	Customer         ExpandableID      `json:"customer"`
	Invoice          ExpandableID      `json:"invoice"`
	Metadata         map[string]string `json:"metadata"`
	LastPaymentError *struct {
		Code        string `json:"code"`
		DeclineCode string `json:"decline_code"`
		Message     string `json:"message"`
	} `json:"last_payment_error"`
}

// InvoiceID resolves the invoice the intent pays. Newer API versions no
// longer expose it on the intent, so checkout metadata is the fallback.
func (pi *PaymentIntent) InvoiceID() string {
	if pi.Invoice != "" {
		return pi.Invoice.String()
	}
	return pi.Metadata["invoice_id"]
}

func (pi *PaymentIntent) SubscriptionID() string {
	return pi.Metadata["subscription_id"]
}

func (pi *PaymentIntent) ErrorMessage() string {
	if pi.LastPaymentError == nil {
		return ""
	}
	if pi.LastPaymentError.Message != "" {
		return pi.LastPaymentError.Message
	}
	if pi.LastPaymentError.DeclineCode != "" {
		return pi.LastPaymentError.DeclineCode
	}
	return pi.LastPaymentError.Code
}

func (pi *PaymentIntent) AmountDecimal() decimal.Decimal {
	return types.AmountFromMinorUnits(pi.Amount, pi.Currency)
}

// Invoice is the subset of an invoice object the ledger needs
type Invoice struct {
	ID            string       `json:"id"`
	Status        string       `json:"status"`
	Currency      string       `json:"currency"`
	AmountDue     int64        `json:"amount_due"`
	AmountPaid    int64        `json:"amount_paid"`
	Customer      ExpandableID `json:"customer"`
	Subscription  ExpandableID `json:"subscription"`
	PaymentIntent ExpandableID `json:"payment_intent"`
	Parent        *struct {
		SubscriptionDetails *struct {
			Subscription ExpandableID `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
	Payments *struct {
		Data []struct {
			Payment struct {
				PaymentIntent ExpandableID `json:"payment_intent"`
			} `json:"payment"`
		} `json:"data"`
	} `json:"payments"`
	LastFinalizationError *struct {
		Message string `json:"message"`
	} `json:"last_finalization_error"`
}

// PaymentIntentID looks at the legacy field first, then the payments list
func (inv *Invoice) PaymentIntentID() string {
	if inv.PaymentIntent != "" {
		return inv.PaymentIntent.String()
	}
	if inv.Payments != nil {
		for i := len(inv.Payments.Data) - 1; i >= 0; i-- {
			if id := inv.Payments.Data[i].Payment.PaymentIntent; id != "" {
				return id.String()
			}
		}
	}
	return ""
}

func (inv *Invoice) SubscriptionID() string {
	if inv.Subscription != "" {
		return inv.Subscription.String()
	}
	if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil {
		return inv.Parent.SubscriptionDetails.Subscription.String()
	}
	return ""
}

// AmountDecimal is the amount owed for failures and the amount paid otherwise
func (inv *Invoice) AmountDecimal() decimal.Decimal {
	amount := inv.AmountDue
	if inv.AmountPaid > 0 {
		amount = inv.AmountPaid
	}
	return types.AmountFromMinorUnits(amount, inv.Currency)
}

// Subscription is the subset of a subscription object the directory needs
type Subscription struct {
	ID       string       `json:"id"`
	Status   string       `json:"status"`
	Customer ExpandableID `json:"customer"`
}

// DecodeObject decodes the event's data.object into dst
func DecodeObject(event *types.ProviderEvent, dst interface{}) error {
	if len(event.Object) == 0 {
		return ierr.NewError("webhook event has no data object").
			WithHint("Malformed webhook payload").
			WithReportableDetails(map[string]interface{}{
				"event_id": event.ID,
			}).
			Mark(ierr.ErrValidation)
	}
	if err := json.Unmarshal(event.Object, dst); err != nil {
		return ierr.WithError(err).
			WithHint("Malformed webhook payload").
			WithReportableDetails(map[string]interface{}{
				"event_id":   event.ID,
				"event_type": event.Type,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
