package payment

import (
	"context"
	"strings"
	"time"

	"oplugy/models"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
)

// Gateway opens a client-side payment session for a charge.
type Gateway interface {
	Name() string
	// Configured reports whether the gateway has the keys it needs at runtime.
	Configured() bool
	Prepare(ctx context.Context, req models.ChargeRequest) (*models.GatewaySession, error)
}

// PaystackInline hands the popup parameters to the browser; Paystack opens
// the transaction itself once the inline script runs.
type PaystackInline struct {
	PublicKey string
}

func (g *PaystackInline) Name() string { return "paystack" }

func (g *PaystackInline) Configured() bool {
	return strings.TrimSpace(g.PublicKey) != ""
}

func (g *PaystackInline) Prepare(ctx context.Context, req models.ChargeRequest) (*models.GatewaySession, error) {
	return &models.GatewaySession{
		Gateway:   g.Name(),
		Key:       g.PublicKey,
		Email:     req.Email,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Reference: req.Reference,
		CreatedAt: time.Now(),
	}, nil
}

// StripeGateway creates a PaymentIntent whose client secret the browser confirms.
type StripeGateway struct {
	SecretKey      string
	PublishableKey string
	create         func(*stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

func NewStripeGateway(secretKey, publishableKey string) *StripeGateway {
	return &StripeGateway{
		SecretKey:      secretKey,
		PublishableKey: publishableKey,
		create:         paymentintent.New,
	}
}

func (g *StripeGateway) Name() string { return "stripe" }

func (g *StripeGateway) Configured() bool {
	return g.SecretKey != "" && g.PublishableKey != ""
}

func (g *StripeGateway) Prepare(ctx context.Context, req models.ChargeRequest) (*models.GatewaySession, error) {
	params := &stripe.PaymentIntentParams{
		Amount:       stripe.Int64(req.Amount),
		Currency:     stripe.String(strings.ToLower(req.Currency)),
		ReceiptEmail: stripe.String(req.Email),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.Reference)
	params.AddMetadata("reference", req.Reference)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	create := g.create
	if create == nil {
		create = paymentintent.New
	}
	pi, err := create(params)
	if err != nil {
		return nil, err
	}
	return &models.GatewaySession{
		Gateway:      g.Name(),
		Key:          g.PublishableKey,
		Email:        req.Email,
		Amount:       pi.Amount,
		Currency:     req.Currency,
		Reference:    req.Reference,
		ClientSecret: pi.ClientSecret,
		CreatedAt:    time.Now(),
	}, nil
}

// NewGateway selects the configured gateway. Unknown names fall back to Paystack.
func NewGateway(name, paystackPublicKey, stripeSecretKey, stripePublishableKey string) Gateway {
	if strings.EqualFold(name, "stripe") {
		return NewStripeGateway(stripeSecretKey, stripePublishableKey)
	}
	return &PaystackInline{PublicKey: paystackPublicKey}
}
