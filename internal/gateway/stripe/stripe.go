// Package stripe adapts the Stripe payment-intent API to the
// payment.Gateway capability the reconciler consumes.
package stripe

import (
	"context"
	"errors"
	"fmt"

	"github.com/matchtix/matchtix/internal/service/payment"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

var ErrMissingSecretKey = errors.New("stripe secret key is not configured")

type Gateway struct {
	client *client.API
}

func New(secretKey string) (*Gateway, error) {
	if secretKey == "" {
		return nil, ErrMissingSecretKey
	}

	return &Gateway{client: client.New(secretKey, nil)}, nil
}

func (g *Gateway) CreateIntent(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	const op = "gateway.stripe.CreateIntent"

	params := &stripe.PaymentIntentParams{
		Params:      stripe.Params{Context: ctx},
		Amount:      stripe.Int64(req.AmountMinorUnits),
		Currency:    stripe.String(req.Currency),
		Description: stripe.String(req.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}

	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.client.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &payment.Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
	}, nil
}

func (g *Gateway) RetrieveIntent(ctx context.Context, id string) (*payment.Intent, error) {
	const op = "gateway.stripe.RetrieveIntent"

	params := &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	}

	pi, err := g.client.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &payment.Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
	}, nil
}

func (g *Gateway) CancelIntent(ctx context.Context, id string) error {
	const op = "gateway.stripe.CancelIntent"

	params := &stripe.PaymentIntentCancelParams{
		Params: stripe.Params{Context: ctx},
	}

	if _, err := g.client.PaymentIntents.Cancel(id, params); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
