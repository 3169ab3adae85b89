package payment

import "context"

// Intent statuses reported by the gateway.
const (
	IntentSucceeded = "succeeded"
	IntentCanceled  = "canceled"
)

// IntentRequest describes one attempt to collect a booking's total
// price. Amount is in the smallest currency unit (e.g. paise for INR).
type IntentRequest struct {
	AmountMinorUnits int64
	Currency         string
	Description      string
	Metadata         map[string]string
}

type Intent struct {
	ID           string
	ClientSecret string
	Status       string
}

// Gateway is the external payment collaborator. Implementations must
// honor ctx cancellation; the reconciler bounds every call with a
// timeout.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	RetrieveIntent(ctx context.Context, id string) (*Intent, error)
	CancelIntent(ctx context.Context, id string) error
}

// UnavailableGateway fails every call. Stands in for the real gateway
// when no credentials are configured, which in demo mode routes every
// payment through the fallback path.
type UnavailableGateway struct{}

func (UnavailableGateway) CreateIntent(context.Context, IntentRequest) (*Intent, error) {
	return nil, ErrGatewayUnavailable
}

func (UnavailableGateway) RetrieveIntent(context.Context, string) (*Intent, error) {
	return nil, ErrGatewayUnavailable
}

func (UnavailableGateway) CancelIntent(context.Context, string) error {
	return ErrGatewayUnavailable
}
