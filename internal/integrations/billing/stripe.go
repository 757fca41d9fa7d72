package billing

import (
	"context"
	"github.com/pkg/errors"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/subscription"
	"net/http"
	"time"
)

// SubscriptionCanceller stops recurring billing for a subscription.
type SubscriptionCanceller interface {
	CancelSubscription(ctx context.Context, subscriptionID string) error
}

type stripeBilling struct{}

func NewStripe(secretKey string) SubscriptionCanceller {
	stripe.Key = secretKey
	stripe.SetHTTPClient(&http.Client{Timeout: 10 * time.Second})
	return &stripeBilling{}
}

func (s *stripeBilling) CancelSubscription(ctx context.Context, subscriptionID string) error {
	if stripe.Key == "" {
		return errors.New("stripe is not configured")
	}
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	if _, err := subscription.Cancel(subscriptionID, params); err != nil {
		return errors.Wrapf(err, "failed to cancel subscription %s", subscriptionID)
	}
	return nil
}
