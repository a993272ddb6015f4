package checkout

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/coupon"
)

// StripeGateway creates Stripe Checkout sessions in payment mode.
type StripeGateway struct {
	sessions *session.Client
	coupons  *coupon.Client
}

func NewStripeGateway(secretKey string) *StripeGateway {
	return NewStripeGatewayWithBackend(secretKey, stripe.GetBackend(stripe.APIBackend))
}

// NewStripeGatewayWithBackend points the client at a specific API backend.
func NewStripeGatewayWithBackend(secretKey string, backend stripe.Backend) *StripeGateway {
	return &StripeGateway{
		sessions: &session.Client{B: backend, Key: secretKey},
		coupons:  &coupon.Client{B: backend, Key: secretKey},
	}
}

func (g *StripeGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.PropertyID),
	}
	params.Context = ctx
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	for _, item := range req.Items {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(req.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
				UnitAmount: stripe.Int64(item.UnitAmount),
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	// Stripe rejects negative line items; discounts go on a one-off coupon.
	if req.Discount > 0 {
		cp := &stripe.CouponParams{
			AmountOff: stripe.Int64(req.Discount),
			Currency:  stripe.String(req.Currency),
			Duration:  stripe.String(string(stripe.CouponDurationOnce)),
			Name:      stripe.String(fmt.Sprintf("Promo %s", req.Metadata[MetaPromoCode])),
		}
		cp.Context = ctx
		c, err := g.coupons.New(cp)
		if err != nil {
			return nil, fmt.Errorf("create coupon: %w", err)
		}
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{{Coupon: stripe.String(c.ID)}}
	}

	s, err := g.sessions.New(params)
	if err != nil {
		return nil, err
	}
	return &Session{ID: s.ID, URL: s.URL}, nil
}
