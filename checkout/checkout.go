package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"listingdesk/catalog"
	"listingdesk/config"
)

var ErrNothingToPay = errors.New("order total is zero")

// Metadata keys carried on the hosted session and read back by the webhook.
const (
	MetaPropertyID   = "property_id"
	MetaPackageID    = "package_id"
	MetaPromoCode    = "promo_code"
	MetaEnhancements = "enhancements"
)

// LineItem is one row on the hosted checkout page. Amounts are in cents.
type LineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int64
}

type SessionRequest struct {
	PropertyID    string
	Currency      string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Items         []LineItem
	Discount      int64
	Metadata      map[string]string
}

// Session is a created hosted checkout; URL is where the browser goes.
type Session struct {
	ID  string
	URL string
}

// PaymentGateway creates hosted checkout sessions.
type PaymentGateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
}

// Service turns a priced summary into a hosted checkout. It never writes
// payment status; that belongs to the webhook.
type Service struct {
	catalog  *catalog.Catalog
	payments PaymentGateway
	cfg      config.StripeConfig
}

func NewService(c *catalog.Catalog, payments PaymentGateway, cfg config.StripeConfig) *Service {
	return &Service{catalog: c, payments: payments, cfg: cfg}
}

// Quote prices a package and enhancements with an optional promo code.
func (s *Service) Quote(packageID string, enhancements []catalog.Selection, promo string) (catalog.Summary, error) {
	return s.catalog.Summarize(packageID, enhancements, promo)
}

// CreateSession starts a hosted checkout for the summary and returns the
// redirect target.
func (s *Service) CreateSession(ctx context.Context, propertyID, email string, summary catalog.Summary) (*Session, error) {
	if summary.Total <= 0 {
		return nil, ErrNothingToPay
	}

	req := SessionRequest{
		PropertyID:    propertyID,
		Currency:      s.cfg.Currency,
		CustomerEmail: email,
		SuccessURL:    ReturnURL(s.cfg.SuccessURL, propertyID, true),
		CancelURL:     ReturnURL(s.cfg.CancelURL, propertyID, false),
		Discount:      int64(summary.Discount),
		Metadata: map[string]string{
			MetaPropertyID: propertyID,
		},
	}
	if summary.PackageID != "" {
		req.Metadata[MetaPackageID] = summary.PackageID
	}
	if summary.PromoCode != "" {
		req.Metadata[MetaPromoCode] = summary.PromoCode
	}

	var enhancements []string
	for _, item := range summary.Items {
		req.Items = append(req.Items, LineItem{
			Name:       item.Title,
			UnitAmount: int64(item.UnitPrice),
			Quantity:   int64(item.Quantity),
		})
		if _, ok := catalog.LookupEnhancement(item.Key); ok {
			enhancements = append(enhancements, item.Key)
		}
	}
	if len(enhancements) > 0 {
		req.Metadata[MetaEnhancements] = strings.Join(enhancements, ",")
	}

	sess, err := s.payments.CreateSession(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return sess, nil
}

// ReturnURL adds the property id to a success or cancel URL. The success
// URL also gets the provider's session id placeholder.
func ReturnURL(base, propertyID string, success bool) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("property_id", propertyID)
	u.RawQuery = q.Encode()
	if success {
		// the placeholder must reach the provider unescaped
		return u.String() + "&session_id={CHECKOUT_SESSION_ID}"
	}
	return u.String()
}

// EnhancementTypes splits the metadata list written by CreateSession.
func EnhancementTypes(meta map[string]string) []string {
	raw := meta[MetaEnhancements]
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
