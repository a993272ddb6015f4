package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/stripe/stripe-go/v79"
	stripewebhook "github.com/stripe/stripe-go/v79/webhook"
	"listingdesk/checkout"
	"listingdesk/logging"
)

const maxBodyBytes = 65536

// Verifier checks a provider signature and decodes the event.
type Verifier func(payload []byte, signature string) (stripe.Event, error)

// StripeVerifier verifies the Stripe-Signature header with the endpoint
// secret.
func StripeVerifier(secret string) Verifier {
	return func(payload []byte, signature string) (stripe.Event, error) {
		return stripewebhook.ConstructEventWithOptions(payload, signature, secret,
			stripewebhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	}
}

type Server struct {
	e      *echo.Echo
	verify Verifier
	proc   *Processor
}

func NewServer(verify Verifier, proc *Processor) *Server {
	s := &Server{e: echo.New(), verify: verify, proc: proc}
	s.e.HideBanner = true
	s.e.Use(middleware.Logger())
	s.e.Use(middleware.Recover())

	s.e.GET("/health", s.health)
	s.e.POST("/webhooks/stripe", s.stripe)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) Start(addr string) error {
	logging.Infof("Webhook server listening on %s", addr)
	err := s.e.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) stripe(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Failed to read body"})
	}

	event, err := s.verify(payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		logging.Warnf("Webhook: signature rejected: %v", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid signature"})
	}

	ctx := c.Request().Context()
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded,
		stripe.EventTypeCheckoutSessionExpired,
		stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
	default:
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid checkout session"})
	}
	result := resultFromSession(&cs)
	if result.PropertyID == "" {
		logging.Warnf("Webhook: session %s has no property id", cs.ID)
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		if cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
			err = s.proc.Pending(ctx, result)
		} else {
			err = s.proc.Completed(ctx, result)
		}
	case stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		err = s.proc.Completed(ctx, result)
	default:
		err = s.proc.Failed(ctx, result)
	}
	if err != nil {
		logging.Errorf("Webhook: %s for %s: %v", event.Type, result.PropertyID, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to apply event"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "processed"})
}

func resultFromSession(cs *stripe.CheckoutSession) CheckoutResult {
	propertyID := cs.Metadata[checkout.MetaPropertyID]
	if propertyID == "" {
		propertyID = cs.ClientReferenceID
	}
	return CheckoutResult{
		SessionID:    cs.ID,
		PropertyID:   propertyID,
		AmountTotal:  cs.AmountTotal,
		Currency:     string(cs.Currency),
		Enhancements: checkout.EnhancementTypes(cs.Metadata),
	}
}
