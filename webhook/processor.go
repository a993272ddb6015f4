package webhook

import (
	"context"
	"fmt"
	"slices"
	"time"

	"listingdesk/logging"
	"listingdesk/models"
	"listingdesk/storage"
)

// CheckoutResult is the part of a payment provider event the processor
// acts on.
type CheckoutResult struct {
	SessionID    string
	PropertyID   string
	AmountTotal  int64
	Currency     string
	Enhancements []string
}

// Processor applies payment outcomes. It is the only writer of
// property_details.payment_status.
type Processor struct {
	gw  storage.Gateway
	now func() time.Time
}

func NewProcessor(gw storage.Gateway) *Processor {
	return &Processor{gw: gw, now: time.Now}
}

// Completed marks the property paid, moves the paid-for pending
// enhancements to purchased, logs the payment and publishes immediate
// listings. Replays of the same session are ignored.
func (p *Processor) Completed(ctx context.Context, r CheckoutResult) error {
	seen, err := p.alreadyLogged(ctx, r.SessionID, models.PaymentStatusCompleted)
	if err != nil {
		return err
	}
	if seen {
		logging.Infof("Webhook: session %s already processed", r.SessionID)
		return nil
	}

	if err := p.setPaymentStatus(ctx, r.PropertyID, models.PaymentStatusCompleted); err != nil {
		return err
	}
	purchased, err := p.purchaseEnhancements(ctx, r)
	if err != nil {
		return err
	}
	if err := p.logPayment(ctx, r, models.PaymentStatusCompleted); err != nil {
		return err
	}
	published, err := p.publishIfImmediate(ctx, r.PropertyID)
	if err != nil {
		return err
	}

	logging.Infof("Webhook: property %s paid (%d cents %s), %d enhancements purchased, published=%v",
		r.PropertyID, r.AmountTotal, r.Currency, purchased, published)
	return nil
}

// Pending records a checkout that completed without settled funds. A paid
// property stays paid.
func (p *Processor) Pending(ctx context.Context, r CheckoutResult) error {
	paid, err := p.paid(ctx, r.PropertyID)
	if err != nil {
		return err
	}
	if paid {
		logging.Infof("Webhook: property %s already paid, ignoring pending session %s", r.PropertyID, r.SessionID)
		return nil
	}
	return p.setPaymentStatus(ctx, r.PropertyID, models.PaymentStatusPending)
}

// Failed records an expired or failed checkout. Enhancements stay pending so
// the owner can retry checkout with the same selection. Completed is
// terminal: a stale session failing after another one paid is only logged.
func (p *Processor) Failed(ctx context.Context, r CheckoutResult) error {
	seen, err := p.alreadyLogged(ctx, r.SessionID, models.PaymentStatusFailed)
	if err != nil {
		return err
	}
	if seen {
		logging.Infof("Webhook: session %s failure already recorded", r.SessionID)
		return nil
	}

	paid, err := p.paid(ctx, r.PropertyID)
	if err != nil {
		return err
	}
	if !paid {
		if err := p.setPaymentStatus(ctx, r.PropertyID, models.PaymentStatusFailed); err != nil {
			return err
		}
	}
	if err := p.logPayment(ctx, r, models.PaymentStatusFailed); err != nil {
		return err
	}
	if paid {
		logging.Warnf("Webhook: property %s already paid, checkout %s failed without effect", r.PropertyID, r.SessionID)
		return nil
	}
	logging.Infof("Webhook: property %s checkout %s failed", r.PropertyID, r.SessionID)
	return nil
}

// paid reports whether the property's payment already completed. Missing
// details are an error so the provider retries the delivery.
func (p *Processor) paid(ctx context.Context, propertyID string) (bool, error) {
	rows, err := p.gw.Select(ctx, storage.CollectionDetails, storage.Filter{storage.Eq("property_id", propertyID)})
	if err != nil {
		return false, fmt.Errorf("load payment status %s: %w", propertyID, err)
	}
	if len(rows) == 0 {
		return false, fmt.Errorf("set payment status: property %s has no details", propertyID)
	}
	status, _ := rows[0]["payment_status"].(string)
	return status == models.PaymentStatusCompleted, nil
}

func (p *Processor) alreadyLogged(ctx context.Context, sessionID, status string) (bool, error) {
	rows, err := p.gw.Select(ctx, storage.CollectionPaymentLogs, storage.Filter{
		storage.Eq("session_id", sessionID),
		storage.Eq("status", status),
	})
	if err != nil {
		return false, fmt.Errorf("check payment log: %w", err)
	}
	return len(rows) > 0, nil
}

func (p *Processor) setPaymentStatus(ctx context.Context, propertyID, status string) error {
	rows, err := p.gw.Update(ctx, storage.CollectionDetails,
		storage.Filter{storage.Eq("property_id", propertyID)},
		storage.Record{"payment_status": status})
	if err != nil {
		return fmt.Errorf("set payment status %s: %w", propertyID, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("set payment status: property %s has no details", propertyID)
	}
	return nil
}

func (p *Processor) purchaseEnhancements(ctx context.Context, r CheckoutResult) (int, error) {
	rows, err := p.gw.Select(ctx, storage.CollectionEnhancements, storage.Filter{
		storage.Eq("property_id", r.PropertyID),
		storage.Eq("status", models.EnhancementPending),
	})
	if err != nil {
		return 0, fmt.Errorf("load enhancements: %w", err)
	}
	pending, err := storage.DecodeAll[models.PropertyEnhancement](rows)
	if err != nil {
		return 0, err
	}

	var ids []string
	for i := range pending {
		e := &pending[i]
		if len(r.Enhancements) > 0 && !slices.Contains(r.Enhancements, e.EnhancementType) {
			continue
		}
		if err := models.Advance(e, models.EnhancementPurchased); err != nil {
			return 0, err
		}
		ids = append(ids, e.ID)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	_, err = p.gw.Update(ctx, storage.CollectionEnhancements,
		storage.Filter{storage.In("id", ids...), storage.Eq("status", models.EnhancementPending)},
		storage.Record{"status": models.EnhancementPurchased})
	if err != nil {
		return 0, fmt.Errorf("purchase enhancements: %w", err)
	}
	return len(ids), nil
}

func (p *Processor) logPayment(ctx context.Context, r CheckoutResult, status string) error {
	entry := models.PaymentLog{
		PropertyID: r.PropertyID,
		SessionID:  r.SessionID,
		Amount:     r.AmountTotal,
		Currency:   r.Currency,
		Status:     status,
		CreatedAt:  p.now().UTC(),
	}
	rec, err := storage.Encode(entry)
	if err != nil {
		return err
	}
	if _, err := p.gw.Insert(ctx, storage.CollectionPaymentLogs, rec); err != nil {
		return fmt.Errorf("insert payment log: %w", err)
	}
	return nil
}

func (p *Processor) publishIfImmediate(ctx context.Context, propertyID string) (bool, error) {
	rows, err := p.gw.Select(ctx, storage.CollectionDetails, storage.Filter{storage.Eq("property_id", propertyID)})
	if err != nil {
		return false, fmt.Errorf("load details: %w", err)
	}
	if len(rows) == 0 {
		return false, nil
	}
	option, _ := rows[0]["publish_option"].(string)
	if option != models.PublishImmediate {
		return false, nil
	}
	_, err = p.gw.Update(ctx, storage.CollectionProperties,
		storage.Filter{storage.Eq("id", propertyID)},
		storage.Record{"status": models.PropertyStatusPublished})
	if err != nil {
		return false, fmt.Errorf("publish %s: %w", propertyID, err)
	}
	return true, nil
}
