package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"listingdesk/logging"
	"listingdesk/models"
	"listingdesk/storage"
)

var ErrStillPending = errors.New("payment not confirmed yet")

// Poller reads payment_status after the browser returns from checkout. It
// only reads; the webhook is the sole writer.
type Poller struct {
	gw       storage.Gateway
	Initial  time.Duration
	Max      time.Duration
	Attempts int
}

func NewPoller(gw storage.Gateway) *Poller {
	return &Poller{
		gw:       gw,
		Initial:  500 * time.Millisecond,
		Max:      8 * time.Second,
		Attempts: 10,
	}
}

// Status returns the current payment status of a property.
func (p *Poller) Status(ctx context.Context, propertyID string) (string, error) {
	rows, err := p.gw.Select(ctx, storage.CollectionDetails, storage.Filter{storage.Eq("property_id", propertyID)})
	if err != nil {
		return "", fmt.Errorf("read payment status: %w", err)
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("property %s has no details", propertyID)
	}
	status, _ := rows[0]["payment_status"].(string)
	if status == "" {
		status = models.PaymentStatusUnpaid
	}
	return status, nil
}

// Wait polls with exponential backoff until the status is final. Returns
// ErrStillPending with the last seen status when attempts run out.
func (p *Poller) Wait(ctx context.Context, propertyID string) (string, error) {
	delay := p.Initial
	var last string
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		status, err := p.Status(ctx, propertyID)
		if err != nil {
			return "", err
		}
		last = status
		if status == models.PaymentStatusCompleted || status == models.PaymentStatusFailed {
			return status, nil
		}
		logging.Debugf("Checkout: %s payment %s (attempt %d/%d)", propertyID, status, attempt, p.Attempts)

		if attempt == p.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > p.Max {
			delay = p.Max
		}
	}
	return last, ErrStillPending
}
