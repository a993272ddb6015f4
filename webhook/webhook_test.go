package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"listingdesk/models"
	"listingdesk/storage"
)

const testSecret = "whsec_test"

type memGateway struct {
	mu     sync.Mutex
	tables map[string][]storage.Record
}

func newMemGateway() *memGateway {
	return &memGateway{tables: map[string][]storage.Record{}}
}

func (g *memGateway) seed(collection string, rows ...storage.Record) {
	g.tables[collection] = append(g.tables[collection], rows...)
}

func (g *memGateway) rows(collection string, filter ...storage.Condition) []storage.Record {
	out, _ := g.Select(context.Background(), collection, filter)
	return out
}

func (g *memGateway) Insert(ctx context.Context, collection string, records ...storage.Record) ([]storage.Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range records {
		g.tables[collection] = append(g.tables[collection], storage.Merge(r, nil))
	}
	return records, nil
}

func (g *memGateway) Update(ctx context.Context, collection string, filter storage.Filter, patch storage.Record) ([]storage.Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []storage.Record
	for i, r := range g.tables[collection] {
		if matches(r, filter) {
			g.tables[collection][i] = storage.Merge(r, patch)
			out = append(out, g.tables[collection][i])
		}
	}
	return out, nil
}

func (g *memGateway) Delete(ctx context.Context, collection string, filter storage.Filter) error {
	return nil
}

func (g *memGateway) Select(ctx context.Context, collection string, filter storage.Filter, order ...storage.Order) ([]storage.Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []storage.Record
	for _, r := range g.tables[collection] {
		if matches(r, filter) {
			out = append(out, storage.Merge(r, nil))
		}
	}
	return out, nil
}

func matches(r storage.Record, filter storage.Filter) bool {
	for _, c := range filter {
		v := fmt.Sprint(r[c.Column])
		if c.Op == "in" {
			found := false
			for _, want := range c.Values {
				found = found || v == want
			}
			if !found {
				return false
			}
			continue
		}
		if v != fmt.Sprint(c.Value) {
			return false
		}
	}
	return true
}

func seedListing(gw *memGateway, publishOption string) {
	gw.seed(storage.CollectionProperties, storage.Record{"id": "p1", "status": models.PropertyStatusDraft})
	gw.seed(storage.CollectionDetails, storage.Record{
		"property_id":    "p1",
		"publish_option": publishOption,
		"payment_status": models.PaymentStatusUnpaid,
	})
	gw.seed(storage.CollectionEnhancements,
		storage.Record{"id": "e1", "property_id": "p1", "enhancement_type": "drone_photography", "price": 450.0, "status": models.EnhancementPending},
		storage.Record{"id": "e2", "property_id": "p1", "enhancement_type": "site_plan", "price": 80.0, "status": models.EnhancementPending},
	)
}

func checkoutEvent(t *testing.T, eventType, paymentStatus string) []byte {
	t.Helper()
	return sessionEvent(t, "cs_test_1", eventType, paymentStatus)
}

func sessionEvent(t *testing.T, sessionID, eventType, paymentStatus string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":     "evt_1",
		"object": "event",
		"type":   eventType,
		"data": map[string]any{
			"object": map[string]any{
				"id":                  sessionID,
				"object":              "checkout.session",
				"client_reference_id": "p1",
				"amount_total":        49500,
				"currency":            "aud",
				"payment_status":      paymentStatus,
				"metadata": map[string]string{
					"property_id":  "p1",
					"enhancements": "drone_photography",
				},
			},
		},
	})
	require.NoError(t, err)
	return body
}

func sign(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func post(t *testing.T, srv *Server, payload []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(string(payload)))
	req.Header.Set("Stripe-Signature", signature)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func newTestServer(gw *memGateway) *Server {
	return NewServer(StripeVerifier(testSecret), NewProcessor(gw))
}

func TestHealth(t *testing.T) {
	srv := newTestServer(newMemGateway())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestCheckoutCompleted(t *testing.T) {
	gw := newMemGateway()
	seedListing(gw, models.PublishImmediate)
	srv := newTestServer(gw)

	payload := checkoutEvent(t, "checkout.session.completed", "paid")
	rec := post(t, srv, payload, sign(payload, testSecret))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	details := gw.rows(storage.CollectionDetails)
	assert.Equal(t, models.PaymentStatusCompleted, details[0]["payment_status"])

	e1 := gw.rows(storage.CollectionEnhancements, storage.Eq("id", "e1"))
	e2 := gw.rows(storage.CollectionEnhancements, storage.Eq("id", "e2"))
	assert.Equal(t, models.EnhancementPurchased, e1[0]["status"])
	assert.Equal(t, models.EnhancementPending, e2[0]["status"], "enhancements not in the session stay pending")

	props := gw.rows(storage.CollectionProperties)
	assert.Equal(t, models.PropertyStatusPublished, props[0]["status"])

	logs := gw.rows(storage.CollectionPaymentLogs)
	require.Len(t, logs, 1)
	assert.Equal(t, "cs_test_1", logs[0]["session_id"])
	assert.EqualValues(t, 49500, logs[0]["amount"])
	assert.Equal(t, "aud", logs[0]["currency"])

	// Redelivery is a no-op.
	rec = post(t, srv, payload, sign(payload, testSecret))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, gw.rows(storage.CollectionPaymentLogs), 1)
}

func TestCheckoutCompletedScheduledStaysUnpublished(t *testing.T) {
	gw := newMemGateway()
	seedListing(gw, models.PublishScheduled)
	srv := newTestServer(gw)

	payload := checkoutEvent(t, "checkout.session.completed", "paid")
	rec := post(t, srv, payload, sign(payload, testSecret))
	require.Equal(t, http.StatusOK, rec.Code)

	props := gw.rows(storage.CollectionProperties)
	assert.Equal(t, models.PropertyStatusDraft, props[0]["status"])
}

func TestCheckoutCompletedUnpaid(t *testing.T) {
	gw := newMemGateway()
	seedListing(gw, models.PublishImmediate)
	srv := newTestServer(gw)

	payload := checkoutEvent(t, "checkout.session.completed", "unpaid")
	rec := post(t, srv, payload, sign(payload, testSecret))
	require.Equal(t, http.StatusOK, rec.Code)

	details := gw.rows(storage.CollectionDetails)
	assert.Equal(t, models.PaymentStatusPending, details[0]["payment_status"])
	assert.Empty(t, gw.rows(storage.CollectionPaymentLogs))
}

func TestCheckoutExpired(t *testing.T) {
	gw := newMemGateway()
	seedListing(gw, models.PublishImmediate)
	srv := newTestServer(gw)

	payload := checkoutEvent(t, "checkout.session.expired", "unpaid")
	rec := post(t, srv, payload, sign(payload, testSecret))
	require.Equal(t, http.StatusOK, rec.Code)

	details := gw.rows(storage.CollectionDetails)
	assert.Equal(t, models.PaymentStatusFailed, details[0]["payment_status"])
	for _, e := range gw.rows(storage.CollectionEnhancements) {
		assert.Equal(t, models.EnhancementPending, e["status"])
	}
	logs := gw.rows(storage.CollectionPaymentLogs)
	require.Len(t, logs, 1)
	assert.Equal(t, models.PaymentStatusFailed, logs[0]["status"])

	props := gw.rows(storage.CollectionProperties)
	assert.Equal(t, models.PropertyStatusDraft, props[0]["status"])
}

func TestRejectsBadSignature(t *testing.T) {
	gw := newMemGateway()
	seedListing(gw, models.PublishImmediate)
	srv := newTestServer(gw)

	payload := checkoutEvent(t, "checkout.session.completed", "paid")
	rec := post(t, srv, payload, sign(payload, "whsec_other"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	details := gw.rows(storage.CollectionDetails)
	assert.Equal(t, models.PaymentStatusUnpaid, details[0]["payment_status"])
}

func TestIgnoresOtherEvents(t *testing.T) {
	srv := newTestServer(newMemGateway())
	payload := checkoutEvent(t, "customer.created", "paid")
	rec := post(t, srv, payload, sign(payload, testSecret))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ignored")
}

func TestMissingDetailsIsRetried(t *testing.T) {
	srv := newTestServer(newMemGateway())
	payload := checkoutEvent(t, "checkout.session.completed", "paid")
	rec := post(t, srv, payload, sign(payload, testSecret))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestLaterSessionFailureKeepsPaidStatus(t *testing.T) {
	gw := newMemGateway()
	seedListing(gw, models.PublishImmediate)
	srv := newTestServer(gw)

	paid := sessionEvent(t, "cs_paid", "checkout.session.completed", "paid")
	require.Equal(t, http.StatusOK, post(t, srv, paid, sign(paid, testSecret)).Code)

	expired := sessionEvent(t, "cs_abandoned", "checkout.session.expired", "unpaid")
	require.Equal(t, http.StatusOK, post(t, srv, expired, sign(expired, testSecret)).Code)

	unpaid := sessionEvent(t, "cs_other", "checkout.session.completed", "unpaid")
	require.Equal(t, http.StatusOK, post(t, srv, unpaid, sign(unpaid, testSecret)).Code)

	details := gw.rows(storage.CollectionDetails)
	assert.Equal(t, models.PaymentStatusCompleted, details[0]["payment_status"])
	props := gw.rows(storage.CollectionProperties)
	assert.Equal(t, models.PropertyStatusPublished, props[0]["status"])

	failed := gw.rows(storage.CollectionPaymentLogs, storage.Eq("status", models.PaymentStatusFailed))
	require.Len(t, failed, 1, "the failed session is still recorded")
	assert.Equal(t, "cs_abandoned", failed[0]["session_id"])
}

func TestFailedRedeliveryLogsOnce(t *testing.T) {
	gw := newMemGateway()
	seedListing(gw, models.PublishImmediate)
	srv := newTestServer(gw)

	payload := checkoutEvent(t, "checkout.session.async_payment_failed", "unpaid")
	for i := 0; i < 3; i++ {
		rec := post(t, srv, payload, sign(payload, testSecret))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Len(t, gw.rows(storage.CollectionPaymentLogs), 1)
	details := gw.rows(storage.CollectionDetails)
	assert.Equal(t, models.PaymentStatusFailed, details[0]["payment_status"])
}

func TestProcessorPendingAfterCompleted(t *testing.T) {
	gw := newMemGateway()
	seedListing(gw, models.PublishScheduled)
	proc := NewProcessor(gw)
	ctx := context.Background()

	require.NoError(t, proc.Completed(ctx, CheckoutResult{SessionID: "cs_a", PropertyID: "p1", AmountTotal: 100, Currency: "aud"}))
	require.NoError(t, proc.Pending(ctx, CheckoutResult{SessionID: "cs_b", PropertyID: "p1"}))

	details := gw.rows(storage.CollectionDetails)
	assert.Equal(t, models.PaymentStatusCompleted, details[0]["payment_status"])
}
