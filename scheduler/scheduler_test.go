package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"listingdesk/models"
	"listingdesk/storage"
)

type memGateway struct {
	tables map[string][]storage.Record
}

func (g *memGateway) Insert(ctx context.Context, collection string, records ...storage.Record) ([]storage.Record, error) {
	g.tables[collection] = append(g.tables[collection], records...)
	return records, nil
}

func (g *memGateway) Update(ctx context.Context, collection string, filter storage.Filter, patch storage.Record) ([]storage.Record, error) {
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
	var out []storage.Record
	for _, r := range g.tables[collection] {
		if matches(r, filter) {
			out = append(out, r)
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

func at(s string) *time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return &t
}

func TestDue(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	details := []models.PropertyDetail{
		{PropertyID: "past", PublishOption: models.PublishScheduled, PaymentStatus: models.PaymentStatusCompleted, PublishDate: at("2025-03-01T09:00:00Z")},
		{PropertyID: "exact", PublishOption: models.PublishScheduled, PaymentStatus: models.PaymentStatusCompleted, PublishDate: at("2025-03-01T12:00:00Z")},
		{PropertyID: "future", PublishOption: models.PublishScheduled, PaymentStatus: models.PaymentStatusCompleted, PublishDate: at("2025-03-02T00:00:00Z")},
		{PropertyID: "unpaid", PublishOption: models.PublishScheduled, PaymentStatus: models.PaymentStatusPending, PublishDate: at("2025-02-01T00:00:00Z")},
		{PropertyID: "nodate", PublishOption: models.PublishScheduled, PaymentStatus: models.PaymentStatusCompleted},
		{PropertyID: "immediate", PublishOption: models.PublishImmediate, PaymentStatus: models.PaymentStatusCompleted, PublishDate: at("2025-02-01T00:00:00Z")},
	}
	assert.Equal(t, []string{"past", "exact"}, Due(details, now))
}

func TestSweep(t *testing.T) {
	gw := &memGateway{tables: map[string][]storage.Record{
		storage.CollectionDetails: {
			{"property_id": "p1", "publish_option": "scheduled", "payment_status": "completed", "publish_date": "2025-03-01T09:00:00Z"},
			{"property_id": "p2", "publish_option": "scheduled", "payment_status": "completed", "publish_date": "2025-04-01T09:00:00Z"},
			{"property_id": "p3", "publish_option": "scheduled", "payment_status": "completed", "publish_date": "2025-02-01T09:00:00Z"},
		},
		storage.CollectionProperties: {
			{"id": "p1", "status": models.PropertyStatusDraft},
			{"id": "p2", "status": models.PropertyStatusDraft},
			{"id": "p3", "status": models.PropertyStatusArchived},
		},
	}}
	s := New(gw, "")
	s.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	status := map[string]any{}
	for _, r := range gw.tables[storage.CollectionProperties] {
		status[r["id"].(string)] = r["status"]
	}
	assert.Equal(t, models.PropertyStatusPublished, status["p1"])
	assert.Equal(t, models.PropertyStatusDraft, status["p2"])
	assert.Equal(t, models.PropertyStatusArchived, status["p3"], "archived listings are never republished")

	n, err = s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestInvalidCron(t *testing.T) {
	s := New(&memGateway{tables: map[string][]storage.Record{}}, "not a cron")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.Error(t, s.Start(ctx))
}
