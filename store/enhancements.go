package store

import (
	"context"
	"fmt"

	"listingdesk/catalog"
	"listingdesk/models"
	"listingdesk/storage"
)

// EnhancementSlice holds the add-ons chosen per property. The client only
// adds and removes pending rows; status moves forward on payment.
type EnhancementSlice struct {
	c *collection[models.PropertyEnhancement]
}

func newEnhancementSlice(gw storage.Gateway, emit func(Event)) *EnhancementSlice {
	return &EnhancementSlice{c: &collection[models.PropertyEnhancement]{
		name:     SliceEnhancements,
		table:    storage.CollectionEnhancements,
		idColumn: "id",
		tempIDs:  true,
		idOf:     func(e models.PropertyEnhancement) string { return e.ID },
		setID:    func(e *models.PropertyEnhancement, id string) { e.ID = id },
		gw:       gw,
		emit:     emit,
	}}
}

func (s *EnhancementSlice) Fetch(ctx context.Context, propertyID string) error {
	scope := func(e models.PropertyEnhancement) bool { return e.PropertyID == propertyID }
	return s.c.fetch(ctx, storage.Filter{storage.Eq("property_id", propertyID)}, scope)
}

func (s *EnhancementSlice) ForProperty(propertyID string) []models.PropertyEnhancement {
	return s.c.where(func(e models.PropertyEnhancement) bool { return e.PropertyID == propertyID })
}

// Selected returns the pending enhancements that go into the next checkout.
func (s *EnhancementSlice) Selected(propertyID string) []models.PropertyEnhancement {
	return s.c.where(func(e models.PropertyEnhancement) bool {
		return e.PropertyID == propertyID && e.Status == models.EnhancementPending
	})
}

// Selections converts the pending enhancements into catalog selections.
func (s *EnhancementSlice) Selections(propertyID string) []catalog.Selection {
	selected := s.Selected(propertyID)
	out := make([]catalog.Selection, len(selected))
	for i, e := range selected {
		out[i] = catalog.Selection{Type: e.EnhancementType, Quantity: 1}
	}
	return out
}

func (s *EnhancementSlice) SetAll(items []models.PropertyEnhancement) {
	s.c.setAll(items)
}

func (s *EnhancementSlice) UpsertLocal(id string, patch storage.Record) bool {
	return s.c.upsertLocal(id, patch)
}

// Add selects an enhancement priced from the catalog. Each type can be
// selected once per property.
func (s *EnhancementSlice) Add(ctx context.Context, propertyID, enhancementType string) *Op {
	e, ok := catalog.LookupEnhancement(enhancementType)
	if !ok {
		return failedOp(fmt.Errorf("%w: %s", catalog.ErrUnknownEnhancement, enhancementType))
	}
	for _, cur := range s.ForProperty(propertyID) {
		if cur.EnhancementType == enhancementType {
			return failedOp(fmt.Errorf("%s %s: %w", SliceEnhancements, enhancementType, ErrExists))
		}
	}
	return s.c.create(ctx, models.PropertyEnhancement{
		PropertyID:      propertyID,
		EnhancementType: e.Key,
		Price:           e.Price.Dollars(),
		Status:          models.EnhancementPending,
	})
}

// Remove deselects a pending enhancement.
func (s *EnhancementSlice) Remove(ctx context.Context, id string) *Op {
	cur, ok := s.c.get(id)
	if !ok {
		return failedOp(fmt.Errorf("%s %s: %w", SliceEnhancements, id, ErrNotFound))
	}
	if cur.Status != models.EnhancementPending {
		return failedOp(fmt.Errorf("%s %s (%s): %w", SliceEnhancements, id, cur.Status, ErrNotRemovable))
	}
	return s.c.remove(ctx, id, nil)
}
