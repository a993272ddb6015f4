package store

import (
	"context"
	"time"

	"listingdesk/logging"
	"listingdesk/media"
	"listingdesk/models"
	"listingdesk/storage"
	"listingdesk/validate"
)

// PropertySlice holds the signed-in owner's properties, newest first.
type PropertySlice struct {
	c      *collection[models.Property]
	purger interface {
		PurgeProperty(ctx context.Context, propertyID string) error
	}
	// dropDependents clears the other slices once a delete is confirmed.
	dropDependents func(propertyID string)
}

func newPropertySlice(gw storage.Gateway, uploader *media.Uploader, emit func(Event)) *PropertySlice {
	s := &PropertySlice{c: &collection[models.Property]{
		name:     SliceProperties,
		table:    storage.CollectionProperties,
		idColumn: "id",
		tempIDs:  true,
		prepend:  true,
		omit:     []string{"created_at"},
		idOf:     func(p models.Property) string { return p.ID },
		setID:    func(p *models.Property, id string) { p.ID = id },
		gw:       gw,
		emit:     emit,
	}}
	if uploader != nil {
		s.purger = uploader
	}
	return s
}

// FetchForOwner replaces local state with the owner's properties.
func (s *PropertySlice) FetchForOwner(ctx context.Context, userID string) error {
	owned := func(models.Property) bool { return true }
	return s.c.fetch(ctx, storage.Filter{storage.Eq("user_id", userID)}, owned, storage.Desc("created_at"))
}

func (s *PropertySlice) All() []models.Property {
	return s.c.all()
}

func (s *PropertySlice) Get(id string) (models.Property, bool) {
	return s.c.get(id)
}

func (s *PropertySlice) SetAll(props []models.Property) {
	s.c.setAll(props)
}

func (s *PropertySlice) UpsertLocal(id string, patch storage.Record) bool {
	return s.c.upsertLocal(id, patch)
}

// Create adds a draft property for its owner.
func (s *PropertySlice) Create(ctx context.Context, p models.Property) *Op {
	var errs validate.Errors
	errs.Required("user_id", p.UserID)
	errs.Required("address", p.Address)
	if p.SaleType != "" {
		errs.OneOf("sale_type", p.SaleType, models.SaleTypePrivate, models.SaleTypeAuction, models.SaleTypeRent)
	}
	if err := errs.Err(); err != nil {
		return failedOp(err)
	}
	if p.Status == "" {
		p.Status = models.PropertyStatusDraft
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return s.c.create(ctx, p)
}

func (s *PropertySlice) Update(ctx context.Context, id string, patch storage.Record) *Op {
	var errs validate.Errors
	for _, field := range []string{"id", "user_id", "created_at"} {
		if _, ok := patch[field]; ok {
			errs.Add(field, "cannot be changed")
		}
	}
	if v, ok := patch["address"]; ok {
		addr, _ := v.(string)
		errs.Required("address", addr)
	}
	if err := errs.Err(); err != nil {
		return failedOp(err)
	}
	return s.c.update(ctx, id, patch)
}

// Remove deletes the property row, then clears its stored media.
func (s *PropertySlice) Remove(ctx context.Context, id string) *Op {
	return s.c.remove(ctx, id, func(ctx context.Context, p models.Property) {
		if s.dropDependents != nil {
			s.dropDependents(p.ID)
		}
		if s.purger == nil {
			return
		}
		if err := s.purger.PurgeProperty(ctx, p.ID); err != nil {
			logging.Warnf("Store: media cleanup for property %s: %v", p.ID, err)
		}
	})
}
