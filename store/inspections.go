package store

import (
	"context"

	"listingdesk/models"
	"listingdesk/storage"
	"listingdesk/validate"
)

// InspectionSlice holds inspection times ordered by date then start time.
type InspectionSlice struct {
	c *collection[models.PropertyInspection]
}

func newInspectionSlice(gw storage.Gateway, emit func(Event)) *InspectionSlice {
	return &InspectionSlice{c: &collection[models.PropertyInspection]{
		name:     SliceInspections,
		table:    storage.CollectionInspections,
		idColumn: "id",
		tempIDs:  true,
		less:     InspectionLess,
		tidy:     trimSeconds,
		idOf:     func(i models.PropertyInspection) string { return i.ID },
		setID:    func(i *models.PropertyInspection, id string) { i.ID = id },
		gw:       gw,
		emit:     emit,
	}}
}

// InspectionLess orders by (inspection_date, start_time). Both are fixed
// width, so string order is chronological.
func InspectionLess(a, b models.PropertyInspection) bool {
	if a.InspectionDate != b.InspectionDate {
		return a.InspectionDate < b.InspectionDate
	}
	return a.StartTime < b.StartTime
}

// trimSeconds turns backing store times (HH:MM:SS) into HH:MM.
func trimSeconds(in *models.PropertyInspection) {
	if len(in.StartTime) > 5 {
		in.StartTime = in.StartTime[:5]
	}
	if len(in.EndTime) > 5 {
		in.EndTime = in.EndTime[:5]
	}
}

func ValidateInspection(in models.PropertyInspection) error {
	var errs validate.Errors
	errs.Required("property_id", in.PropertyID)
	errs.Date("inspection_date", in.InspectionDate)
	startOK := errs.Clock("start_time", in.StartTime)
	endOK := errs.Clock("end_time", in.EndTime)
	if startOK && endOK && in.EndTime <= in.StartTime {
		errs.Add("end_time", "must be after start time")
	}
	errs.OneOf("inspection_type", in.InspectionType, models.InspectionOpenHouse, models.InspectionPrivate)
	return errs.Err()
}

func (s *InspectionSlice) Fetch(ctx context.Context, propertyID string) error {
	scope := func(i models.PropertyInspection) bool { return i.PropertyID == propertyID }
	return s.c.fetch(ctx, storage.Filter{storage.Eq("property_id", propertyID)}, scope,
		storage.Asc("inspection_date"), storage.Asc("start_time"))
}

func (s *InspectionSlice) ForProperty(propertyID string) []models.PropertyInspection {
	return s.c.where(func(i models.PropertyInspection) bool { return i.PropertyID == propertyID })
}

func (s *InspectionSlice) SetAll(items []models.PropertyInspection) {
	s.c.setAll(items)
}

func (s *InspectionSlice) UpsertLocal(id string, patch storage.Record) bool {
	return s.c.upsertLocal(id, patch)
}

func (s *InspectionSlice) Create(ctx context.Context, in models.PropertyInspection) *Op {
	if err := ValidateInspection(in); err != nil {
		return failedOp(err)
	}
	return s.c.create(ctx, in)
}

// Update validates the merged inspection before applying the patch.
func (s *InspectionSlice) Update(ctx context.Context, id string, patch storage.Record) *Op {
	return s.c.modify(ctx, id, func(cur models.PropertyInspection) (storage.Record, error) {
		next, err := merge(cur, patch)
		if err != nil {
			return nil, err
		}
		if err := ValidateInspection(next); err != nil {
			return nil, err
		}
		return patch, nil
	})
}

func (s *InspectionSlice) Remove(ctx context.Context, id string) *Op {
	return s.c.remove(ctx, id, nil)
}
