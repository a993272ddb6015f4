package store

import (
	"context"
	"fmt"
	"slices"

	"listingdesk/logging"
	"listingdesk/media"
	"listingdesk/models"
	"listingdesk/storage"
	"listingdesk/validate"
)

// DetailSlice holds property_details rows keyed by property id.
type DetailSlice struct {
	c        *collection[models.PropertyDetail]
	uploader *media.Uploader
}

func newDetailSlice(gw storage.Gateway, uploader *media.Uploader, emit func(Event)) *DetailSlice {
	return &DetailSlice{
		c: &collection[models.PropertyDetail]{
			name:     SliceDetails,
			table:    storage.CollectionDetails,
			idColumn: "property_id",
			omit:     []string{"payment_status"},
			idOf:     func(d models.PropertyDetail) string { return d.PropertyID },
			gw:       gw,
			emit:     emit,
		},
		uploader: uploader,
	}
}

func (s *DetailSlice) Fetch(ctx context.Context, propertyID string) (*models.PropertyDetail, error) {
	scope := func(d models.PropertyDetail) bool { return d.PropertyID == propertyID }
	if err := s.c.fetch(ctx, storage.Filter{storage.Eq("property_id", propertyID)}, scope); err != nil {
		return nil, err
	}
	d, ok := s.c.get(propertyID)
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (s *DetailSlice) Get(propertyID string) (models.PropertyDetail, bool) {
	return s.c.get(propertyID)
}

func (s *DetailSlice) SetAll(details []models.PropertyDetail) {
	s.c.setAll(details)
}

func (s *DetailSlice) UpsertLocal(propertyID string, patch storage.Record) bool {
	return s.c.upsertLocal(propertyID, patch)
}

// Create inserts the detail row for a property. Payment status is left to
// the backing store default; the main image follows the image list.
func (s *DetailSlice) Create(ctx context.Context, d models.PropertyDetail) *Op {
	var errs validate.Errors
	errs.Required("property_id", d.PropertyID)
	checkDetail(&errs, d)
	if err := errs.Err(); err != nil {
		return failedOp(err)
	}
	d.PaymentStatus = ""
	d.MainImage = d.Main()
	if d.Images == nil {
		d.Images = []models.ImageRecord{}
	}
	if d.FloorPlans == nil {
		d.FloorPlans = []models.ImageRecord{}
	}
	return s.c.create(ctx, d)
}

// Update patches detail fields. payment_status belongs to the payment
// webhook and main_image is derived from images; both are refused.
func (s *DetailSlice) Update(ctx context.Context, propertyID string, patch storage.Record) *Op {
	for _, field := range []string{"payment_status", "main_image", "property_id"} {
		if _, ok := patch[field]; ok {
			return failedOp(fmt.Errorf("%s: %w", field, ErrReadOnlyField))
		}
	}

	return s.c.modify(ctx, propertyID, func(cur models.PropertyDetail) (storage.Record, error) {
		next, err := merge(cur, patch)
		if err != nil {
			return nil, fmt.Errorf("patch details %s: %w", propertyID, err)
		}
		var errs validate.Errors
		checkDetail(&errs, next)
		if err := errs.Err(); err != nil {
			return nil, err
		}
		if _, ok := patch["images"]; ok {
			return storage.Merge(patch, imagesPatch(next.Images)), nil
		}
		return patch, nil
	})
}

func checkDetail(errs *validate.Errors, d models.PropertyDetail) {
	if d.ContactEmail != "" {
		errs.Email("contact_email", d.ContactEmail)
	}
	errs.Phone("contact_phone", d.ContactPhone)
	if d.PublishOption != "" {
		errs.OneOf("publish_option", d.PublishOption, models.PublishImmediate, models.PublishScheduled)
	}
	if d.PublishOption == models.PublishScheduled && d.PublishDate == nil {
		errs.Add("publish_date", "is required for scheduled publishing")
	}
	if d.Price != nil && *d.Price < 0 {
		errs.Add("price", "cannot be negative")
	}
}

// imagesPatch writes the image list and its head together.
func imagesPatch(images []models.ImageRecord) storage.Record {
	if images == nil {
		images = []models.ImageRecord{}
	}
	main := ""
	if len(images) > 0 {
		main = images[0].URL
	}
	return storage.Record{"images": images, "main_image": main}
}

// ReorderImages sets a new image order. The list and main image change in
// one local transition.
func (s *DetailSlice) ReorderImages(ctx context.Context, propertyID string, urls []string) *Op {
	return s.c.modify(ctx, propertyID, func(cur models.PropertyDetail) (storage.Record, error) {
		have := models.ImageURLs(cur.Images)
		want := slices.Clone(urls)
		slices.Sort(have)
		slices.Sort(want)
		if !slices.Equal(have, want) {
			return nil, ErrInvalidOrder
		}
		images := make([]models.ImageRecord, len(urls))
		for i, u := range urls {
			images[i] = models.ImageRecord{URL: u}
		}
		return imagesPatch(images), nil
	})
}

// AddImages uploads photos and appends them to the image list.
func (s *DetailSlice) AddImages(ctx context.Context, propertyID string, files []media.File) *Op {
	return s.addMedia(ctx, propertyID, storage.BucketPropertyImages, files)
}

// AddFloorPlans uploads floor plans and appends them.
func (s *DetailSlice) AddFloorPlans(ctx context.Context, propertyID string, files []media.File) *Op {
	return s.addMedia(ctx, propertyID, storage.BucketFloorPlans, files)
}

func (s *DetailSlice) addMedia(ctx context.Context, propertyID, bucket string, files []media.File) *Op {
	if s.uploader == nil {
		return failedOp(fmt.Errorf("add media: no object store configured"))
	}
	if _, ok := s.c.get(propertyID); !ok {
		return failedOp(fmt.Errorf("%s %s: %w", SliceDetails, propertyID, ErrNotFound))
	}

	op := newOp(propertyID)
	go func() {
		uploaded, err := s.uploader.UploadAll(ctx, bucket, propertyID, files)
		if err != nil {
			op.finish(propertyID, err)
			return
		}
		added := make([]models.ImageRecord, len(uploaded))
		for i, u := range uploaded {
			added[i] = models.ImageRecord{URL: u.URL}
		}

		inner := s.c.modify(ctx, propertyID, func(cur models.PropertyDetail) (storage.Record, error) {
			if bucket == storage.BucketFloorPlans {
				return storage.Record{"floor_plans": append(slices.Clone(cur.FloorPlans), added...)}, nil
			}
			return imagesPatch(append(slices.Clone(cur.Images), added...)), nil
		})
		if err := inner.Wait(); err != nil {
			urls := models.ImageURLs(added)
			if derr := s.uploader.Delete(ctx, bucket, urls...); derr != nil {
				logging.Warnf("Store: discard uploads for %s: %v", propertyID, derr)
			}
			op.finish(propertyID, err)
			return
		}
		op.finish(propertyID, nil)
	}()
	return op
}

// RemoveImage drops one photo from the list and then deletes the object.
func (s *DetailSlice) RemoveImage(ctx context.Context, propertyID, url string) *Op {
	return s.removeMedia(ctx, propertyID, storage.BucketPropertyImages, url)
}

func (s *DetailSlice) RemoveFloorPlan(ctx context.Context, propertyID, url string) *Op {
	return s.removeMedia(ctx, propertyID, storage.BucketFloorPlans, url)
}

func (s *DetailSlice) removeMedia(ctx context.Context, propertyID, bucket, url string) *Op {
	inner := s.c.modify(ctx, propertyID, func(cur models.PropertyDetail) (storage.Record, error) {
		list := cur.Images
		if bucket == storage.BucketFloorPlans {
			list = cur.FloorPlans
		}
		kept := make([]models.ImageRecord, 0, len(list))
		for _, img := range list {
			if img.URL != url {
				kept = append(kept, img)
			}
		}
		if len(kept) == len(list) {
			return nil, fmt.Errorf("%s: %w", url, ErrNotFound)
		}
		if bucket == storage.BucketFloorPlans {
			return storage.Record{"floor_plans": kept}, nil
		}
		return imagesPatch(kept), nil
	})
	if s.uploader == nil {
		return inner
	}

	op := newOp(propertyID)
	go func() {
		if err := inner.Wait(); err != nil {
			op.finish(propertyID, err)
			return
		}
		if err := s.uploader.Delete(ctx, bucket, url); err != nil {
			logging.Warnf("Store: delete object %s: %v", url, err)
		}
		op.finish(propertyID, nil)
	}()
	return op
}
