package store

import (
	"context"

	"listingdesk/models"
	"listingdesk/storage"
	"listingdesk/validate"
)

// ProfileSlice holds profiles keyed by auth user id. In practice only the
// signed-in user's profile is loaded.
type ProfileSlice struct {
	c *collection[models.Profile]
}

func newProfileSlice(gw storage.Gateway, emit func(Event)) *ProfileSlice {
	return &ProfileSlice{c: &collection[models.Profile]{
		name:     SliceProfile,
		table:    storage.CollectionProfiles,
		idColumn: "id",
		idOf:     func(p models.Profile) string { return p.ID },
		gw:       gw,
		emit:     emit,
	}}
}

// Fetch loads the profile for userID. Returns nil, nil when none exists.
func (s *ProfileSlice) Fetch(ctx context.Context, userID string) (*models.Profile, error) {
	byID := func(p models.Profile) bool { return p.ID == userID }
	if err := s.c.fetch(ctx, storage.Filter{storage.Eq("id", userID)}, byID); err != nil {
		return nil, err
	}
	p, ok := s.c.get(userID)
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *ProfileSlice) Get(userID string) (models.Profile, bool) {
	return s.c.get(userID)
}

func (s *ProfileSlice) SetAll(profiles []models.Profile) {
	s.c.setAll(profiles)
}

func (s *ProfileSlice) UpsertLocal(userID string, patch storage.Record) bool {
	return s.c.upsertLocal(userID, patch)
}

// Create inserts the profile row paired with a new auth user. The id is the
// auth user id, so no temporary id is used.
func (s *ProfileSlice) Create(ctx context.Context, p models.Profile) *Op {
	var errs validate.Errors
	errs.Required("id", p.ID)
	errs.Required("first_name", p.FirstName)
	errs.Required("last_name", p.LastName)
	errs.Email("email", p.Email)
	if err := errs.Err(); err != nil {
		return failedOp(err)
	}
	return s.c.create(ctx, p)
}

// Update patches profile fields. Email and names are validated when present.
func (s *ProfileSlice) Update(ctx context.Context, userID string, patch storage.Record) *Op {
	var errs validate.Errors
	for _, field := range []string{"first_name", "last_name"} {
		if v, ok := patch[field]; ok {
			name, _ := v.(string)
			errs.Required(field, name)
		}
	}
	if v, ok := patch["email"]; ok {
		email, _ := v.(string)
		errs.Email("email", email)
	}
	if _, ok := patch["id"]; ok {
		errs.Add("id", "cannot be changed")
	}
	if err := errs.Err(); err != nil {
		return failedOp(err)
	}
	return s.c.update(ctx, userID, patch)
}
