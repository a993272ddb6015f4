package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"listingdesk/logging"
	"listingdesk/models"
	"listingdesk/storage"
)

// FeatureDiff is the work needed to turn the remote set into the local one.
type FeatureDiff struct {
	Insert []models.PropertyFeature
	Remove []string // feature names
}

func (d FeatureDiff) Empty() bool {
	return len(d.Insert) == 0 && len(d.Remove) == 0
}

// DiffFeatures compares two feature sets by name. Insert keeps local order,
// Remove keeps remote order.
func DiffFeatures(remote, local []models.PropertyFeature) FeatureDiff {
	remoteNames := make(map[string]bool, len(remote))
	for _, f := range remote {
		remoteNames[f.FeatureName] = true
	}
	localNames := make(map[string]bool, len(local))
	for _, f := range local {
		localNames[f.FeatureName] = true
	}

	var diff FeatureDiff
	seen := make(map[string]bool, len(local))
	for _, f := range local {
		if !remoteNames[f.FeatureName] && !seen[f.FeatureName] {
			diff.Insert = append(diff.Insert, f)
			seen[f.FeatureName] = true
		}
	}
	for _, f := range remote {
		if !localNames[f.FeatureName] && !slices.Contains(diff.Remove, f.FeatureName) {
			diff.Remove = append(diff.Remove, f.FeatureName)
		}
	}
	return diff
}

// SaveResult reports what a Save sent to the backing store.
type SaveResult struct {
	Inserted int
	Removed  int
}

// FeatureSlice holds the desired feature set per property. Edits are local
// until Save reconciles them in at most two bulk calls.
type FeatureSlice struct {
	gw   storage.Gateway
	emit func(Event)

	mu    sync.RWMutex
	local map[string][]models.PropertyFeature

	saveMu sync.Mutex
}

func newFeatureSlice(gw storage.Gateway, emit func(Event)) *FeatureSlice {
	return &FeatureSlice{
		gw:    gw,
		emit:  emit,
		local: make(map[string][]models.PropertyFeature),
	}
}

func (s *FeatureSlice) selectRemote(ctx context.Context, propertyID string) ([]models.PropertyFeature, error) {
	rows, err := s.gw.Select(ctx, storage.CollectionFeatures,
		storage.Filter{storage.Eq("property_id", propertyID)}, storage.Asc("feature_name"))
	if err != nil {
		return nil, fmt.Errorf("fetch features: %w", err)
	}
	return storage.DecodeAll[models.PropertyFeature](rows)
}

// Fetch loads the persisted set and makes it the local set.
func (s *FeatureSlice) Fetch(ctx context.Context, propertyID string) ([]models.PropertyFeature, error) {
	remote, err := s.selectRemote(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	s.SetLocal(propertyID, remote)
	return remote, nil
}

// Local returns the desired set for a property.
func (s *FeatureSlice) Local(propertyID string) []models.PropertyFeature {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.local[propertyID])
}

func (s *FeatureSlice) Has(propertyID, name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.ContainsFunc(s.local[propertyID], func(f models.PropertyFeature) bool {
		return f.FeatureName == name
	})
}

// SetLocal replaces the desired set for a property.
func (s *FeatureSlice) SetLocal(propertyID string, features []models.PropertyFeature) {
	next := make([]models.PropertyFeature, 0, len(features))
	for _, f := range features {
		f.PropertyID = propertyID
		next = append(next, f)
	}
	s.mu.Lock()
	s.local[propertyID] = next
	s.mu.Unlock()
	s.emit(Event{Kind: EventChanged, Slice: SliceFeatures, ID: propertyID})
}

// Drop forgets the local set for a property.
func (s *FeatureSlice) Drop(propertyID string) {
	s.mu.Lock()
	_, ok := s.local[propertyID]
	delete(s.local, propertyID)
	s.mu.Unlock()
	if ok {
		s.emit(Event{Kind: EventChanged, Slice: SliceFeatures, ID: propertyID})
	}
}

// Toggle adds the feature if absent and removes it if present. It reports
// whether the feature is now selected.
func (s *FeatureSlice) Toggle(propertyID, name, featureType string) bool {
	s.mu.Lock()
	cur := s.local[propertyID]
	i := slices.IndexFunc(cur, func(f models.PropertyFeature) bool { return f.FeatureName == name })
	var selected bool
	if i >= 0 {
		s.local[propertyID] = slices.Delete(slices.Clone(cur), i, i+1)
	} else {
		s.local[propertyID] = append(slices.Clone(cur), models.PropertyFeature{
			PropertyID:  propertyID,
			FeatureName: name,
			FeatureType: featureType,
		})
		selected = true
	}
	s.mu.Unlock()
	s.emit(Event{Kind: EventChanged, Slice: SliceFeatures, ID: propertyID})
	return selected
}

// Save reconciles the persisted set with the local one: one bulk insert
// for new names and one bulk delete for dropped names. On failure the
// local set is replaced by whatever the backing store now holds.
func (s *FeatureSlice) Save(ctx context.Context, propertyID string) (SaveResult, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	remote, err := s.selectRemote(ctx, propertyID)
	if err != nil {
		return SaveResult{}, err
	}
	diff := DiffFeatures(remote, s.Local(propertyID))
	if diff.Empty() {
		return SaveResult{}, nil
	}

	var res SaveResult
	if err := s.apply(ctx, propertyID, diff, &res); err != nil {
		err = fmt.Errorf("save features %s: %w", propertyID, err)
		logging.Warnf("Store: %v", err)
		if authoritative, ferr := s.selectRemote(ctx, propertyID); ferr == nil {
			s.mu.Lock()
			s.local[propertyID] = authoritative
			s.mu.Unlock()
		} else {
			logging.Warnf("Store: refetch features %s: %v", propertyID, ferr)
		}
		s.emit(Event{Kind: EventRollback, Slice: SliceFeatures, ID: propertyID, Err: err})
		return res, err
	}

	logging.Debugf("Store: features %s saved (+%d -%d)", propertyID, res.Inserted, res.Removed)
	s.emit(Event{Kind: EventChanged, Slice: SliceFeatures, ID: propertyID})
	return res, nil
}

func (s *FeatureSlice) apply(ctx context.Context, propertyID string, diff FeatureDiff, res *SaveResult) error {
	if len(diff.Insert) > 0 {
		records := make([]storage.Record, 0, len(diff.Insert))
		for _, f := range diff.Insert {
			records = append(records, storage.Record{
				"property_id":  propertyID,
				"feature_name": f.FeatureName,
				"feature_type": f.FeatureType,
			})
		}
		rows, err := s.gw.Insert(ctx, storage.CollectionFeatures, records...)
		if err != nil {
			return err
		}
		res.Inserted = len(records)
		if inserted, err := storage.DecodeAll[models.PropertyFeature](rows); err == nil {
			s.adoptIDs(propertyID, inserted)
		}
	}
	if len(diff.Remove) > 0 {
		filter := storage.Filter{
			storage.Eq("property_id", propertyID),
			storage.In("feature_name", diff.Remove...),
		}
		if err := s.gw.Delete(ctx, storage.CollectionFeatures, filter); err != nil {
			return err
		}
		res.Removed = len(diff.Remove)
	}
	return nil
}

// adoptIDs copies persisted ids onto the matching local entries.
func (s *FeatureSlice) adoptIDs(propertyID string, inserted []models.PropertyFeature) {
	ids := make(map[string]string, len(inserted))
	for _, f := range inserted {
		ids[f.FeatureName] = f.ID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := slices.Clone(s.local[propertyID])
	for i, f := range next {
		if id, ok := ids[f.FeatureName]; ok && f.ID == "" {
			next[i].ID = id
		}
	}
	s.local[propertyID] = next
}

func (s *FeatureSlice) reset() {
	s.mu.Lock()
	s.local = make(map[string][]models.PropertyFeature)
	s.mu.Unlock()
	s.emit(Event{Kind: EventChanged, Slice: SliceFeatures})
}
