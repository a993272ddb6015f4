package models

import "fmt"

// PropertyFeature is a named feature of a property, unique per (property, name).
type PropertyFeature struct {
	ID          string `json:"id,omitempty" db:"id"`
	PropertyID  string `json:"property_id" db:"property_id"`
	FeatureName string `json:"feature_name" db:"feature_name"`
	FeatureType string `json:"feature_type" db:"feature_type"` // indoor, outdoor, heating_cooling, eco
}

// PropertyEnhancement is a paid add-on attached to a property.
type PropertyEnhancement struct {
	ID              string  `json:"id" db:"id"`
	PropertyID      string  `json:"property_id" db:"property_id"`
	EnhancementType string  `json:"enhancement_type" db:"enhancement_type"`
	Price           float64 `json:"price" db:"price"`
	Status          string  `json:"status" db:"status"`
}

// Enhancement status
const (
	EnhancementPending   = "pending"
	EnhancementPurchased = "purchased"
	EnhancementCompleted = "completed"
)

var enhancementRank = map[string]int{
	EnhancementPending:   0,
	EnhancementPurchased: 1,
	EnhancementCompleted: 2,
}

// CanAdvance reports whether an enhancement may move from one status to the
// next. Transitions are forward-only and one step at a time.
func CanAdvance(from, to string) bool {
	f, ok := enhancementRank[from]
	if !ok {
		return false
	}
	t, ok := enhancementRank[to]
	if !ok {
		return false
	}
	return t == f+1
}

// Advance validates and returns the next status.
func Advance(e *PropertyEnhancement, to string) error {
	if !CanAdvance(e.Status, to) {
		return fmt.Errorf("enhancement %s: invalid transition %s -> %s", e.ID, e.Status, to)
	}
	e.Status = to
	return nil
}

// PropertyInspection is an open-house or private inspection slot.
type PropertyInspection struct {
	ID             string `json:"id" db:"id"`
	PropertyID     string `json:"property_id" db:"property_id"`
	InspectionDate string `json:"inspection_date" db:"inspection_date"` // YYYY-MM-DD
	StartTime      string `json:"start_time" db:"start_time"`           // HH:MM
	EndTime        string `json:"end_time" db:"end_time"`               // HH:MM
	InspectionType string `json:"inspection_type" db:"inspection_type"`
}

// Inspection types
const (
	InspectionOpenHouse = "open-house"
	InspectionPrivate   = "private"
)
