package models

import "time"

// ImageRecord is one entry of an ordered media list.
type ImageRecord struct {
	URL string `json:"url"`
}

// PropertyDetail is the wide, mostly optional listing record keyed by property.
// MainImage mirrors Images[0]; it is only ever written alongside Images.
type PropertyDetail struct {
	PropertyID       string        `json:"property_id" db:"property_id"`
	ListingTitle     string        `json:"listing_title,omitempty" db:"listing_title"`
	Description      string        `json:"description,omitempty" db:"description"`
	LandArea         *float64      `json:"land_area,omitempty" db:"land_area"`
	LandAreaUnit     string        `json:"land_area_unit,omitempty" db:"land_area_unit"` // sqm, ha, acres
	HouseArea        *float64      `json:"house_area,omitempty" db:"house_area"`
	HouseAreaUnit    string        `json:"house_area_unit,omitempty" db:"house_area_unit"`
	Images           []ImageRecord `json:"images" db:"images"`
	FloorPlans       []ImageRecord `json:"floor_plans" db:"floor_plans"`
	MainImage        string        `json:"main_image,omitempty" db:"main_image"`
	VideoURL         string        `json:"video_url,omitempty" db:"video_url"`
	ContactName      string        `json:"contact_name,omitempty" db:"contact_name"`
	ContactEmail     string        `json:"contact_email,omitempty" db:"contact_email"`
	ContactPhone     string        `json:"contact_phone,omitempty" db:"contact_phone"`
	Price            *float64      `json:"price,omitempty" db:"price"`
	ShowPrice        bool          `json:"show_price" db:"show_price"`
	PropertyCategory string        `json:"property_category,omitempty" db:"property_category"`
	PropertyPackage  string        `json:"property_package,omitempty" db:"property_package"`
	PublishOption    string        `json:"publish_option,omitempty" db:"publish_option"` // immediate, scheduled
	PublishDate      *time.Time    `json:"publish_date,omitempty" db:"publish_date"`
	PaymentStatus    string        `json:"payment_status,omitempty" db:"payment_status"`
}

// Main returns the main image, which is always the head of Images.
func (d PropertyDetail) Main() string {
	if len(d.Images) == 0 {
		return ""
	}
	return d.Images[0].URL
}

// ImageURLs flattens an image list into its URLs, preserving order.
func ImageURLs(images []ImageRecord) []string {
	urls := make([]string, len(images))
	for i, img := range images {
		urls[i] = img.URL
	}
	return urls
}

// Publish options
const (
	PublishImmediate = "immediate"
	PublishScheduled = "scheduled"
)

// Payment status
const (
	PaymentStatusUnpaid    = "unpaid"
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// PaymentLog is written only by the payment webhook.
type PaymentLog struct {
	ID         string    `json:"id,omitempty" db:"id"`
	PropertyID string    `json:"property_id" db:"property_id"`
	SessionID  string    `json:"session_id" db:"session_id"`
	Amount     int64     `json:"amount" db:"amount"` // cents
	Currency   string    `json:"currency" db:"currency"`
	Status     string    `json:"status" db:"status"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
