package models

import (
	"time"
)

// Profile is the account record paired 1:1 with an authenticated user.
type Profile struct {
	ID        string `json:"id" db:"id"`
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	Email     string `json:"email" db:"email"`
}

func (p Profile) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// Property is the root aggregate for a listing, owned by one user.
type Property struct {
	ID               string    `json:"id" db:"id"`
	UserID           string    `json:"user_id" db:"user_id"`
	Address          string    `json:"address" db:"address"`
	PropertyCategory string    `json:"property_category,omitempty" db:"property_category"` // residential, commercial, land, rural
	PropertyType     string    `json:"property_type,omitempty" db:"property_type"`         // house, apartment, townhouse, ...
	SaleType         string    `json:"sale_type,omitempty" db:"sale_type"`                 // private_sale, auction, rent
	Price            *float64  `json:"price,omitempty" db:"price"`
	ShowPrice        bool      `json:"show_price" db:"show_price"`
	Status           string    `json:"status" db:"status"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// Property status
const (
	PropertyStatusDraft     = "draft"
	PropertyStatusPending   = "pending"
	PropertyStatusPublished = "published"
	PropertyStatusArchived  = "archived"
)

// Sale types
const (
	SaleTypePrivate = "private_sale"
	SaleTypeAuction = "auction"
	SaleTypeRent    = "rent"
)
