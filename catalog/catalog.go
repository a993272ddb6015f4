package catalog

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownPackage     = errors.New("unknown listing package")
	ErrUnknownEnhancement = errors.New("unknown enhancement")
	ErrInvalidPromoCode   = errors.New("invalid promo code")
)

// Package is a listing package a property owner picks before checkout.
type Package struct {
	ID          string  `yaml:"id"`
	Title       string  `yaml:"title"`
	Price       float64 `yaml:"price"`
	Description string  `yaml:"description"`
}

type fileFormat struct {
	Packages   []Package          `yaml:"packages"`
	PromoCodes map[string]float64 `yaml:"promo_codes"`
}

// Catalog holds the listing packages and promo codes. It is read-only after
// construction and safe to share.
type Catalog struct {
	packages map[string]Package
	promos   map[string]float64
}

var defaultPackages = []Package{
	{ID: "essential", Title: "Essential", Price: 499, Description: "Listing on the major portals for 90 days"},
	{ID: "advantage", Title: "Advantage", Price: 899, Description: "Essential plus featured placement and signboard"},
	{ID: "premium", Title: "Premium", Price: 1499, Description: "Advantage plus top-spot placement until sold"},
}

var defaultPromos = map[string]float64{
	"WELCOME10": 10,
}

func Default() *Catalog {
	return New(defaultPackages, defaultPromos)
}

func New(packages []Package, promos map[string]float64) *Catalog {
	c := &Catalog{
		packages: make(map[string]Package, len(packages)),
		promos:   make(map[string]float64, len(promos)),
	}
	for _, p := range packages {
		c.packages[p.ID] = p
	}
	for code, pct := range promos {
		c.promos[strings.ToUpper(strings.TrimSpace(code))] = pct
	}
	return c
}

// Load reads packages and promo codes from a yaml file, falling back to the
// built-in defaults when the file does not exist.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(f.Packages) == 0 {
		f.Packages = defaultPackages
	}
	for _, p := range f.Packages {
		if p.ID == "" || p.Price < 0 {
			return nil, fmt.Errorf("parse %s: invalid package %+v", path, p)
		}
	}
	return New(f.Packages, f.PromoCodes), nil
}

func (c *Catalog) Package(id string) (Package, bool) {
	p, ok := c.packages[id]
	return p, ok
}

// Packages returns all packages ordered by price.
func (c *Catalog) Packages() []Package {
	out := make([]Package, 0, len(c.packages))
	for _, p := range c.packages {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Price == out[j].Price {
			return out[i].ID < out[j].ID
		}
		return out[i].Price < out[j].Price
	})
	return out
}

// PromoPercent returns the discount percentage for a code.
func (c *Catalog) PromoPercent(code string) (float64, bool) {
	pct, ok := c.promos[strings.ToUpper(strings.TrimSpace(code))]
	return pct, ok
}

// Selection is an enhancement picked for checkout. Quantity only matters for
// per-image enhancements and defaults to 1.
type Selection struct {
	Type     string
	Quantity int
}

// LineItem is one priced row of an order summary.
type LineItem struct {
	Key       string
	Title     string
	UnitPrice Cents
	Quantity  int
}

func (l LineItem) Amount() Cents {
	return l.UnitPrice * Cents(l.Quantity)
}

// Summary is the order breakdown shown before checkout.
type Summary struct {
	PackageID string
	Items     []LineItem
	Subtotal  Cents
	PromoCode string
	Discount  Cents
	Total     Cents
}

// Summarize prices a package plus enhancements and applies an optional promo
// code. An empty packageID prices enhancements alone.
func (c *Catalog) Summarize(packageID string, selections []Selection, promo string) (Summary, error) {
	s := Summary{PackageID: packageID}

	if packageID != "" {
		p, ok := c.Package(packageID)
		if !ok {
			return Summary{}, fmt.Errorf("%w: %s", ErrUnknownPackage, packageID)
		}
		s.Items = append(s.Items, LineItem{
			Key:       "package_" + p.ID,
			Title:     p.Title + " package",
			UnitPrice: FromDollars(p.Price),
			Quantity:  1,
		})
	}

	for _, sel := range selections {
		e, ok := LookupEnhancement(sel.Type)
		if !ok {
			return Summary{}, fmt.Errorf("%w: %s", ErrUnknownEnhancement, sel.Type)
		}
		qty := 1
		if e.PerImage && sel.Quantity > 1 {
			qty = sel.Quantity
		}
		s.Items = append(s.Items, LineItem{
			Key:       e.Key,
			Title:     e.Title,
			UnitPrice: e.Price,
			Quantity:  qty,
		})
	}

	for _, item := range s.Items {
		s.Subtotal += item.Amount()
	}

	if promo != "" {
		pct, ok := c.PromoPercent(promo)
		if !ok {
			return Summary{}, fmt.Errorf("%w: %s", ErrInvalidPromoCode, promo)
		}
		s.PromoCode = strings.ToUpper(strings.TrimSpace(promo))
		s.Discount = Cents(math.Round(float64(s.Subtotal) * pct / 100))
	}

	s.Total = s.Subtotal - s.Discount
	if s.Total < 0 {
		s.Total = 0
	}
	return s, nil
}
