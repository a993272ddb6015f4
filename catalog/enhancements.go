package catalog

import (
	"fmt"
	"math"
)

// Cents is an amount of money in the smallest currency unit.
type Cents int64

func (c Cents) Dollars() float64 {
	return float64(c) / 100
}

func (c Cents) String() string {
	return fmt.Sprintf("$%.2f", c.Dollars())
}

// FromDollars rounds a dollar amount to the nearest cent.
func FromDollars(d float64) Cents {
	return Cents(math.Round(d * 100))
}

// Enhancement is one priced add-on a listing can purchase.
type Enhancement struct {
	Key      string
	Title    string
	Price    Cents
	PerImage bool
}

// Enhancement keys
const (
	Photography12       = "photography_12"
	Photography20       = "photography_20"
	DronePhotography    = "drone_photography"
	TwilightPhotography = "twilight_photography"
	FloorPlan2D         = "floor_plan_2d"
	VirtualTour         = "virtual_tour"
	WalkthroughVideo    = "walkthrough_video"
	HDVideo             = "hd_video"
	VirtualStaging      = "virtual_staging"
	SitePlan            = "site_plan"
	SocialMediaReels    = "social_media_reels"
	PrintPackage        = "print_package"
	StandardSignboard   = "standard_signboard"
	PhotoSignboard      = "photo_signboard"
	PremiumDescription  = "premium_description"
	SocialMediaBoost    = "social_media_boost"
	AllhomesListing     = "allhomes_listing"
	JuwaiListing        = "juwai_listing"
	ContractPreparation = "contract_preparation"
	FullConveyancing    = "full_conveyancing"
)

// enhancements is the fixed price list; checkout totals depend on it.
var enhancements = []Enhancement{
	{Key: Photography12, Title: "Photography (12 images)", Price: 35000},
	{Key: Photography20, Title: "Photography (20 images)", Price: 47000},
	{Key: DronePhotography, Title: "Drone photography", Price: 45000},
	{Key: TwilightPhotography, Title: "Twilight photography", Price: 48000},
	{Key: FloorPlan2D, Title: "2D floor plan", Price: 29500},
	{Key: VirtualTour, Title: "Virtual tour", Price: 48000},
	{Key: WalkthroughVideo, Title: "Walkthrough video", Price: 56000},
	{Key: HDVideo, Title: "HD video", Price: 84000},
	{Key: VirtualStaging, Title: "Virtual staging", Price: 15000, PerImage: true},
	{Key: SitePlan, Title: "Site plan", Price: 8000},
	{Key: SocialMediaReels, Title: "Social media reels", Price: 28000},
	{Key: PrintPackage, Title: "Print package", Price: 22000},
	{Key: StandardSignboard, Title: "Standard signboard", Price: 19000},
	{Key: PhotoSignboard, Title: "Photo signboard", Price: 31000},
	{Key: PremiumDescription, Title: "Premium description", Price: 18000},
	{Key: SocialMediaBoost, Title: "Social media boost", Price: 27000},
	{Key: AllhomesListing, Title: "Allhomes listing", Price: 64500},
	{Key: JuwaiListing, Title: "Juwai listing", Price: 16000},
	{Key: ContractPreparation, Title: "Contract preparation", Price: 53400},
	{Key: FullConveyancing, Title: "Full conveyancing", Price: 88000},
}

var enhancementIndex = func() map[string]int {
	idx := make(map[string]int, len(enhancements))
	for i, e := range enhancements {
		idx[e.Key] = i
	}
	return idx
}()

// LookupEnhancement returns the catalog entry for key.
func LookupEnhancement(key string) (Enhancement, bool) {
	i, ok := enhancementIndex[key]
	if !ok {
		return Enhancement{}, false
	}
	return enhancements[i], true
}

// Enhancements returns a copy of the catalog in display order.
func Enhancements() []Enhancement {
	out := make([]Enhancement, len(enhancements))
	copy(out, enhancements)
	return out
}
