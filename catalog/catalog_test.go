package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnhancementPrices(t *testing.T) {
	want := map[string]Cents{
		Photography12:       35000,
		Photography20:       47000,
		DronePhotography:    45000,
		TwilightPhotography: 48000,
		FloorPlan2D:         29500,
		VirtualTour:         48000,
		WalkthroughVideo:    56000,
		HDVideo:             84000,
		VirtualStaging:      15000,
		SitePlan:            8000,
		SocialMediaReels:    28000,
		PrintPackage:        22000,
		StandardSignboard:   19000,
		PhotoSignboard:      31000,
		PremiumDescription:  18000,
		SocialMediaBoost:    27000,
		AllhomesListing:     64500,
		JuwaiListing:        16000,
		ContractPreparation: 53400,
		FullConveyancing:    88000,
	}

	require.Len(t, Enhancements(), len(want))
	for key, price := range want {
		e, ok := LookupEnhancement(key)
		require.True(t, ok, key)
		assert.Equal(t, price, e.Price, key)
	}
}

func TestEnhancementsReturnsCopy(t *testing.T) {
	list := Enhancements()
	list[0].Price = 1

	e, _ := LookupEnhancement(list[0].Key)
	assert.Equal(t, Cents(35000), e.Price)
}

func TestSummarize_PromoDiscount(t *testing.T) {
	c := Default()

	s, err := c.Summarize("", []Selection{{Type: Photography12}, {Type: SitePlan}}, "welcome10")
	require.NoError(t, err)

	assert.Equal(t, Cents(43000), s.Subtotal)
	assert.Equal(t, Cents(4300), s.Discount)
	assert.Equal(t, Cents(38700), s.Total)
	assert.Equal(t, "$430.00", s.Subtotal.String())
	assert.Equal(t, "$43.00", s.Discount.String())
	assert.Equal(t, "$387.00", s.Total.String())
	assert.Equal(t, "WELCOME10", s.PromoCode)
}

func TestSummarize_PackageAndPerImageStaging(t *testing.T) {
	c := Default()

	s, err := c.Summarize("essential", []Selection{
		{Type: VirtualStaging, Quantity: 3},
		{Type: DronePhotography, Quantity: 5},
	}, "")
	require.NoError(t, err)

	require.Len(t, s.Items, 3)
	assert.Equal(t, Cents(49900), s.Items[0].Amount())
	assert.Equal(t, Cents(45000), s.Items[1].Amount())
	assert.Equal(t, 1, s.Items[2].Quantity, "flat-priced enhancements ignore quantity")
	assert.Equal(t, Cents(49900+45000+45000), s.Total)
}

func TestSummarize_Errors(t *testing.T) {
	c := Default()

	_, err := c.Summarize("gold", nil, "")
	assert.ErrorIs(t, err, ErrUnknownPackage)

	_, err = c.Summarize("", []Selection{{Type: "jetpack"}}, "")
	assert.ErrorIs(t, err, ErrUnknownEnhancement)

	_, err = c.Summarize("", nil, "NOPE")
	assert.ErrorIs(t, err, ErrInvalidPromoCode)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	c, err := Load(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Len(t, c.Packages(), 3)

	path := filepath.Join(dir, "packages.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
packages:
  - id: pro
    title: Pro
    price: 1200
  - id: lite
    title: Lite
    price: 150
promo_codes:
  spring25: 25
`), 0644))

	c, err = Load(path)
	require.NoError(t, err)

	pkgs := c.Packages()
	require.Len(t, pkgs, 2)
	assert.Equal(t, "lite", pkgs[0].ID)

	pct, ok := c.PromoPercent("SPRING25")
	assert.True(t, ok)
	assert.Equal(t, 25.0, pct)
}
