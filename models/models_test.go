package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanAdvance(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{EnhancementPending, EnhancementPurchased, true},
		{EnhancementPurchased, EnhancementCompleted, true},
		{EnhancementPending, EnhancementCompleted, false},
		{EnhancementPurchased, EnhancementPending, false},
		{EnhancementCompleted, EnhancementCompleted, false},
		{"refunded", EnhancementPurchased, false},
		{EnhancementPending, "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanAdvance(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestAdvance(t *testing.T) {
	e := &PropertyEnhancement{ID: "e1", Status: EnhancementPending}
	require.NoError(t, Advance(e, EnhancementPurchased))
	assert.Equal(t, EnhancementPurchased, e.Status)

	err := Advance(e, EnhancementPending)
	assert.ErrorContains(t, err, "invalid transition")
	assert.Equal(t, EnhancementPurchased, e.Status)
}

func TestMainImage(t *testing.T) {
	var d PropertyDetail
	assert.Equal(t, "", d.Main())

	d.Images = []ImageRecord{{URL: "a.jpg"}, {URL: "b.jpg"}}
	assert.Equal(t, "a.jpg", d.Main())
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, ImageURLs(d.Images))
}

func TestFullName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", Profile{FirstName: "Ada", LastName: "Lovelace"}.FullName())
	assert.Equal(t, "Ada", Profile{FirstName: "Ada"}.FullName())
	assert.Equal(t, "Lovelace", Profile{LastName: "Lovelace"}.FullName())
}
