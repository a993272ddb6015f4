package address

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	streetReplacements = map[string]string{
		"street":    "st",
		"avenue":    "ave",
		"drive":     "dr",
		"road":      "rd",
		"boulevard": "blvd",
		"lane":      "ln",
		"court":     "ct",
		"place":     "pl",
		"circuit":   "cct",
		"crescent":  "cres",
		"terrace":   "tce",
		"highway":   "hwy",
		"parade":    "pde",
		"esplanade": "esp",
		"close":     "cl",
		"grove":     "gr",
		"square":    "sq",
		"north":     "n",
		"south":     "s",
		"east":      "e",
		"west":      "w",
		"apartment": "apt",
		"suite":     "ste",
		"level":     "lvl",
		"building":  "bldg",
	}
	nonAlnumRegex = regexp.MustCompile(`[^a-z0-9\s]`)
)

// Normalize lowercases an address, strips punctuation and abbreviates
// street words so equivalent spellings compare equal.
func Normalize(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	addr = nonAlnumRegex.ReplaceAllString(addr, " ")
	words := strings.Fields(addr)
	for i, w := range words {
		if abbrev, ok := streetReplacements[w]; ok {
			words[i] = abbrev
		}
	}
	return strings.Join(words, " ")
}

// CacheKey is the lookup cache key for a query in a country.
func CacheKey(country, query string) string {
	hash := sha256.Sum256([]byte(country + "|" + Normalize(query)))
	return "address:" + hex.EncodeToString(hash[:16])
}
