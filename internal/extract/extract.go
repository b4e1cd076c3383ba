// Package extract recovers structured variant records from a fetched product
// page. The page is not valid JSON as a whole; it embeds one or more JSON
// fragments inside markup, so everything here is a best-effort scan over a
// known page shape, not a general parser.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// variantMarker introduces the embedded per-size variant array.
const variantMarker = `"simples":`

const sizeKeyword = `"size":"`

// Variant is one per-size record from the embedded variant array.
type Variant struct {
	Size  string `json:"size"`
	Offer Offer  `json:"offer"`
}

// Offer mirrors the offer object of a variant record.
type Offer struct {
	Price             OfferPrice `json:"price"`
	Stock             Stock      `json:"stock"`
	IsMeaningfulOffer bool       `json:"isMeaningfulOffer"`
}

// OfferPrice holds the promotional and original amounts; either may be
// absent in the fragment.
type OfferPrice struct {
	Promotional *Amount `json:"promotional"`
	Original    *Amount `json:"original"`
}

// Amount is an integer price in minor currency units (cents).
type Amount struct {
	Amount int `json:"amount"`
}

// Stock carries the site's free-text stock descriptor.
type Stock struct {
	Quantity string `json:"quantity"`
}

// Variants scans body for the variant array and returns its records. The
// scan advances a cursor past each marker occurrence: markers whose array is
// at the wrong structural depth (no per-record "size" field) or that fail to
// parse are skipped and the scan retries on the remainder of the body, so
// work is bounded by the body length. An empty result means no variant data
// is present anywhere, a legitimate terminal signal rather than an error.
func Variants(body string) []Variant {
	rest := body
	for {
		idx := strings.Index(rest, variantMarker)
		if idx < 0 {
			return nil
		}
		rest = rest[idx+len(variantMarker):]

		fragment, ok := scanArray(rest)
		if !ok {
			continue
		}
		if !strings.Contains(fragment, `"size"`) {
			// same-named array at the wrong depth
			continue
		}

		var variants []Variant
		if err := json.Unmarshal([]byte(fragment), &variants); err != nil {
			continue
		}
		if len(variants) > 0 {
			return variants
		}
	}
}

// scanArray captures the first complete top-level array in s by tracking
// bracket depth character by character. The fragment ends where the depth
// returns to zero, so nested sub-arrays are captured in full.
func scanArray(s string) (string, bool) {
	start := strings.IndexByte(s, '[')
	if start < 0 {
		return "", false
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// Find returns the variant matching size, if any.
func Find(variants []Variant, size string) (Variant, bool) {
	for _, v := range variants {
		if v.Size == size {
			return v, true
		}
	}
	return Variant{}, false
}

// ActivePrice selects the promotional price when present, the original
// otherwise, and renders it in the canonical comma-decimal form. The
// rendering must match the persisted history format exactly: later
// comparisons are made on these strings.
func ActivePrice(offer Offer) (string, error) {
	amount := offer.Price.Promotional
	if amount == nil {
		amount = offer.Price.Original
	}
	if amount == nil {
		return "", errors.New("offer has neither promotional nor original price")
	}
	return renderMinorUnits(amount.Amount), nil
}

// renderMinorUnits renders an integer amount of minor currency units as a
// comma-decimal string: all digits except the last two form the integer
// part. Amounts under 100 get a zero integer part ("0,99").
func renderMinorUnits(amount int) string {
	digits := strconv.Itoa(amount)
	if len(digits) < 3 {
		digits = fmt.Sprintf("%03d", amount)
	}
	return digits[:len(digits)-2] + "," + digits[len(digits)-2:]
}

// couponSubstrings maps the shop's top-level domain to the phrase searched
// for verbatim in the page body. This is a heuristic: unrelated banners with
// similar phrasing produce false positives, a reworded promo produces false
// negatives.
var couponSubstrings = map[string]string{
	"co.uk": "on this and other selected items",
	"ie":    "on this and other selected items",
	"it":    "su questo e altri articoli selezionati con il codice",
	"es":    "en este y otros artículos seleccionados con el código",
	"de":    "auf diesen und andere ausgewählte artikel",
	"nl":    "op dit en andere geselecteerde items",
}

// HasCoupon reports whether the body contains the coupon phrase for the
// item URL's locale. Unknown locales never report a coupon.
func HasCoupon(itemURL, body string) bool {
	u, err := url.Parse(itemURL)
	if err != nil {
		return false
	}
	tld := strings.TrimPrefix(u.Hostname(), "www.zalando.")
	phrase, ok := couponSubstrings[strings.ToLower(tld)]
	if !ok {
		return false
	}
	return strings.Contains(body, phrase)
}

// Sizes collects the distinct size values present in the body, in order of
// appearance. The page repeats the variant array, so the scan stops as soon
// as a size repeats.
func Sizes(body string) []string {
	var sizes []string
	seen := make(map[string]bool)
	rest := body
	for {
		idx := strings.Index(rest, sizeKeyword)
		if idx < 0 {
			return sizes
		}
		rest = rest[idx+len(sizeKeyword):]
		end := strings.IndexByte(rest, '"')
		if end < 0 {
			return sizes
		}
		size := rest[:end]
		if seen[size] {
			return sizes
		}
		seen[size] = true
		sizes = append(sizes, size)
	}
}
