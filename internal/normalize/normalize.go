// Package normalize maps source-native raw listings into the canonical
// Listing shape. Platform field-name drift is absorbed here; everything
// downstream sees one record shape.
package normalize

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/acquisition-cli/internal/model"
)

// Normalization failures. All are per-listing: the offending record is
// dropped and counted, never aborting the run.
var (
	ErrMissingTitle = errors.New("normalize: title missing")
	ErrMissingURL   = errors.New("normalize: listing url missing or not dereferenceable")
)

// Field aliases across platforms. First match wins.
var (
	titleKeys       = []string{"title", "name", "business_name"}
	priceKeys       = []string{"price", "asking_price"}
	addressKeys     = []string{"address", "location"}
	urlKeys         = []string{"listing_url", "url"}
	descriptionKeys = []string{"description", "business_description"}
	reasonKeys      = []string{"reason_for_sale", "reason"}
	multipleKeys    = []string{"earnings_multiple", "multiple", "financials"}
	categoryKeys    = []string{"category", "industry"}
	employeeKeys    = []string{"employees", "employee_count"}
	ownershipKeys   = []string{"ownership_structure", "ownership_type"}
)

// Normalize converts a raw record into a canonical Listing. The listing URL
// is the one hard requirement: a record that cannot be linked back to its
// source is dropped rather than emitted with a placeholder.
func Normalize(raw model.RawListing, now time.Time) (model.Listing, error) {
	listingURL := canonicalURL(Field(raw, urlKeys...))
	if listingURL == "" {
		return model.Listing{}, ErrMissingURL
	}

	title := strings.TrimSpace(Field(raw, titleKeys...))
	if title == "" {
		return model.Listing{}, ErrMissingTitle
	}

	nativeID := strings.TrimSpace(raw.NativeID)
	if nativeID == "" {
		// Fall back to the canonical URL: stable for the same listing
		// across runs, which is all the ID needs.
		nativeID = listingURL
	}

	l := model.Listing{
		ID:                 model.ListingID(raw.Platform, nativeID),
		Platform:           raw.Platform,
		Title:              title,
		Description:        strings.TrimSpace(Field(raw, descriptionKeys...)),
		Address:            strings.TrimSpace(Field(raw, addressKeys...)),
		ReasonForSale:      strings.TrimSpace(Field(raw, reasonKeys...)),
		OwnershipStructure: strings.TrimSpace(Field(raw, ownershipKeys...)),
		ListingURL:         listingURL,
		FirstSeen:          now,
		LastSeen:           now,
	}

	if price, ok := parsePrice(rawValue(raw, priceKeys...)); ok {
		l.Price = &price
	}
	if mult, ok := parseMultiple(rawValue(raw, multipleKeys...)); ok {
		l.EarningsMultiple = &mult
	}

	return l, nil
}

// Field returns the first non-empty string field among the aliases.
func Field(raw model.RawListing, keys ...string) string {
	v := rawValue(raw, keys...)
	s, _ := v.(string)
	return s
}

func rawValue(raw model.RawListing, keys ...string) any {
	for _, k := range keys {
		if v, ok := raw.Fields[k]; ok && v != nil {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				continue
			}
			return v
		}
	}
	return nil
}

var priceScrub = regexp.MustCompile(`[^0-9.kKmM]`)

// parsePrice extracts a USD price from a numeric or free-text value.
// "Price on request" and similar yield no price, which the filter treats as
// pass-through for manual review. Prices round to 2 decimal places.
func parsePrice(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		return roundPrice(n)
	case int:
		return roundPrice(float64(n))
	case int64:
		return roundPrice(float64(n))
	case string:
		return parsePriceText(n)
	default:
		return 0, false
	}
}

func parsePriceText(text string) (float64, bool) {
	s := priceScrub.ReplaceAllString(text, "")
	if s == "" {
		return 0, false
	}

	mul := 1.0
	switch {
	case strings.HasSuffix(strings.ToLower(s), "m"):
		mul = 1_000_000
		s = s[:len(s)-1]
	case strings.HasSuffix(strings.ToLower(s), "k"):
		mul = 1_000
		s = s[:len(s)-1]
	}
	// Scrub again in case of text like "1.2M USD" leaving stray letters.
	s = strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, s)
	if s == "" {
		return 0, false
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if mul != 1 {
		zap.L().Debug("price unit conversion",
			zap.String("raw", text),
			zap.Float64("multiplier", mul),
			zap.Float64("usd", n*mul),
		)
	}
	return roundPrice(n * mul)
}

func roundPrice(n float64) (float64, bool) {
	if n <= 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return math.Round(n*100) / 100, true
}

var multiplePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+\.?\d*)\s*x\b`),
	regexp.MustCompile(`(?i)multiple[:\s]+(\d+\.?\d*)`),
	regexp.MustCompile(`(?i)(\d+\.?\d*)\s*times`),
}

// parseMultiple extracts an earnings multiple from a numeric value or from
// text patterns like "4.2x", "multiple: 4.2", "4.2 times".
func parseMultiple(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		return positive(n)
	case int:
		return positive(float64(n))
	case string:
		for _, p := range multiplePatterns {
			if m := p.FindStringSubmatch(n); m != nil {
				if f, err := strconv.ParseFloat(m[1], 64); err == nil {
					return positive(f)
				}
			}
		}
		return 0, false
	default:
		return 0, false
	}
}

func positive(n float64) (float64, bool) {
	if n <= 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// canonicalURL validates that a listing URL is an absolute, dereferenceable
// http(s) link and returns it trimmed. Anything else is treated as missing.
func canonicalURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	return u.String()
}

// ScoringInput assembles the raw-field text the risk scorer consults but the
// canonical Listing does not retain (category, staffing text).
func ScoringInput(raw model.RawListing) (category, employees string) {
	return strings.TrimSpace(Field(raw, categoryKeys...)), strings.TrimSpace(Field(raw, employeeKeys...))
}

// Describe renders a short identifier for log lines about a raw record.
func Describe(raw model.RawListing) string {
	if raw.NativeID != "" {
		return fmt.Sprintf("%s/%s", raw.Platform, raw.NativeID)
	}
	return fmt.Sprintf("%s/%s", raw.Platform, Field(raw, titleKeys...))
}
