package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/acquisition-cli/internal/model"
)

var now = time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC)

func rawListing(fields map[string]any) model.RawListing {
	return model.RawListing{
		Platform: model.PlatformBizBuySell,
		NativeID: "2291047",
		Fields:   fields,
	}
}

func TestNormalize_FullRecord(t *testing.T) {
	t.Parallel()

	raw := rawListing(map[string]any{
		"title":           "Laundromat - Retiring Owner",
		"price":           "$450,000",
		"address":         "10 Broad St, New York, NY 10004",
		"listing_url":     "https://www.bizbuysell.com/business/2291047/",
		"description":     "Coin-op laundromat, absentee run",
		"reason_for_sale": "Owner retiring after 30 years",
		"multiple":        "3.2x SDE",
		"ownership_type":  "Owner-operated",
	})

	l, err := Normalize(raw, now)
	require.NoError(t, err)

	assert.Equal(t, model.ListingID(model.PlatformBizBuySell, "2291047"), l.ID)
	assert.Equal(t, model.PlatformBizBuySell, l.Platform)
	assert.Equal(t, "Laundromat - Retiring Owner", l.Title)
	require.NotNil(t, l.Price)
	assert.Equal(t, 450000.0, *l.Price)
	assert.Equal(t, "10 Broad St, New York, NY 10004", l.Address)
	assert.Equal(t, "https://www.bizbuysell.com/business/2291047/", l.ListingURL)
	require.NotNil(t, l.EarningsMultiple)
	assert.Equal(t, 3.2, *l.EarningsMultiple)
	assert.Equal(t, "Owner-operated", l.OwnershipStructure)
	assert.Equal(t, now, l.FirstSeen)
	assert.Equal(t, now, l.LastSeen)
}

func TestNormalize_Deterministic(t *testing.T) {
	t.Parallel()

	raw := rawListing(map[string]any{
		"title":       "Pizza Restaurant",
		"listing_url": "https://www.bizquest.com/listing/99",
	})

	a, err := Normalize(raw, now)
	require.NoError(t, err)
	b, err := Normalize(raw, now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
}

func TestNormalize_MissingURLIsHardFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  any
	}{
		{"absent", nil},
		{"empty", ""},
		{"relative", "/business/123"},
		{"not http", "ftp://example.com/listing"},
		{"garbage", "not a url at all\x7f"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fields := map[string]any{"title": "Great Business", "price": 100000}
			if tt.url != nil {
				fields["listing_url"] = tt.url
			}
			_, err := Normalize(rawListing(fields), now)
			assert.ErrorIs(t, err, ErrMissingURL)
		})
	}
}

func TestNormalize_MissingTitle(t *testing.T) {
	t.Parallel()

	_, err := Normalize(rawListing(map[string]any{
		"listing_url": "https://example.com/l/1",
	}), now)
	assert.ErrorIs(t, err, ErrMissingTitle)
}

func TestNormalize_URLFallbackNativeID(t *testing.T) {
	t.Parallel()

	raw := model.RawListing{
		Platform: model.PlatformDealStream,
		Fields: map[string]any{
			"title":       "HVAC Contractor",
			"listing_url": "https://www.dealstream.com/l/777",
		},
	}
	l, err := Normalize(raw, now)
	require.NoError(t, err)
	assert.Equal(t, model.ListingID(model.PlatformDealStream, "https://www.dealstream.com/l/777"), l.ID)
}

func TestNormalize_FieldAliases(t *testing.T) {
	t.Parallel()

	raw := rawListing(map[string]any{
		"business_name":  "Corner Deli",
		"asking_price":   325000.0,
		"location":       "Brooklyn, NY 11201",
		"url":            "https://example.com/deli",
		"reason":         "health issues",
	})
	l, err := Normalize(raw, now)
	require.NoError(t, err)
	assert.Equal(t, "Corner Deli", l.Title)
	require.NotNil(t, l.Price)
	assert.Equal(t, 325000.0, *l.Price)
	assert.Equal(t, "Brooklyn, NY 11201", l.Address)
	assert.Equal(t, "health issues", l.ReasonForSale)
}

func TestParsePrice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		in     any
		want   float64
		wantOK bool
	}{
		{"plain number", 450000, 450000, true},
		{"float with cents", 450000.567, 450000.57, true},
		{"dollar text", "$1,250,000", 1250000, true},
		{"k suffix", "450k", 450000, true},
		{"m suffix", "$1.2M", 1200000, true},
		{"million word", "1.2 Million", 1200000, true},
		{"price on request", "Price on request", 0, false},
		{"make offer", "Make Offer", 0, false},
		{"zero", 0, 0, false},
		{"negative", -5, 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := parsePrice(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.want, got, 0.001)
			}
		})
	}
}

func TestParseMultiple(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		in     any
		want   float64
		wantOK bool
	}{
		{"numeric", 4.2, 4.2, true},
		{"x suffix", "4.2x cash flow", 4.2, true},
		{"x with space", "4.2 x", 4.2, true},
		{"multiple label", "Multiple: 3.5", 3.5, true},
		{"times", "sells at 3 times earnings", 3, true},
		{"no pattern", "strong financials", 0, false},
		{"zero", 0.0, 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := parseMultiple(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.want, got, 0.001)
			}
		})
	}
}

func TestScoringInput(t *testing.T) {
	t.Parallel()

	raw := rawListing(map[string]any{
		"title":       "Shop",
		"listing_url": "https://example.com/1",
		"industry":    "laundromat",
		"employees":   "4 part-time",
	})
	category, employees := ScoringInput(raw)
	assert.Equal(t, "laundromat", category)
	assert.Equal(t, "4 part-time", employees)
}
