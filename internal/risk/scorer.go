// Package risk scores listings for labor intensity and AI-disruption risk
// using a curated keyword and industry-category ruleset. Scoring is pure and
// deterministic: the same text always yields the same tiers.
package risk

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/acquisition-cli/internal/model"
)

// Input carries the listing text consulted by the scorer.
type Input struct {
	Title       string
	Description string
	Category    string
	// Employees is the raw staffing text from the listing, e.g. "12 FT employees".
	Employees string
}

// Employee-count cutoffs for labor tiering.
const (
	highLaborEmployees = 20
	lowLaborEmployees  = 5
)

var highAIRiskKeywords = []string{
	"data entry", "customer service", "bookkeeping", "accounting",
	"translation", "transcription", "content writing", "marketing",
}

var lowAIRiskKeywords = []string{
	"manufacturing", "logistics", "construction", "plumbing",
	"electrical", "specialized", "custom", "hands-on", "physical",
}

var highLaborKeywords = []string{
	"restaurant", "retail", "customer service", "call center",
	"hospitality", "cleaning", "maintenance staff", "24/7 staff",
}

var lowLaborKeywords = []string{
	"automated", "technology", "software", "equipment rental",
	"self-service", "online", "digital", "low maintenance", "absentee",
}

// categoryTiers maps industry categories to baseline tiers. A category can
// raise a keyword-derived tier, or supply the tier outright when the text
// carried no keyword signal at all.
var categoryTiers = map[string]struct{ labor, ai model.Tier }{
	"restaurant":    {model.TierHigh, model.TierLow},
	"food service":  {model.TierHigh, model.TierLow},
	"retail":        {model.TierHigh, model.TierMedium},
	"hospitality":   {model.TierHigh, model.TierLow},
	"laundromat":    {model.TierLow, model.TierLow},
	"car wash":      {model.TierLow, model.TierLow},
	"vending":       {model.TierLow, model.TierLow},
	"self storage":  {model.TierLow, model.TierLow},
	"storage":       {model.TierLow, model.TierLow},
	"manufacturing": {model.TierMedium, model.TierLow},
	"construction":  {model.TierMedium, model.TierLow},
	"plumbing":      {model.TierMedium, model.TierLow},
	"electrical":    {model.TierMedium, model.TierLow},
	"hvac":          {model.TierMedium, model.TierLow},
	"landscaping":   {model.TierHigh, model.TierLow},
	"accounting":    {model.TierLow, model.TierHigh},
	"bookkeeping":   {model.TierLow, model.TierHigh},
	"marketing":     {model.TierMedium, model.TierHigh},
	"call center":   {model.TierHigh, model.TierHigh},
	"e-commerce":    {model.TierLow, model.TierMedium},
}

var digits = regexp.MustCompile(`\d+`)

// Score maps listing text to (labor intensity, AI-disruption risk). When
// signals conflict, the higher-risk tier wins; unscoreable listings default
// to medium on both axes so data gaps are not promoted past the filter.
func Score(in Input) (labor, ai model.Tier) {
	text := strings.ToLower(in.Title + " " + in.Description + " " + in.Category)

	labor = scoreAxis(text, highLaborKeywords, lowLaborKeywords)
	ai = scoreAxis(text, highAIRiskKeywords, lowAIRiskKeywords)

	if n, ok := employeeCount(in.Employees); ok {
		switch {
		case n > highLaborEmployees:
			labor = model.TierHigh
		case n < lowLaborEmployees && labor == model.TierMedium:
			labor = model.TierLow
		}
	}

	if base, ok := categoryTiers[strings.TrimSpace(strings.ToLower(in.Category))]; ok {
		labor = model.Worse(labor, base.labor)
		ai = model.Worse(ai, base.ai)
		// A category baseline below medium is trusted over the default.
		if labor == model.TierMedium && base.labor == model.TierLow && !anyKeyword(text, highLaborKeywords) {
			labor = model.TierLow
		}
		if ai == model.TierMedium && base.ai == model.TierLow && !anyKeyword(text, highAIRiskKeywords) {
			ai = model.TierLow
		}
	}

	return labor, ai
}

// scoreAxis applies the high-before-low tie-break: any high-tier keyword
// outweighs low-tier keywords, and no signal at all means medium.
func scoreAxis(text string, high, low []string) model.Tier {
	switch {
	case anyKeyword(text, high):
		return model.TierHigh
	case anyKeyword(text, low):
		return model.TierLow
	default:
		return model.TierMedium
	}
}

func anyKeyword(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func employeeCount(s string) (int, bool) {
	m := digits.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

var dailyVisitKeywords = []string{"restaurant", "retail", "customer service"}
var weeklyVisitKeywords = []string{"office", "consulting", "services"}
var monthlyVisitKeywords = []string{"rental", "storage", "equipment", "property"}

// VisitFrequency estimates how often an owner must be on site. Defaults to
// weekly when nothing matches.
func VisitFrequency(description, category string) model.VisitFrequency {
	text := strings.ToLower(description + " " + category)
	switch {
	case anyKeyword(text, dailyVisitKeywords):
		return model.VisitDaily
	case anyKeyword(text, weeklyVisitKeywords):
		return model.VisitWeekly
	case anyKeyword(text, monthlyVisitKeywords):
		return model.VisitMonthly
	default:
		return model.VisitWeekly
	}
}
