// Package filter evaluates listings against the configured acquisition
// criteria. Rules on null fields deliberately pass through so data gaps
// surface borderline candidates for manual review instead of hiding them.
package filter

import (
	"strings"

	"github.com/sells-group/acquisition-cli/internal/config"
	"github.com/sells-group/acquisition-cli/internal/model"
)

// Rule names as reported in FilterResult.FailedRules and run statistics.
const (
	RulePrice    = "price"
	RuleDistance = "distance"
	RuleMultiple = "multiple"
	RuleReason   = "reason"
	RuleLabor    = "labor"
)

// Criteria is the compiled rule set. Build one with New; thresholds come
// entirely from configuration.
type Criteria struct {
	maxPrice           float64
	maxDistanceMiles   float64
	maxMultiple        float64
	retirementKeywords []string
	acceptableLabor    map[model.Tier]bool
	disabled           map[string]bool
}

// New compiles a Criteria from configuration.
func New(cfg config.CriteriaConfig) *Criteria {
	c := &Criteria{
		maxPrice:         cfg.MaxPrice,
		maxDistanceMiles: cfg.MaxDistanceMiles,
		maxMultiple:      cfg.MaxMultiple,
		acceptableLabor:  make(map[model.Tier]bool, len(cfg.AcceptableLabor)),
		disabled:         make(map[string]bool, len(cfg.DisabledRules)),
	}
	for _, kw := range cfg.RetirementKeywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			c.retirementKeywords = append(c.retirementKeywords, kw)
		}
	}
	for _, tier := range cfg.AcceptableLabor {
		c.acceptableLabor[model.Tier(strings.ToLower(strings.TrimSpace(tier)))] = true
	}
	for _, rule := range cfg.DisabledRules {
		c.disabled[strings.ToLower(strings.TrimSpace(rule))] = true
	}
	return c
}

// FilterResult reports the evaluation outcome. FailedRules is always
// non-nil, even on a pass, so downstream reporting can explain near-misses.
type FilterResult struct {
	Pass        bool     `json:"pass"`
	FailedRules []string `json:"failed_rules"`
}

// IsRetirementRelated reports whether the reason-for-sale text matches any
// configured retirement keyword, case-insensitively.
func (c *Criteria) IsRetirementRelated(reasonForSale string) bool {
	reason := strings.ToLower(reasonForSale)
	for _, kw := range c.retirementKeywords {
		if strings.Contains(reason, kw) {
			return true
		}
	}
	return false
}

// Evaluate runs every enabled rule against the listing. A listing is
// admitted only when all enabled rules pass.
func (c *Criteria) Evaluate(l model.Listing) FilterResult {
	failed := []string{}

	// price: unknown price passes through for manual review.
	if c.enabled(RulePrice) && l.Price != nil && *l.Price > c.maxPrice {
		failed = append(failed, RulePrice)
	}

	// distance: unresolved location passes through.
	if c.enabled(RuleDistance) && l.DistanceMiles != nil && *l.DistanceMiles > c.maxDistanceMiles {
		failed = append(failed, RuleDistance)
	}

	// multiple: unknown multiple passes through.
	if c.enabled(RuleMultiple) && l.EarningsMultiple != nil && *l.EarningsMultiple > c.maxMultiple {
		failed = append(failed, RuleMultiple)
	}

	if c.enabled(RuleReason) && !l.IsRetirementRelated {
		failed = append(failed, RuleReason)
	}

	if c.enabled(RuleLabor) && !c.acceptableLabor[l.LaborIntensity] {
		failed = append(failed, RuleLabor)
	}

	return FilterResult{Pass: len(failed) == 0, FailedRules: failed}
}

func (c *Criteria) enabled(rule string) bool {
	return !c.disabled[rule]
}
