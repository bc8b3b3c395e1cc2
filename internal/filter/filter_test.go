package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/acquisition-cli/internal/config"
	"github.com/sells-group/acquisition-cli/internal/model"
)

func testCriteria() *Criteria {
	return New(config.CriteriaConfig{
		MaxPrice:           5_000_000,
		MaxDistanceMiles:   50,
		MaxMultiple:        5.0,
		RetirementKeywords: []string{"retirement", "retiring", "succession", "aging", "health"},
		AcceptableLabor:    []string{"low", "medium"},
	})
}

func ptr(f float64) *float64 { return &f }

func admissible() model.Listing {
	return model.Listing{
		Title:               "Laundromat - Retiring Owner",
		Price:               ptr(450_000),
		DistanceMiles:       ptr(3.2),
		EarningsMultiple:    ptr(3.2),
		ReasonForSale:       "owner retiring",
		IsRetirementRelated: true,
		LaborIntensity:      model.TierLow,
		AIRisk:              model.TierLow,
		ListingURL:          "https://example.com/l/1",
	}
}

func TestEvaluate_AllRulesPass(t *testing.T) {
	t.Parallel()

	res := testCriteria().Evaluate(admissible())
	assert.True(t, res.Pass)
	assert.NotNil(t, res.FailedRules)
	assert.Empty(t, res.FailedRules)
}

func TestEvaluate_PriceRule(t *testing.T) {
	t.Parallel()

	c := testCriteria()

	tests := []struct {
		name  string
		price *float64
		pass  bool
	}{
		{"null price passes through", nil, true},
		{"under max", ptr(4_999_999), true},
		{"exactly max", ptr(5_000_000), true},
		{"one cent over", ptr(5_000_000.01), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l := admissible()
			l.Price = tt.price
			res := c.Evaluate(l)
			assert.Equal(t, tt.pass, res.Pass)
			if !tt.pass {
				assert.Equal(t, []string{RulePrice}, res.FailedRules)
			}
		})
	}
}

func TestEvaluate_DistanceRule(t *testing.T) {
	t.Parallel()

	c := testCriteria()

	l := admissible()
	l.DistanceMiles = nil
	assert.True(t, c.Evaluate(l).Pass, "unresolved distance passes through")

	l.DistanceMiles = ptr(50.0)
	assert.True(t, c.Evaluate(l).Pass)

	l.DistanceMiles = ptr(50.1)
	res := c.Evaluate(l)
	assert.False(t, res.Pass)
	assert.Contains(t, res.FailedRules, RuleDistance)
}

func TestEvaluate_MultipleRule(t *testing.T) {
	t.Parallel()

	c := testCriteria()

	l := admissible()
	l.EarningsMultiple = nil
	assert.True(t, c.Evaluate(l).Pass)

	l.EarningsMultiple = ptr(5.5)
	res := c.Evaluate(l)
	assert.False(t, res.Pass)
	assert.Contains(t, res.FailedRules, RuleMultiple)
}

func TestEvaluate_ReasonRule(t *testing.T) {
	t.Parallel()

	c := testCriteria()

	l := admissible()
	l.IsRetirementRelated = false
	res := c.Evaluate(l)
	assert.False(t, res.Pass)
	assert.Contains(t, res.FailedRules, RuleReason)
}

func TestEvaluate_LaborRule(t *testing.T) {
	t.Parallel()

	c := testCriteria()

	l := admissible()
	l.LaborIntensity = model.TierHigh
	res := c.Evaluate(l)
	assert.False(t, res.Pass)
	assert.Contains(t, res.FailedRules, RuleLabor)
}

func TestEvaluate_MultipleFailuresAllReported(t *testing.T) {
	t.Parallel()

	l := admissible()
	l.Price = ptr(9_000_000)
	l.DistanceMiles = ptr(120)
	l.IsRetirementRelated = false
	l.LaborIntensity = model.TierHigh

	res := testCriteria().Evaluate(l)
	assert.False(t, res.Pass)
	assert.ElementsMatch(t, []string{RulePrice, RuleDistance, RuleReason, RuleLabor}, res.FailedRules)
}

func TestEvaluate_DisabledRules(t *testing.T) {
	t.Parallel()

	c := New(config.CriteriaConfig{
		MaxPrice:           100,
		MaxDistanceMiles:   50,
		MaxMultiple:        5,
		RetirementKeywords: []string{"retir"},
		AcceptableLabor:    []string{"low"},
		DisabledRules:      []string{"price", "reason", "labor"},
	})

	l := admissible()
	l.Price = ptr(1_000_000) // over the 100 cap, but price rule disabled
	l.IsRetirementRelated = false
	l.LaborIntensity = model.TierHigh

	res := c.Evaluate(l)
	assert.True(t, res.Pass)
	assert.Empty(t, res.FailedRules)
}

func TestIsRetirementRelated(t *testing.T) {
	t.Parallel()

	c := testCriteria()

	tests := []struct {
		reason string
		want   bool
	}{
		{"Owner retiring after 30 years", true},
		{"RETIREMENT sale", true},
		{"succession planning", true},
		{"health issues force sale", true},
		{"relocating out of state", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, c.IsRetirementRelated(tt.reason))
		})
	}
}

func TestIsRetirementRelated_SubstringKeyword(t *testing.T) {
	t.Parallel()

	c := New(config.CriteriaConfig{RetirementKeywords: []string{"retir"}})
	assert.True(t, c.IsRetirementRelated("owner retiring"))
	assert.True(t, c.IsRetirementRelated("Retirement"))
	assert.False(t, c.IsRetirementRelated("tired of the commute"))
}
