// Package scorer ranks listings against the route catalog using a weighted
// combination of price, route tier and walking distance.
package scorer

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/sells-group/property-finder/internal/config"
	"github.com/sells-group/property-finder/internal/model"
)

// weightTolerance absorbs float noise when checking that weights sum to 1.
const weightTolerance = 1e-6

// WeightSum returns the sum of the three factor weights.
func WeightSum(c config.ScoringConfig) float64 {
	return c.PriceWeight + c.TierWeight + c.WalkWeight
}

// ParseTierWeights converts the configured tier weight map into typed tiers.
// Keys are matched case-insensitively, so viper's lower-cased keys are fine.
func ParseTierWeights(raw map[string]float64) (map[model.Tier]float64, error) {
	out := make(map[model.Tier]float64, len(raw))
	for k, w := range raw {
		tier, err := model.ParseTier(k)
		if err != nil {
			return nil, &ConfigurationError{Problems: []string{fmt.Sprintf("tier_weights: unknown tier %q", k)}}
		}
		if _, dup := out[tier]; dup {
			return nil, &ConfigurationError{Problems: []string{fmt.Sprintf("tier_weights: %s given twice", tier)}}
		}
		out[tier] = w
	}
	return out, nil
}

// ValidateConfig checks that a ScoringConfig is internally consistent. Every
// failure is reported in a single *ConfigurationError.
func ValidateConfig(c config.ScoringConfig) error {
	var errs []string

	weights := map[string]float64{
		"price_weight": c.PriceWeight,
		"tier_weight":  c.TierWeight,
		"walk_weight":  c.WalkWeight,
	}
	for name, w := range weights {
		if !finite(w) {
			errs = append(errs, fmt.Sprintf("%s must be a finite number", name))
		} else if w < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", name))
		}
	}
	if sum := WeightSum(c); math.Abs(sum-1) > weightTolerance {
		errs = append(errs, fmt.Sprintf("weights must sum to 1.0, got %.4f", sum))
	}

	switch {
	case !finite(c.PriceBand.Min):
		errs = append(errs, "price_band.min must be a finite number")
	case c.PriceBand.Min < 0:
		errs = append(errs, "price_band.min must be >= 0")
	}
	if !finite(c.PriceBand.Max) {
		errs = append(errs, "price_band.max must be a finite number")
	} else if finite(c.PriceBand.Min) && c.PriceBand.Min > c.PriceBand.Max {
		errs = append(errs, "price_band.min must be <= price_band.max")
	}

	if c.MaxWalkMinutes <= 0 {
		errs = append(errs, "max_walk_minutes must be > 0")
	}

	tiers, err := ParseTierWeights(c.TierWeights)
	if err != nil {
		var ce *ConfigurationError
		if errors.As(err, &ce) {
			errs = append(errs, ce.Problems...)
		}
	} else {
		for _, tier := range model.AllTiers() {
			w, ok := tiers[tier]
			if !ok {
				errs = append(errs, fmt.Sprintf("tier_weights: missing %s", tier))
				continue
			}
			if w < 0 || w > 1 || math.IsNaN(w) {
				errs = append(errs, fmt.Sprintf("tier_weights: %s must be within [0, 1]", tier))
			}
		}
		// Better tiers may never weigh less than worse ones.
		all := model.AllTiers()
		for i := 1; i < len(all); i++ {
			hi, okHi := tiers[all[i-1]]
			lo, okLo := tiers[all[i]]
			if okHi && okLo && hi < lo {
				errs = append(errs, fmt.Sprintf("tier_weights: %s (%.2f) must be >= %s (%.2f)", all[i-1], hi, all[i], lo))
			}
		}
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return &ConfigurationError{Problems: errs}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func describeProblems(problems []string) string {
	return strings.Join(problems, "; ")
}
