package negotiation

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// UtilityInfo is the seller's cost model for the current round.
type UtilityInfo struct {
	Name         string
	CurrencyUnit string
	UnitCosts    map[string]float64
}

// UnitCost returns the configured unit cost for good.
func (u UtilityInfo) UnitCost(good string) (float64, bool) {
	c, ok := u.UnitCosts[good]
	return c, ok
}

// Goods returns the configured goods, sorted.
func (u UtilityInfo) Goods() []string {
	out := make([]string, 0, len(u.UnitCosts))
	for g := range u.UnitCosts {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// ConfigError reports a bundle good with no configured unit cost.
type ConfigError struct {
	Good string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("no unit cost configured for good %q", e.Good)
}

// Utility is the seller's net value for a bundle: its price (zero if absent)
// minus the unit cost of every good in it.
func Utility(info UtilityInfo, b Bundle) (float64, error) {
	util := 0.0
	if b.Price != nil {
		util = b.Price.Value
	}
	for _, good := range sortedGoods(b.Quantity) {
		cost, ok := info.UnitCost(good)
		if !ok {
			return 0, &ConfigError{Good: good}
		}
		util -= cost * b.Quantity[good]
	}
	return util, nil
}

// BundleCost is the raw cost basis of the bundle's goods.
func BundleCost(info UtilityInfo, b Bundle) (float64, error) {
	u, err := Utility(info, Bundle{Quantity: b.Quantity})
	if err != nil {
		return 0, err
	}
	return -u, nil
}

type CurrencyCheck int

const (
	CurrencyAbsent CurrencyCheck = iota
	CurrencyMatch
	CurrencyMismatch
)

func (c CurrencyCheck) String() string {
	switch c {
	case CurrencyMatch:
		return "match"
	case CurrencyMismatch:
		return "mismatch"
	default:
		return "absent"
	}
}

// CheckCurrency compares the bundle's price unit with the round currency.
// A mismatch is advisory only; no conversion is attempted.
func CheckCurrency(info UtilityInfo, b Bundle) CurrencyCheck {
	if b.Price == nil || b.Price.Unit == "" {
		return CurrencyAbsent
	}
	if b.Price.Unit == info.CurrencyUnit {
		return CurrencyMatch
	}
	return CurrencyMismatch
}

// Quantize rounds a monetary value to cents, half away from zero.
func Quantize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func sortedGoods(q map[string]float64) []string {
	out := make([]string, 0, len(q))
	for g := range q {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}
