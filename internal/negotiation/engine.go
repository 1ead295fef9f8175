package negotiation

import (
	"log"
	"math"
	"math/rand"
	"time"
)

// Policy constants.
const (
	AcceptMarkupRatio  = 2.0
	RejectMarkupRatio  = -0.5
	MinDicker          = 0.10
	MinMarkupRatio     = 0.20
	OpeningMarkupMin   = 2.0
	OpeningMarkupSpan  = 1.0
	CeilingMarkupStart = 2.0
	CeilingMarkupEnd   = 0.5
)

// Rule names the branch of the decision table that produced an outcome.
type Rule string

const (
	RuleOpeningOffer    Rule = "opening_offer"
	RuleAcceptMarkup    Rule = "accept_markup"
	RuleAcceptDicker    Rule = "accept_small_dicker"
	RuleRejectMarkup    Rule = "reject_markup"
	RuleRejectNoCost    Rule = "reject_degenerate_cost"
	RuleCounterOffer    Rule = "counter_offer"
	RuleCounterAccepted Rule = "counter_converged"
)

// Decision is the engine's outbound act plus the rule that chose it.
type Decision struct {
	Act         Act
	Rule        Rule
	Utility     float64
	BundleCost  float64
	MarkupRatio float64
}

// Engine is the seller's pricing policy. Rand drives the markup draws; a nil
// Rand falls back to the math/rand global source.
type Engine struct {
	Rand   *rand.Rand
	Logger *log.Logger
}

// Decide answers a buyer's offer or request. self is this agent's name; the
// ledger is only read.
func (e *Engine) Decide(offer Act, ledger *Ledger, info UtilityInfo, clock *RoundClock, self string, now time.Time) (Decision, error) {
	buyer := offer.Metadata.Speaker
	utility, err := Utility(info, offer.Bundle)
	if err != nil {
		return Decision{}, err
	}
	if c := CheckCurrency(info, offer.Bundle); c == CurrencyMismatch {
		e.logf("currency mismatch: offer=%s round=%s (no conversion applied)", offer.Price.Unit, info.CurrencyUnit)
	}

	out := Act{
		Bundle: Bundle{Quantity: offer.Bundle.Clone().Quantity},
		Metadata: Metadata{
			Speaker:       self,
			Addressee:     buyer,
			Role:          RoleSeller,
			EnvironmentID: offer.Metadata.EnvironmentID,
			Timestamp:     now,
		},
	}

	if !offer.HasPrice() {
		if -utility <= 0 {
			out.Kind = KindRejectOffer
			return Decision{Act: out, Rule: RuleRejectNoCost, Utility: utility, BundleCost: -utility}, nil
		}
		// Free to name a price: markup of 2x..3x over the bundle cost.
		markup := OpeningMarkupMin + OpeningMarkupSpan*e.draw()
		out.Kind = KindSellOffer
		out.Price = &Price{Unit: info.CurrencyUnit, Value: Quantize((1.0 - markup) * utility)}
		return Decision{Act: out, Rule: RuleOpeningOffer, Utility: utility, BundleCost: -utility, MarkupRatio: markup}, nil
	}

	offered := *offer.Price
	cost := offered.Value - utility
	d := Decision{Utility: utility, BundleCost: cost}

	if cost <= 0 {
		out.Kind = KindRejectOffer
		d.Act, d.Rule = out, RuleRejectNoCost
		return d, nil
	}
	d.MarkupRatio = utility / cost

	last, hasLast := ledger.LastSellPrice(buyer, self)
	switch {
	case d.MarkupRatio > AcceptMarkupRatio:
		out.Kind = KindAcceptOffer
		out.Price = &offered
		d.Rule = RuleAcceptMarkup
	case hasLast && math.Abs(offered.Value-last.Value) < MinDicker:
		out.Kind = KindAcceptOffer
		out.Price = &offered
		d.Rule = RuleAcceptDicker
	case d.MarkupRatio < RejectMarkupRatio:
		out.Kind = KindRejectOffer
		d.Rule = RuleRejectMarkup
	default:
		var lastPtr *Price
		if hasLast {
			lastPtr = &last
		}
		p := e.GenerateSellPrice(cost, offered, lastPtr, clock.Remaining(now), clock.Duration())
		if p.Value < offered.Value+MinDicker {
			out.Kind = KindAcceptOffer
			out.Price = &offered
			d.Rule = RuleCounterAccepted
		} else {
			out.Kind = KindSellOffer
			out.Price = &p
			d.Rule = RuleCounterOffer
		}
	}
	d.Act = out
	return d, nil
}

// GenerateSellPrice picks a counteroffer between the buyer's markup (at least
// MinMarkupRatio) and a ceiling: the previous counteroffer to this buyer, or a
// ceiling that decays from 2.0 to 0.5 as the round runs out.
func (e *Engine) GenerateSellPrice(bundleCost float64, offered Price, last *Price, remaining, duration time.Duration) Price {
	current := offered.Value/bundleCost - 1.0

	var ceiling float64
	if last != nil {
		ceiling = last.Value/bundleCost - 1.0
	} else {
		ceiling = CeilingMarkupStart - (CeilingMarkupStart-CeilingMarkupEnd)*elapsedFraction(remaining, duration)
	}
	floor := math.Max(current, MinMarkupRatio)

	markup := floor
	if ceiling > floor {
		markup = floor + e.draw()*(ceiling-floor)
	}
	return Price{Unit: offered.Unit, Value: Quantize(bundleCost * (1.0 + markup))}
}

func (e *Engine) draw() float64 {
	if e.Rand != nil {
		return e.Rand.Float64()
	}
	return rand.Float64()
}

func (e *Engine) logf(format string, args ...any) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
	}
}
