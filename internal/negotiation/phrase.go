package negotiation

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

var (
	rejectionPhrases = []string{
		"No thanks. Your offer is much too low for me to consider.",
		"Forget it. That's not a serious offer.",
		"Sorry. You're going to have to do a lot better than that!",
	}
	acceptancePhrases = []string{
		"You've got a deal! I'll sell you",
		"You've got it! I'll let you have",
		"I accept your offer. Just to confirm, I'll give you",
	}
	confirmPhrases = []string{
		"I confirm that I'm selling you",
		"I'm so glad! This is to confirm that I'll give you",
		"Perfect! Just to confirm, I'm giving you",
	}
)

const sellOfferPhrase = "How about if I sell you"

// Phraser renders outbound acts as text. Template choice is uniform over
// the set for the act's kind; a seeded Rand makes it reproducible.
type Phraser struct {
	Rand *rand.Rand
}

// Render returns the text for act. confirm selects the confirmation
// templates for an accept that closes a deal the buyer already agreed to.
func (p *Phraser) Render(act Act, confirm bool) string {
	switch act.Kind {
	case KindSellOffer:
		return sellOfferPhrase + terms(act.Bundle)
	case KindRejectOffer:
		return p.pick(rejectionPhrases)
	case KindAcceptOffer:
		set := acceptancePhrases
		if confirm {
			set = confirmPhrases
		}
		return p.pick(set) + terms(act.Bundle)
	default:
		return ""
	}
}

func (p *Phraser) pick(set []string) string {
	if len(set) == 0 {
		return ""
	}
	if p.Rand != nil {
		return set[p.Rand.Intn(len(set))]
	}
	return set[rand.Intn(len(set))]
}

// terms renders " 10 widget 2 gadget for 30.00 USD."
func terms(b Bundle) string {
	var sb strings.Builder
	for _, good := range sortedGoods(b.Quantity) {
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatFloat(b.Quantity[good], 'f', -1, 64))
		sb.WriteByte(' ')
		sb.WriteString(good)
	}
	if b.Price != nil {
		fmt.Fprintf(&sb, " for %.2f %s", b.Price.Value, b.Price.Unit)
	}
	sb.WriteByte('.')
	return sb.String()
}
