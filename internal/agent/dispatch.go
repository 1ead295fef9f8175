package agent

import (
	"context"

	"negotiator.ai/internal/classifier"
	"negotiator.ai/internal/interpret"
	"negotiator.ai/internal/negotiation"
	"negotiator.ai/internal/protocol"
)

// Canned replies.
const (
	TextNoOutstandingAccept = "I'm sorry, but I'm not aware of any outstanding offers."
	TextRejectAcknowledged  = "I'm sorry you rejected my bid. I hope we can do business in the near future."
	TextRejectConfused      = "There must be some confusion; I'm not aware of any outstanding offers."
	TextRejectNoHistory     = "OK, but I didn't think we had any outstanding offers."
	TextInformation         = "OK. Thanks for letting me know."
)

// MayIRespond reports whether a message is ours to answer: the speaker has a
// role and either addressed nobody in particular or addressed us.
func MayIRespond(md negotiation.Metadata, self string) bool {
	return md.Role != "" && (md.Addressee == "" || md.Addressee == self)
}

// interpretMessage classifies and interprets msg. A classifier failure yields
// NotUnderstood with ok false. Caller holds mu.
func (a *Agent) interpretMessage(ctx context.Context, msg protocol.InboundMessage) (act negotiation.Act, ok bool) {
	it := interpret.Interpreter{AgentName: a.name, Now: a.cfg.Now}
	in := classifierInput(msg)
	c, err := a.cfg.Classifier.Classify(ctx, in)
	ok = err == nil
	if !ok {
		a.stats.classifierFailures.Add(1)
		a.logf("classify message from %s failed: %v", msg.Speaker, err)
		c = classifier.Classification{}
	}
	c.Input = in
	act = it.Interpret(c)
	act.ID = msg.ID
	return act, ok
}

// dispatch routes a message from someone else and returns the replies to
// relay. Caller holds mu.
func (a *Agent) dispatch(ctx context.Context, msg protocol.InboundMessage) []protocol.OutboundMessage {
	act, _ := a.interpretMessage(ctx, msg)
	md := act.Metadata
	a.emit(negotiation.Event{Kind: negotiation.EventInbound, Counterparty: md.Speaker, Act: &act, Text: msg.Text})

	if md.Role != negotiation.RoleBuyer || !MayIRespond(md, a.name) {
		a.stats.ignored.Add(1)
		return nil
	}
	buyer := md.Speaker

	switch act.Kind {
	case negotiation.KindAcceptOffer:
		last, ok := a.ledger.LastSellOffer(buyer, a.name)
		if !ok {
			return a.reply(buyer, md.EnvironmentID, TextNoOutstandingAccept)
		}
		confirm := negotiation.Act{
			ID:     a.cfg.NewID(),
			Kind:   negotiation.KindAcceptOffer,
			Bundle: last.Bundle.Clone(),
			Metadata: negotiation.Metadata{
				Speaker:       a.name,
				Addressee:     buyer,
				Role:          negotiation.RoleSeller,
				EnvironmentID: md.EnvironmentID,
				Timestamp:     a.cfg.Now(),
			},
		}
		a.ledger.Clear(buyer)
		a.stats.deals.Add(1)
		a.emit(negotiation.Event{Kind: negotiation.EventDeal, Counterparty: buyer, Act: &confirm})
		return a.send(confirm, a.phraser.Render(confirm, true), "")

	case negotiation.KindRejectOffer:
		hist, ok := a.ledger.History(buyer)
		switch {
		case !ok:
			return a.reply(buyer, md.EnvironmentID, TextRejectNoHistory)
		case !hasOwnSellOffer(hist, a.name):
			return a.reply(buyer, md.EnvironmentID, TextRejectConfused)
		default:
			a.ledger.Clear(buyer)
			return a.reply(buyer, md.EnvironmentID, TextRejectAcknowledged)
		}

	case negotiation.KindInformation:
		return a.reply(buyer, md.EnvironmentID, TextInformation)

	case negotiation.KindBuyOffer, negotiation.KindBuyRequest:
		return a.answerOffer(act)

	default:
		a.stats.ignored.Add(1)
		return nil
	}
}

// answerOffer records the buyer's offer, runs the pricing policy and records
// our answer. Caller holds mu.
func (a *Agent) answerOffer(offer negotiation.Act) []protocol.OutboundMessage {
	buyer := offer.Metadata.Speaker
	a.ledger.Append(buyer, offer)

	if a.utility == nil {
		a.logf("offer from %s ignored: %v", buyer, ErrNoUtility)
		return nil
	}
	now := a.cfg.Now()
	d, err := a.engine.Decide(offer, a.ledger, *a.utility, &a.clock, a.name, now)
	if err != nil {
		a.logf("decide offer from %s: %v", buyer, err)
		return nil
	}
	out := d.Act
	out.ID = a.cfg.NewID()
	a.ledger.Record(buyer, out)
	if out.Kind == negotiation.KindAcceptOffer {
		a.stats.deals.Add(1)
		a.emit(negotiation.Event{Kind: negotiation.EventDeal, Counterparty: buyer, Act: &out, Rule: d.Rule})
	}
	return a.send(out, a.phraser.Render(out, false), d.Rule)
}

// recordEcho updates the ledger from one of our own messages relayed back to
// us. Caller holds mu.
func (a *Agent) recordEcho(ctx context.Context, msg protocol.InboundMessage) {
	var act negotiation.Act
	if kind, ok := bidKind(msg.Bid); ok {
		act = negotiation.Act{
			ID:     msg.ID,
			Kind:   kind,
			Bundle: negotiation.Bundle{Quantity: msg.Bid.Quantity, Price: msg.Bid.Price}.Clone(),
			Metadata: negotiation.Metadata{
				Speaker:       msg.Speaker,
				Addressee:     msg.Addressee,
				Role:          msg.Role,
				EnvironmentID: msg.EnvironmentUUID,
				Timestamp:     a.cfg.Now(),
			},
		}
	} else {
		var ok bool
		if act, ok = a.interpretMessage(ctx, msg); !ok {
			return
		}
	}

	cp := act.Metadata.Addressee
	if cp == "" || act.Kind == negotiation.KindNotUnderstood {
		return
	}
	switch {
	case act.Kind.Closes():
		a.ledger.Clear(cp)
	case !a.ledger.Recorded(cp, act):
		a.ledger.Append(cp, act)
	}
}

func bidKind(b *protocol.Bid) (negotiation.Kind, bool) {
	if b == nil {
		return "", false
	}
	return b.Kind()
}

func hasOwnSellOffer(hist []negotiation.Act, self string) bool {
	for _, h := range hist {
		if h.Kind == negotiation.KindSellOffer && h.Metadata.Speaker == self {
			return true
		}
	}
	return false
}

// reply builds a canned text answer with no bid. Caller holds mu.
func (a *Agent) reply(to, env, text string) []protocol.OutboundMessage {
	m := a.outbound(a.cfg.NewID(), to, env, text, nil)
	a.emit(negotiation.Event{Kind: negotiation.EventOutbound, Counterparty: to, Text: text})
	return []protocol.OutboundMessage{m}
}

// send wraps an outbound act, reusing the act's ID as the message ID so the
// relayed echo is recognized. Caller holds mu.
func (a *Agent) send(act negotiation.Act, text string, rule negotiation.Rule) []protocol.OutboundMessage {
	md := act.Metadata
	m := a.outbound(act.ID, md.Addressee, md.EnvironmentID, text, protocol.BidFor(act))
	a.emit(negotiation.Event{Kind: negotiation.EventOutbound, Counterparty: md.Addressee, Act: &act, Rule: rule, Text: text})
	return []protocol.OutboundMessage{m}
}

func (a *Agent) outbound(id, to, env, text string, bid *protocol.Bid) protocol.OutboundMessage {
	a.stats.replies.Add(1)
	return protocol.OutboundMessage{
		ID:              id,
		Text:            text,
		Speaker:         a.name,
		Addressee:       to,
		Role:            negotiation.RoleSeller,
		EnvironmentUUID: env,
		Timestamp:       a.cfg.Now().UnixMilli(),
		Bid:             bid,
	}
}
