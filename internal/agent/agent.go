// Package agent owns the seller's negotiation state and serializes every
// operation on it: round control, utility updates and the inbound message
// pipeline.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"negotiator.ai/internal/classifier"
	"negotiator.ai/internal/interpret"
	"negotiator.ai/internal/negotiation"
	"negotiator.ai/internal/protocol"
)

var (
	ErrRoundInactive = errors.New("round not active")
	ErrNoUtility     = errors.New("utilityInfo not initialized")
)

type Classifier interface {
	Classify(ctx context.Context, in classifier.Input) (classifier.Classification, error)
}

type Relay interface {
	Deliver(ctx context.Context, msg protocol.OutboundMessage) error
}

// Defaults fill the fields an inbound message leaves empty.
type Defaults struct {
	Speaker         string
	Role            string
	EnvironmentUUID string
}

type Config struct {
	Name          string
	Defaults      Defaults
	RoundDuration time.Duration

	Classifier Classifier
	Relay      Relay
	Sink       negotiation.EventSink

	// Rand drives pricing and phrasing. Nil seeds from the clock.
	Rand   *rand.Rand
	Now    func() time.Time
	NewID  func() string
	Logger *log.Logger
}

type Agent struct {
	cfg Config

	mu            sync.Mutex
	name          string
	utility       *negotiation.UtilityInfo
	clock         negotiation.RoundClock
	roundDuration time.Duration
	roundNumber   int
	ledger        *negotiation.Ledger
	engine        negotiation.Engine
	phraser       negotiation.Phraser

	stats counters
}

func New(cfg Config) (*Agent, error) {
	cfg.Name = strings.TrimSpace(cfg.Name)
	if cfg.Name == "" {
		return nil, fmt.Errorf("agent name is required")
	}
	if cfg.RoundDuration <= 0 {
		cfg.RoundDuration = 600 * time.Second
	}
	if cfg.Classifier == nil {
		cfg.Classifier = classifier.Unavailable
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Agent{
		cfg:           cfg,
		name:          cfg.Name,
		roundDuration: cfg.RoundDuration,
		ledger:        negotiation.NewLedger(),
		engine:        negotiation.Engine{Rand: cfg.Rand, Logger: cfg.Logger},
		phraser:       negotiation.Phraser{Rand: cfg.Rand},
	}, nil
}

func (a *Agent) Name() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.name
}

// SetUtility replaces the cost model wholesale. A non-empty name in the
// utility also renames the agent.
func (a *Agent) SetUtility(u protocol.UtilityInfo) protocol.UtilityInfo {
	a.mu.Lock()
	defer a.mu.Unlock()

	m := u.Model()
	if n := strings.TrimSpace(m.Name); n != "" {
		a.name = n
	}
	a.utility = &m
	a.emit(negotiation.Event{Kind: negotiation.EventUtility, Text: strings.Join(m.Goods(), ",")})
	return u
}

func (a *Agent) ReportUtility() (protocol.UtilityInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.utility == nil {
		return protocol.UtilityInfo{}, ErrNoUtility
	}
	return protocol.UtilityFromModel(*a.utility), nil
}

// StartRound clears the ledger and starts the clock. Absent fields keep the
// previous round's duration and number.
func (a *Agent) StartRound(req protocol.StartRoundRequest) negotiation.RoundState {
	a.mu.Lock()
	defer a.mu.Unlock()

	if req.RoundDuration != nil && *req.RoundDuration > 0 {
		a.roundDuration = time.Duration(*req.RoundDuration * float64(time.Second))
	}
	if req.RoundNumber != nil {
		a.roundNumber = *req.RoundNumber
	}
	a.ledger.Reset()
	a.clock.Start(a.roundDuration, a.roundNumber, a.cfg.Now())
	a.emit(negotiation.Event{Kind: negotiation.EventRoundStart})
	a.logf("round %d started duration=%s", a.roundNumber, a.roundDuration)
	return a.clock.State()
}

func (a *Agent) EndRound() negotiation.RoundState {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.clock.Stop(a.cfg.Now())
	a.emit(negotiation.Event{Kind: negotiation.EventRoundEnd})
	a.logf("round %d ended", a.roundNumber)
	return a.clock.State()
}

// ReceiveMessage runs one inbound message through classification, routing
// and the pricing policy, then relays any reply. It returns the message with
// defaults applied.
func (a *Agent) ReceiveMessage(ctx context.Context, msg protocol.InboundMessage) (protocol.InboundMessage, error) {
	a.mu.Lock()
	if !a.checkActive() {
		a.mu.Unlock()
		return msg, ErrRoundInactive
	}
	a.stats.received.Add(1)
	msg = a.applyDefaults(msg)

	var out []protocol.OutboundMessage
	if msg.Speaker == a.name {
		a.recordEcho(ctx, msg)
	} else {
		out = a.dispatch(ctx, msg)
	}
	a.mu.Unlock()

	a.deliver(ctx, out)
	return msg, nil
}

// ReceiveRejection handles the orchestrator refusing one of our messages.
// When an accept failed for lack of buyer budget the buyer gets a courtesy
// note so the silence is not mistaken for rudeness.
func (a *Agent) ReceiveRejection(ctx context.Context, n protocol.RejectionNotice) (protocol.RejectionNotice, error) {
	a.mu.Lock()
	if !a.checkActive() {
		a.mu.Unlock()
		return n, ErrRoundInactive
	}
	a.stats.rejections.Add(1)
	a.emit(negotiation.Event{Kind: negotiation.EventRejected, Counterparty: n.Addressee, Text: n.Reason()})

	var out []protocol.OutboundMessage
	if n.Reason() == protocol.RationaleInsufficientBudget && n.Bid != nil && n.Bid.Type == protocol.BidAccept {
		env := n.EnvironmentUUID
		if env == "" {
			env = a.cfg.Defaults.EnvironmentUUID
		}
		text := CourtesyText(n.Addressee)
		out = append(out, a.outbound(a.cfg.NewID(), n.Addressee, env, text, nil))
		a.emit(negotiation.Event{Kind: negotiation.EventOutbound, Counterparty: n.Addressee, Text: text})
	}
	a.mu.Unlock()

	a.deliver(ctx, out)
	return n, nil
}

// CourtesyText is sent when an accept fails because the buyer ran out of money.
func CourtesyText(addressee string) string {
	return "I'm sorry, " + addressee + ". I was ready to make a deal, but apparently you don't have enough money left."
}

// Classify runs the classifier alone, for diagnostics.
func (a *Agent) Classify(ctx context.Context, msg protocol.InboundMessage) (classifier.Classification, error) {
	a.mu.Lock()
	msg = a.applyDefaults(msg)
	a.mu.Unlock()
	return a.cfg.Classifier.Classify(ctx, classifierInput(msg))
}

// ExtractBid classifies and interprets a message without acting on it.
func (a *Agent) ExtractBid(ctx context.Context, msg protocol.InboundMessage) (protocol.ExtractedBid, error) {
	a.mu.Lock()
	msg = a.applyDefaults(msg)
	name := a.name
	a.mu.Unlock()

	in := classifierInput(msg)
	c, err := a.cfg.Classifier.Classify(ctx, in)
	if err != nil {
		return protocol.ExtractedBid{}, err
	}
	c.Input = in
	it := interpret.Interpreter{AgentName: name, Now: a.cfg.Now}
	return protocol.ExtractedBidFor(it.Interpret(c)), nil
}

// State is a point-in-time copy of the agent for admin reporting.
type State struct {
	Name         string                       `json:"name"`
	Round        negotiation.RoundState       `json:"round"`
	RemainingSec float64                      `json:"remaining_sec"`
	Utility      *protocol.UtilityInfo        `json:"utility,omitempty"`
	Ledger       map[string][]negotiation.Act `json:"ledger"`
}

func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := State{
		Name:   a.name,
		Round:  a.clock.State(),
		Ledger: a.ledger.Snapshot(),
	}
	if a.clock.Active() {
		if r := a.clock.Remaining(a.cfg.Now()); r > 0 {
			st.RemainingSec = r.Seconds()
		}
	}
	if a.utility != nil {
		u := protocol.UtilityFromModel(*a.utility)
		st.Utility = &u
	}
	return st
}

// checkActive expires the round if its time is up. Caller holds mu.
func (a *Agent) checkActive() bool {
	was := a.clock.Active()
	active := a.clock.Expire(a.cfg.Now())
	if was && !active {
		a.emit(negotiation.Event{Kind: negotiation.EventRoundEnd, Text: "expired"})
		a.logf("round %d expired", a.roundNumber)
	}
	return active
}

func (a *Agent) applyDefaults(msg protocol.InboundMessage) protocol.InboundMessage {
	if msg.Speaker == "" {
		msg.Speaker = a.cfg.Defaults.Speaker
	}
	if msg.Role == "" {
		msg.Role = a.cfg.Defaults.Role
	}
	if msg.EnvironmentUUID == "" {
		msg.EnvironmentUUID = a.cfg.Defaults.EnvironmentUUID
	}
	return msg
}

func classifierInput(msg protocol.InboundMessage) classifier.Input {
	return classifier.Input{
		Text:            msg.Text,
		Speaker:         msg.Speaker,
		Addressee:       msg.Addressee,
		Role:            msg.Role,
		EnvironmentUUID: msg.EnvironmentUUID,
	}
}

func (a *Agent) deliver(ctx context.Context, out []protocol.OutboundMessage) {
	if a.cfg.Relay == nil {
		return
	}
	for _, m := range out {
		if err := a.cfg.Relay.Deliver(ctx, m); err != nil {
			a.stats.relayFailures.Add(1)
			a.logf("relay to %s failed id=%s: %v", m.Addressee, m.ID, err)
			continue
		}
		a.stats.sent.Add(1)
	}
}

// emit stamps and forwards an event. Caller holds mu.
func (a *Agent) emit(ev negotiation.Event) {
	if a.cfg.Sink == nil {
		return
	}
	ev.Time = a.cfg.Now()
	ev.Round = a.roundNumber
	ev.Agent = a.name
	if err := a.cfg.Sink.WriteEvent(ev); err != nil {
		a.logf("event sink: %v", err)
	}
}

func (a *Agent) logf(format string, args ...any) {
	if a.cfg.Logger != nil {
		a.cfg.Logger.Printf(format, args...)
	}
}

type counters struct {
	received           atomic.Uint64
	ignored            atomic.Uint64
	replies            atomic.Uint64
	sent               atomic.Uint64
	relayFailures      atomic.Uint64
	classifierFailures atomic.Uint64
	deals              atomic.Uint64
	rejections         atomic.Uint64
}

// Metrics are cumulative since process start.
type Metrics struct {
	MessagesReceived   uint64
	MessagesIgnored    uint64
	Replies            uint64
	RelaySent          uint64
	RelayFailures      uint64
	ClassifierFailures uint64
	Deals              uint64
	Rejections         uint64
}

func (a *Agent) Metrics() Metrics {
	return Metrics{
		MessagesReceived:   a.stats.received.Load(),
		MessagesIgnored:    a.stats.ignored.Load(),
		Replies:            a.stats.replies.Load(),
		RelaySent:          a.stats.sent.Load(),
		RelayFailures:      a.stats.relayFailures.Load(),
		ClassifierFailures: a.stats.classifierFailures.Load(),
		Deals:              a.stats.deals.Load(),
		Rejections:         a.stats.rejections.Load(),
	}
}
