package types

import "github.com/shopspring/decimal"

// EventType tags the variants of the hub event union.
type EventType string

const (
	EventSignal    EventType = "signal"
	EventSubscribe EventType = "subscribe"
	EventEntrust   EventType = "entrust"
	EventBroker    EventType = "broker"
	EventNone      EventType = "none"
)

// Control commands carried by EventNone.
const (
	CmdQuit = "QUIT"
	CmdPoll = "POLL"
)

// Event is a control/flow value exchanged between the hub and its runners.
type Event struct {
	Type EventType `json:"type"`

	Signal  *Signal      `json:"signal,omitempty"`
	Codes   []string     `json:"codes,omitempty"`
	Entrust *Entrust     `json:"entrust,omitempty"`
	Broker  *BrokerEvent `json:"broker,omitempty"`
	Cmd     string       `json:"cmd,omitempty"`
}

// NewSignalEvent wraps a signal.
func NewSignalEvent(s *Signal) Event {
	return Event{Type: EventSignal, Signal: s}
}

// NewSubscribeEvent wraps a subscription request.
func NewSubscribeEvent(codes []string) Event {
	return Event{Type: EventSubscribe, Codes: codes}
}

// NewEntrustEvent wraps an entrust bound for the broker.
func NewEntrustEvent(e *Entrust) Event {
	return Event{Type: EventEntrust, Entrust: e}
}

// NewBrokerPushEvent wraps a broker push bound for the hub.
func NewBrokerPushEvent(b *BrokerEvent) Event {
	return Event{Type: EventBroker, Broker: b}
}

// NewNoneEvent builds a control sentinel (QUIT, POLL).
func NewNoneEvent(cmd string) Event {
	return Event{Type: EventNone, Cmd: cmd}
}

// BrokerEventType tags broker-to-hub pushes.
type BrokerEventType string

const (
	BrokerPushEntrust  BrokerEventType = "entrust"
	BrokerPushFundSync BrokerEventType = "fund_sync"
	BrokerPushPosition BrokerEventType = "position"
)

// FundSync carries a broker-side cash reconciliation.
type FundSync struct {
	Total     decimal.Decimal `json:"total"`
	Available decimal.Decimal `json:"available"`
	Hold      decimal.Decimal `json:"hold"`
}

// BrokerEvent is one push from the broker adapter: an entrust status update,
// a fund sync, or a full position sync.
type BrokerEvent struct {
	Type      BrokerEventType `json:"type"`
	Entrust   *Entrust        `json:"entrust,omitempty"`
	Fund      *FundSync       `json:"fund,omitempty"`
	Positions []Position      `json:"positions,omitempty"`
}

// TaskTarget identifies which per-account task raised an exception.
type TaskTarget string

const (
	TargetQuotation TaskTarget = "quotation"
	TargetStrategy  TaskTarget = "strategy"
	TargetRisk      TaskTarget = "risk"
	TargetBroker    TaskTarget = "broker"
)
