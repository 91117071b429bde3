// Package types defines the entities and events shared across the trading engine.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the traded instrument class.
type Kind string

const (
	KindStock Kind = "stock"
	KindFund  Kind = "fund"
)

// AcctType selects how an account is driven: historical replay, simulated
// fills against live quotes, or a real broker.
type AcctType string

const (
	AcctBacktest   AcctType = "backtest"
	AcctSimulation AcctType = "simulation"
	AcctReal       AcctType = "real"
)

// AcctStatus is the account lifecycle state.
type AcctStatus string

const (
	AcctRunning AcctStatus = "running"
	AcctStopped AcctStatus = "stopped"
)

// ActionType is the side of a fee/cost computation.
type ActionType string

const (
	ActionBuy  ActionType = "buy"
	ActionSell ActionType = "sell"
)

// EntrustType is the kind of order request routed to a broker.
type EntrustType string

const (
	EntrustBuy    EntrustType = "buy"
	EntrustSell   EntrustType = "sell"
	EntrustCancel EntrustType = "cancel"
)

// EntrustStatus tracks an entrust through its lifetime.
type EntrustStatus string

const (
	EntrustStatusInit     EntrustStatus = "init"
	EntrustStatusCommit   EntrustStatus = "commit"
	EntrustStatusDeal     EntrustStatus = "deal"
	EntrustStatusPartDeal EntrustStatus = "part_deal"
	EntrustStatusCancel   EntrustStatus = "cancel"
)

// IsFinal returns true if the entrust can no longer change.
func (s EntrustStatus) IsFinal() bool {
	return s == EntrustStatusDeal || s == EntrustStatusCancel
}

// SignalType is the intent carried by a strategy/risk signal.
type SignalType string

const (
	SignalBuy    SignalType = "buy"
	SignalSell   SignalType = "sell"
	SignalCancel SignalType = "cancel"
)

// SourceType identifies which subsystem emitted a signal.
type SourceType string

const (
	SourceStrategy SourceType = "strategy"
	SourceRisk     SourceType = "risk"
	SourceBroker   SourceType = "broker"
	SourceRobot    SourceType = "robot"
)

// SignalSource attributes a signal to its emitter by subsystem and name.
type SignalSource struct {
	Type SourceType `json:"type"`
	Name string     `json:"name"`
}

func (s SignalSource) String() string {
	return string(s.Type) + ":" + s.Name
}

// Signal is an intent emitted by a strategy or risk policy; the hub converts
// it into an entrust.
type Signal struct {
	SignalID string       `json:"signal_id"`
	Source   SignalSource `json:"source"`
	Signal   SignalType   `json:"signal"`

	Name string    `json:"name"`
	Code string    `json:"code"`
	Time time.Time `json:"time"`

	Price  decimal.Decimal `json:"price"`
	Volume int64           `json:"volume"`
	Desc   string          `json:"desc"`

	EntrustID string `json:"entrust_id,omitempty"`
}

// Entrust is an order request. Terminal states are deal and cancel.
type Entrust struct {
	EntrustID string    `json:"entrust_id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Time      time.Time `json:"time"`

	EntrustType EntrustType   `json:"entrust_type"`
	Status      EntrustStatus `json:"status"`

	Price  decimal.Decimal `json:"price"`
	Volume int64           `json:"volume"`

	VolumeDeal   int64 `json:"volume_deal"`
	VolumeCancel int64 `json:"volume_cancel"`

	Desc string `json:"desc"`

	BrokerEntrustID string `json:"broker_entrust_id,omitempty"`
}

// Deal is one fill event, immutable once recorded, always linked to an
// entrust by EntrustID.
type Deal struct {
	DealID    string `json:"deal_id"`
	EntrustID string `json:"entrust_id"`

	Name string    `json:"name"`
	Code string    `json:"code"`
	Time time.Time `json:"time"`

	DealType EntrustType     `json:"deal_type"`
	Price    decimal.Decimal `json:"price"`
	Volume   int64           `json:"volume"`

	Profit decimal.Decimal `json:"profit"`
	Fee    decimal.Decimal `json:"fee"`
}

// Position is an open holding, keyed by security code. A position exists
// from the first buy fill and is dropped when volume reaches zero.
// Invariant: Volume = VolumeAvailable + VolumeFrozen.
type Position struct {
	PositionID string `json:"position_id"`

	Name string    `json:"name"`
	Code string    `json:"code"`
	Time time.Time `json:"time"`

	Volume          int64 `json:"volume"`
	VolumeAvailable int64 `json:"volume_available"`
	VolumeFrozen    int64 `json:"volume_frozen"`

	Fee      decimal.Decimal `json:"fee"`
	Price    decimal.Decimal `json:"price"`
	NowPrice decimal.Decimal `json:"now_price"`
	MaxPrice decimal.Decimal `json:"max_price"`
	MinPrice decimal.Decimal `json:"min_price"`

	Profit     decimal.Decimal `json:"profit"`
	MaxProfit  decimal.Decimal `json:"max_profit"`
	MinProfit  decimal.Decimal `json:"min_profit"`
	ProfitRate decimal.Decimal `json:"profit_rate"`

	MaxProfitRate decimal.Decimal `json:"max_profit_rate"`
	MinProfitRate decimal.Decimal `json:"min_profit_rate"`

	MaxProfitTime time.Time `json:"max_profit_time"`
	MinProfitTime time.Time `json:"min_profit_time"`
}

// OnQuotBar folds one aggregated bar into the position marks.
func (p *Position) OnQuotBar(bar *QuotBar) {
	p.NowPrice = bar.Close
	if p.MaxPrice.LessThan(p.NowPrice) {
		p.MaxPrice = p.NowPrice
	}
	if p.MinPrice.GreaterThan(p.NowPrice) {
		p.MinPrice = p.NowPrice
	}

	vol := decimal.NewFromInt(p.Volume)
	p.Profit = p.NowPrice.Sub(p.Price).Mul(vol).Sub(p.Fee)
	cost := p.Price.Mul(vol).Add(p.Fee)
	if cost.IsPositive() {
		p.ProfitRate = p.Profit.Div(cost)
	}

	if p.Profit.GreaterThan(p.MaxProfit) {
		p.MaxProfit = p.Profit
		p.MaxProfitRate = p.ProfitRate
		p.MaxProfitTime = bar.End
	}
	if p.Profit.LessThan(p.MinProfit) {
		p.MinProfit = p.Profit
		p.MinProfitRate = p.ProfitRate
		p.MinProfitTime = bar.End
	}
}

// Account is the per-account mutable record. The hub is the only writer;
// every other task observes clones.
type Account struct {
	AccountID string     `json:"account_id"`
	Status    AcctStatus `json:"status"`
	Type      AcctType   `json:"type"`
	Kind      Kind       `json:"kind"`

	CashInit       decimal.Decimal `json:"cash_init"`
	CashAvailable  decimal.Decimal `json:"cash_available"`
	CashFrozen     decimal.Decimal `json:"cash_frozen"`
	TotalNetValue  decimal.Decimal `json:"total_net_value"`
	TotalHoldValue decimal.Decimal `json:"total_hold_value"`

	Cost            decimal.Decimal `json:"cost"`
	Profit          decimal.Decimal `json:"profit"`
	ProfitRate      decimal.Decimal `json:"profit_rate"`
	CloseProfit     decimal.Decimal `json:"close_profit"`
	TotalProfit     decimal.Decimal `json:"total_profit"`
	TotalProfitRate decimal.Decimal `json:"total_profit_rate"`

	BrokerFee   decimal.Decimal `json:"broker_fee"`
	TransferFee decimal.Decimal `json:"transfer_fee"`
	TaxFee      decimal.Decimal `json:"tax_fee"`

	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	Position map[string]*Position `json:"position"`
	Entrust  []*Entrust           `json:"entrust"`
	Deal     []Deal               `json:"deal"`
	Signal   []Signal             `json:"signal"`

	IsTrading bool `json:"-"`
}

// NewAccount creates an empty account record.
func NewAccount(accountID string, typ AcctType, kind Kind) *Account {
	return &Account{
		AccountID: accountID,
		Status:    AcctStopped,
		Type:      typ,
		Kind:      kind,
		StartTime: time.Now(),
		Position:  make(map[string]*Position),
	}
}

// Clone returns a deep copy safe to hand to plugins and reports.
func (a *Account) Clone() *Account {
	cp := *a
	cp.Position = make(map[string]*Position, len(a.Position))
	for code, pos := range a.Position {
		p := *pos
		cp.Position[code] = &p
	}
	cp.Entrust = make([]*Entrust, len(a.Entrust))
	for i, e := range a.Entrust {
		ec := *e
		cp.Entrust[i] = &ec
	}
	cp.Deal = append([]Deal(nil), a.Deal...)
	cp.Signal = append([]Signal(nil), a.Signal...)
	return &cp
}
