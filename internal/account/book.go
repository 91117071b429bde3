// Package account maintains the per-account trading state: cash, positions,
// entrusts, deals, and the P&L aggregates recomputed on every bar and every
// broker push. The hub is the sole writer; all other tasks observe clones.
package account

import (
	"bytes"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quantfisher/ashare-trader/internal/types"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Book wraps an Account with reader/writer discipline.
type Book struct {
	mu   sync.RWMutex
	acct *types.Account
}

// NewBook creates a book over an account record.
func NewBook(acct *types.Account) *Book {
	if acct.Position == nil {
		acct.Position = make(map[string]*types.Position)
	}
	return &Book{acct: acct}
}

// Snapshot returns a deep copy of the account.
func (b *Book) Snapshot() *types.Account {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.acct.Clone()
}

// SnapshotJSON serializes the account for plugins and status reporting.
func (b *Book) SnapshotJSON() ([]byte, error) {
	return json.Marshal(b.Snapshot())
}

// DecodeAccount parses a serialized account snapshot, rejecting unknown
// fields.
func DecodeAccount(data []byte) (*types.Account, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var acct types.Account
	if err := dec.Decode(&acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

// AccountID returns the account identifier.
func (b *Book) AccountID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.acct.AccountID
}

// Type returns the account type.
func (b *Book) Type() types.AcctType {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.acct.Type
}

// IsTrading reports whether the clock is inside a trading session.
func (b *Book) IsTrading() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.acct.IsTrading
}

// Aggregates returns the headline figures without cloning the whole book.
func (b *Book) Aggregates() (netValue, profit decimal.Decimal, positions int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.acct.TotalNetValue, b.acct.Profit, len(b.acct.Position)
}

// SetStatus flips the account lifecycle state.
func (b *Book) SetStatus(status types.AcctStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.acct.Status = status
}

// OnQuot applies one quotation event to the account state.
func (b *Book) OnQuot(q *types.QuotData) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch q.Event {
	case types.QuotEventQuot:
		b.applyBars(q.Bars)
	case types.QuotEventMorningStart, types.QuotEventNoonStart:
		b.acct.IsTrading = true
	case types.QuotEventMorningEnd:
		b.acct.IsTrading = false
	case types.QuotEventNoonEnd:
		b.acct.IsTrading = false
		b.noonEndReset()
	case types.QuotEventEnd:
		now := time.Now()
		b.acct.EndTime = &now
	}
}

// applyBars recomputes position marks and the account P&L aggregates.
func (b *Book) applyBars(bars types.QuotBarMap) {
	a := b.acct
	a.Profit = decimal.Zero
	a.Cost = decimal.Zero
	a.TotalHoldValue = decimal.Zero

	for _, pos := range a.Position {
		if bar, ok := bars[pos.Code]; ok {
			pos.OnQuotBar(bar)
		}
		vol := decimal.NewFromInt(pos.Volume)
		a.Profit = a.Profit.Add(pos.Profit)
		a.TotalHoldValue = a.TotalHoldValue.Add(pos.NowPrice.Mul(vol))
		a.Cost = a.Cost.Add(pos.Price.Mul(vol).Add(pos.Fee))
	}

	if a.Cost.IsPositive() {
		a.ProfitRate = a.Profit.Div(a.Cost).Mul(hundred)
	}
	a.TotalNetValue = a.CashAvailable.Add(a.CashFrozen).Add(a.TotalHoldValue)
	a.TotalProfit = a.CloseProfit.Add(a.Profit)
	if a.CashInit.IsPositive() {
		a.TotalProfitRate = a.TotalProfit.Div(a.CashInit).Mul(hundred)
	}
}

// noonEndReset reconciles the book at session close: frozen volume becomes
// available again, outstanding commits are cancelled, frozen cash returns,
// and (outside backtest) the daily entrust/deal lists reset.
func (b *Book) noonEndReset() {
	a := b.acct
	for _, pos := range a.Position {
		if pos.Volume != pos.VolumeAvailable {
			pos.VolumeFrozen = 0
			pos.VolumeAvailable = pos.Volume
		}
	}
	for _, e := range a.Entrust {
		if e.Status == types.EntrustStatusCommit {
			e.Status = types.EntrustStatusCancel
		}
	}
	a.CashAvailable = a.CashAvailable.Add(a.CashFrozen)
	a.CashFrozen = decimal.Zero

	if a.Type != types.AcctBacktest {
		a.Entrust = nil
		a.Deal = nil
	}
}

// OnSignal records a signal. Only backtests keep the full history.
func (b *Book) OnSignal(s *types.Signal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.acct.Type == types.AcctBacktest {
		b.acct.Signal = append(b.acct.Signal, *s)
	}
}

// NewEntrustFromSignal converts a signal into a committed entrust with a
// fresh id.
func NewEntrustFromSignal(s *types.Signal) *types.Entrust {
	var typ types.EntrustType
	switch s.Signal {
	case types.SignalBuy:
		typ = types.EntrustBuy
	case types.SignalSell:
		typ = types.EntrustSell
	default:
		typ = types.EntrustCancel
	}
	return &types.Entrust{
		EntrustID:   uuid.NewString(),
		Name:        s.Name,
		Code:        s.Code,
		Time:        s.Time,
		EntrustType: typ,
		Status:      types.EntrustStatusCommit,
		Price:       s.Price,
		Volume:      s.Volume,
		Desc:        s.Desc,
	}
}

// OnEntrust records an outgoing entrust and freezes the resources it
// reserves: cash for buys, position volume for sells.
func (b *Book) OnEntrust(e *types.Entrust) {
	b.mu.Lock()
	defer b.mu.Unlock()

	a := b.acct
	a.Entrust = append(a.Entrust, e)

	switch e.EntrustType {
	case types.EntrustBuy:
		cost := b.getCost(types.ActionBuy, e.Code, e.Price, e.Volume)
		a.CashAvailable = a.CashAvailable.Sub(cost)
		a.CashFrozen = a.CashFrozen.Add(cost)
	case types.EntrustSell:
		if pos, ok := a.Position[e.Code]; ok {
			frozen := e.Volume
			if frozen > pos.VolumeAvailable {
				frozen = pos.VolumeAvailable
			}
			pos.VolumeAvailable -= frozen
			pos.VolumeFrozen += frozen
		}
	}
}

// OnBrokerPush applies one broker push to the account state.
func (b *Book) OnBrokerPush(ev *types.BrokerEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch ev.Type {
	case types.BrokerPushEntrust:
		if ev.Entrust != nil {
			b.applyEntrustPush(ev.Entrust)
			b.applyBars(nil)
		}
	case types.BrokerPushFundSync:
		if ev.Fund != nil {
			b.acct.CashAvailable = ev.Fund.Available
			b.acct.TotalNetValue = ev.Fund.Total
			b.acct.TotalHoldValue = ev.Fund.Hold
		}
	case types.BrokerPushPosition:
		book := make(map[string]*types.Position, len(ev.Positions))
		for i := range ev.Positions {
			pos := ev.Positions[i]
			book[pos.Code] = &pos
		}
		b.acct.Position = book
		b.applyBars(nil)
	}
}

// applyEntrustPush folds a broker entrust status update into the local
// entrust, appending a deal for any filled delta.
func (b *Book) applyEntrustPush(push *types.Entrust) {
	a := b.acct
	var local *types.Entrust
	for _, e := range a.Entrust {
		if e.EntrustID == push.EntrustID {
			local = e
			break
		}
	}
	if local == nil {
		return
	}
	if local.Status.IsFinal() {
		// Terminal entrusts never transition again; late pushes are dropped.
		return
	}

	local.Status = push.Status
	local.BrokerEntrustID = push.BrokerEntrustID

	switch push.Status {
	case types.EntrustStatusDeal, types.EntrustStatusPartDeal:
		local.VolumeDeal += push.VolumeDeal
		if push.Status == types.EntrustStatusPartDeal && local.VolumeDeal == local.Volume {
			local.Status = types.EntrustStatusDeal
		}
		if push.EntrustType == types.EntrustCancel {
			return
		}
		b.applyFill(local, push.VolumeDeal)
	case types.EntrustStatusCancel:
		local.VolumeCancel = push.VolumeCancel
		b.releaseCancelled(local)
	}
}

// applyFill books one fill of volume shares against the entrust.
func (b *Book) applyFill(e *types.Entrust, volume int64) {
	if volume <= 0 {
		return
	}
	a := b.acct

	action := types.ActionBuy
	if e.EntrustType == types.EntrustSell {
		action = types.ActionSell
	}
	fee := b.getFee(action, e.Code, e.Price, volume)

	deal := types.Deal{
		DealID:    uuid.NewString(),
		EntrustID: e.EntrustID,
		Name:      e.Name,
		Code:      e.Code,
		Time:      e.Time,
		DealType:  e.EntrustType,
		Price:     e.Price,
		Volume:    volume,
		Fee:       fee,
	}

	vol := decimal.NewFromInt(volume)
	switch e.EntrustType {
	case types.EntrustBuy:
		cost := e.Price.Mul(vol).Add(fee)
		a.CashFrozen = a.CashFrozen.Sub(cost)

		pos, ok := a.Position[e.Code]
		if !ok {
			pos = &types.Position{
				PositionID: uuid.NewString(),
				Name:       e.Name,
				Code:       e.Code,
				Time:       e.Time,
				Price:      e.Price,
				NowPrice:   e.Price,
				MaxPrice:   e.Price,
				MinPrice:   e.Price,
			}
			a.Position[e.Code] = pos
		}
		oldVol := decimal.NewFromInt(pos.Volume)
		newVol := decimal.NewFromInt(pos.Volume + volume)
		pos.Price = pos.Price.Mul(oldVol).Add(e.Price.Mul(vol)).Div(newVol)
		pos.Volume += volume
		// T+1: shares bought today stay frozen until the session-close
		// reconcile makes them available.
		pos.VolumeFrozen += volume
		pos.Fee = pos.Fee.Add(fee)

	case types.EntrustSell:
		pos, ok := a.Position[e.Code]
		if !ok {
			return
		}
		profit := e.Price.Sub(pos.Price).Mul(vol).Sub(fee)
		deal.Profit = profit
		a.CloseProfit = a.CloseProfit.Add(profit)
		a.CashAvailable = a.CashAvailable.Add(e.Price.Mul(vol).Sub(fee))

		pos.Volume -= volume
		pos.VolumeFrozen -= volume
		if pos.VolumeFrozen < 0 {
			pos.VolumeAvailable += pos.VolumeFrozen
			pos.VolumeFrozen = 0
		}
		if pos.Volume <= 0 {
			delete(a.Position, e.Code)
		}
	}

	a.Deal = append(a.Deal, deal)
}

// releaseCancelled returns the resources a cancelled entrust had frozen.
func (b *Book) releaseCancelled(e *types.Entrust) {
	a := b.acct
	remaining := e.Volume - e.VolumeDeal
	if remaining <= 0 {
		return
	}

	switch e.EntrustType {
	case types.EntrustBuy:
		release := b.getCost(types.ActionBuy, e.Code, e.Price, remaining)
		if release.GreaterThan(a.CashFrozen) {
			release = a.CashFrozen
		}
		a.CashFrozen = a.CashFrozen.Sub(release)
		a.CashAvailable = a.CashAvailable.Add(release)
	case types.EntrustSell:
		if pos, ok := a.Position[e.Code]; ok {
			unfreeze := remaining
			if unfreeze > pos.VolumeFrozen {
				unfreeze = pos.VolumeFrozen
			}
			pos.VolumeFrozen -= unfreeze
			pos.VolumeAvailable += unfreeze
		}
	}
}
