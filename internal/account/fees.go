package account

import (
	"strings"

	"github.com/quantfisher/ashare-trader/internal/types"
	"github.com/shopspring/decimal"
)

var minBrokerFee = decimal.NewFromInt(5)

// GetFee computes the fee for one side of a trade. Pure function of its
// inputs and the account's fee rates.
//
// Broker commission has a 5.0 floor. Buys on Shanghai main-board codes
// (sh6 prefix) pay the transfer fee; sells on any sh/sz code pay stamp tax.
func (b *Book) GetFee(typ types.ActionType, code string, price decimal.Decimal, volume int64) decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.getFee(typ, code, price, volume)
}

func (b *Book) getFee(typ types.ActionType, code string, price decimal.Decimal, volume int64) decimal.Decimal {
	a := b.acct
	total := price.Mul(decimal.NewFromInt(volume))

	brokerFee := total.Mul(a.BrokerFee)
	if brokerFee.LessThan(minBrokerFee) {
		brokerFee = minBrokerFee
	}

	tax := decimal.Zero
	switch typ {
	case types.ActionBuy:
		if strings.HasPrefix(code, "sh6") {
			tax = total.Mul(a.TransferFee)
		}
	case types.ActionSell:
		if strings.HasPrefix(code, "sh") || strings.HasPrefix(code, "sz") {
			tax = total.Mul(a.TaxFee)
		}
	}
	return brokerFee.Add(tax)
}

// GetCost returns fee plus notional for one side of a trade.
func (b *Book) GetCost(typ types.ActionType, code string, price decimal.Decimal, volume int64) decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.getCost(typ, code, price, volume)
}

func (b *Book) getCost(typ types.ActionType, code string, price decimal.Decimal, volume int64) decimal.Decimal {
	return b.getFee(typ, code, price, volume).Add(price.Mul(decimal.NewFromInt(volume)))
}
