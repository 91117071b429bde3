// Package metrics exposes prometheus metrics for the trading engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors registered process-wide.
var (
	AccountsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trader_accounts_running",
		Help: "Number of accounts currently running",
	})

	QuotEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_quot_events_total",
		Help: "Quotation events dispatched, by account and event",
	}, []string{"account", "event"})

	SignalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_signals_total",
		Help: "Signals received by the hub, by account and source",
	}, []string{"account", "source"})

	EntrustsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_entrusts_total",
		Help: "Entrusts forwarded to the broker, by account and type",
	}, []string{"account", "type"})

	DealsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_deals_total",
		Help: "Fills applied to the account, by account and type",
	}, []string{"account", "type"})

	TaskExceptionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_task_exceptions_total",
		Help: "Runner exceptions observed by the hub, by account and task",
	}, []string{"account", "task"})

	AccountNetValue = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "trader_account_net_value",
		Help: "Total net value per account",
	}, []string{"account"})

	AccountProfit = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "trader_account_profit",
		Help: "Open-position profit per account",
	}, []string{"account"})

	PositionsOpen = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "trader_positions_open",
		Help: "Open positions per account",
	}, []string{"account"})
)
