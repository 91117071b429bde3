// Package trader implements the engine process: it owns shared resources,
// listens for account spawn requests, and runs each account's hub.
package trader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/quantfisher/ashare-trader/internal/account"
	"github.com/quantfisher/ashare-trader/internal/alerting"
	"github.com/quantfisher/ashare-trader/internal/broker"
	"github.com/quantfisher/ashare-trader/internal/config"
	"github.com/quantfisher/ashare-trader/internal/fetch"
	"github.com/quantfisher/ashare-trader/internal/history"
	"github.com/quantfisher/ashare-trader/internal/hub"
	"github.com/quantfisher/ashare-trader/internal/metrics"
	"github.com/quantfisher/ashare-trader/internal/risk"
	"github.com/quantfisher/ashare-trader/internal/strategy"
	"github.com/quantfisher/ashare-trader/internal/types"
	"github.com/shopspring/decimal"
)

// Accept-retry backoff bounds.
const (
	acceptBackoffStart = 5 * time.Millisecond
	acceptBackoffMax   = 100 * time.Millisecond
	acceptMaxRetries   = 10
)

// Trader is the engine: one process hosting many concurrent accounts.
type Trader struct {
	cfg      *config.Config
	logger   *slog.Logger
	fetcher  fetch.Fetcher
	store    *history.Store
	recorder *metrics.Recorder
	alerter  alerting.Alerter

	mu       sync.Mutex
	accounts map[string]*account.Book
	wg       sync.WaitGroup

	shutdown <-chan struct{}
}

// New creates a trader over the given configuration.
func New(cfg *config.Config, shutdown <-chan struct{}, logger *slog.Logger) *Trader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trader{
		cfg:      cfg,
		logger:   logger,
		fetcher:  fetch.NewSina(logger),
		recorder: metrics.NewRecorder(),
		alerter:  alerting.NewConsole(logger),
		accounts: make(map[string]*account.Book),
		shutdown: shutdown,
	}
}

// Init opens shared resources: the history store when configured.
func (t *Trader) Init() error {
	if t.cfg.DB.Path != "" {
		store, err := history.Open(t.cfg.DB.Path)
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		t.store = store
		t.logger.Info("history store open", "path", t.cfg.DB.Path)
	}
	return nil
}

// Run accepts spawn requests until shutdown. Accept failures retry with
// exponential backoff capped at 100ms; a run of consecutive failures is
// fatal.
func (t *Trader) Run(ctx context.Context) error {
	addr := fmt.Sprintf("127.0.0.1:%d", t.cfg.Listen.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	t.logger.Info("listening for spawn requests", "addr", addr)

	go func() {
		<-t.shutdown
		listener.Close()
	}()

	backoff := acceptBackoffStart
	retries := 0
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-t.shutdown:
				t.logger.Info("shutting down")
				t.drain()
				return nil
			default:
			}

			retries++
			if retries > acceptMaxRetries {
				t.drain()
				return fmt.Errorf("accept: too many retries: %w", err)
			}
			t.logger.Error("accept failed, retrying", "err", err, "backoff", backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > acceptBackoffMax {
				backoff = acceptBackoffMax
			}
			continue
		}
		backoff = acceptBackoffStart
		retries = 0

		go t.handleConn(ctx, conn)
	}
}

// drain waits for every running account to stop.
func (t *Trader) drain() {
	t.logger.Info("waiting for accounts to stop")
	t.wg.Wait()
}

type spawnReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (t *Trader) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	t.logger.Info("accepted connection", "remote", conn.RemoteAddr())

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	var req SpawnRequest
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		t.logger.Error("bad spawn request", "err", err)
		json.NewEncoder(conn).Encode(spawnReply{Error: err.Error()})
		return
	}

	if err := t.Spawn(ctx, &req); err != nil {
		t.logger.Error("spawn failed", "account", req.AccountID, "err", err)
		json.NewEncoder(conn).Encode(spawnReply{Error: err.Error()})
		return
	}
	json.NewEncoder(conn).Encode(spawnReply{OK: true})
}

// Spawn validates a request and starts its account in the background.
func (t *Trader) Spawn(ctx context.Context, req *SpawnRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	opts, book, err := t.buildAccount(req)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if _, ok := t.accounts[req.AccountID]; ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", types.ErrAccountExists, req.AccountID)
	}
	t.accounts[req.AccountID] = book
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			t.mu.Lock()
			delete(t.accounts, req.AccountID)
			t.mu.Unlock()
		}()

		t.alerter.Alert(ctx, alerting.SeverityInfo, "account started",
			"account", req.AccountID, "type", req.Type, "strategy", req.Strategy)

		err := hub.Run(ctx, book, *opts, t.shutdown)
		if err != nil {
			t.alerter.Alert(ctx, alerting.SeverityHigh, "account failed",
				"account", req.AccountID, "err", err)
			return
		}

		t.alerter.Alert(ctx, alerting.SeverityInfo, "account stopped",
			"account", req.AccountID)
		if req.Type == types.AcctBacktest {
			RenderReport(os.Stdout, book.Snapshot())
		}
	}()

	return nil
}

// RunAccount spawns an account and blocks until it finishes. The CLI
// backtest path uses this.
func (t *Trader) RunAccount(ctx context.Context, req *SpawnRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	opts, book, err := t.buildAccount(req)
	if err != nil {
		return err
	}

	runErr := hub.Run(ctx, book, *opts, t.shutdown)
	if req.Type == types.AcctBacktest && runErr == nil {
		RenderReport(os.Stdout, book.Snapshot())
	}
	return runErr
}

// enabled reports whether name is allowed by the configured set. An empty
// set allows everything registered.
func enabled(set []string, name string) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if s == name {
			return true
		}
	}
	return false
}

func (t *Trader) buildAccount(req *SpawnRequest) (*hub.Opts, *account.Book, error) {
	if !enabled(t.cfg.Plugins.Strategy, req.Strategy) {
		return nil, nil, fmt.Errorf("strategy %s not enabled in config", req.Strategy)
	}
	strat, err := strategy.New(req.Strategy)
	if err != nil {
		return nil, nil, err
	}

	var riskPolicy risk.Risk
	if req.Risk != "" {
		if !enabled(t.cfg.Plugins.Risk, req.Risk) {
			return nil, nil, fmt.Errorf("risk %s not enabled in config", req.Risk)
		}
		if riskPolicy, err = risk.New(req.Risk); err != nil {
			return nil, nil, err
		}
	}

	brokerName := req.Broker
	if brokerName == "" {
		brokerName = "sim"
	}
	if !enabled(t.cfg.Plugins.Broker, brokerName) {
		return nil, nil, fmt.Errorf("broker %s not enabled in config", brokerName)
	}
	brk, err := broker.New(brokerName)
	if err != nil {
		return nil, nil, err
	}

	if req.Type == types.AcctBacktest && req.Frequency == types.Freq1Day && t.store == nil {
		return nil, nil, errors.New("daily backtest needs a history store (db.path)")
	}

	initCash := req.InitCash
	if initCash == 0 {
		initCash = t.cfg.InitCash
	}

	acct := types.NewAccount(req.AccountID, req.Type, req.Kind)
	if acct.Kind == "" {
		acct.Kind = t.cfg.Kind
	}
	acct.CashInit = decimal.NewFromFloat(initCash)
	acct.CashAvailable = acct.CashInit
	acct.BrokerFee = t.cfg.BrokerFee()
	acct.TransferFee = t.cfg.TransferFee()
	acct.TaxFee = t.cfg.TaxFee()
	book := account.NewBook(acct)

	opts := &hub.Opts{
		QuotOpts:     req.QuotOpts(t.cfg.Kind),
		Fetcher:      t.fetcher,
		Strategy:     strat,
		StrategyOpts: req.StrategyOpts,
		Risk:         riskPolicy,
		RiskOpts:     req.RiskOpts,
		Broker:       brk,
		BrokerOpts:   req.BrokerOpts,
		Logger:       t.logger,
		Recorder:     t.recorder,
	}
	if t.store != nil {
		opts.Store = t.store
	}
	return opts, book, nil
}

// Accounts snapshots the running account books.
func (t *Trader) Accounts() []*types.Account {
	t.mu.Lock()
	books := make([]*account.Book, 0, len(t.accounts))
	for _, b := range t.accounts {
		books = append(books, b)
	}
	t.mu.Unlock()

	out := make([]*types.Account, 0, len(books))
	for _, b := range books {
		out = append(out, b.Snapshot())
	}
	return out
}

// Close releases shared resources.
func (t *Trader) Close() error {
	if t.store != nil {
		return t.store.Close()
	}
	return nil
}
