// Package main is the entry point for the trading engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/quantfisher/ashare-trader/internal/config"
	"github.com/quantfisher/ashare-trader/internal/metrics"
	"github.com/quantfisher/ashare-trader/internal/trader"
	"github.com/quantfisher/ashare-trader/internal/types"
)

// Version information (set by build flags).
var (
	Version   = "0.3.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const sigintWindow = 3 * time.Second

func main() {
	// Optional .env for local development; absence is fine.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version", "-v", "--version":
		cmdVersion()
	case "help", "-h", "--help":
		printUsage()
	case "run":
		cmdRun(os.Args[2:])
	case "backtest":
		cmdBacktest(os.Args[2:])
	case "validate":
		cmdValidate(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`ashare-trader - concurrent A-share trading engine

Usage:
  trader <command> [options]

Commands:
  run        Start the engine and listen for account spawn requests
  backtest   Run a single backtest account to completion
  validate   Validate a configuration file
  version    Show version information
  help       Show this help message

Examples:
  trader run --config config.yaml
  trader backtest --config config.yaml --codes sh600063 --strategy holdside \
      --start 2022-03-01 --end 2022-03-31
  trader validate --config config.yaml`)
}

func cmdVersion() {
	fmt.Printf("trader version %s\n", Version)
	fmt.Printf("  Build time: %s\n", BuildTime)
	fmt.Printf("  Git commit: %s\n", GitCommit)
}

func cmdValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Configuration is valid!")
	fmt.Printf("  Init cash:   %.2f\n", cfg.InitCash)
	fmt.Printf("  Kind:        %s\n", cfg.Kind)
	fmt.Printf("  Listen port: %d\n", cfg.Listen.Port)
	fmt.Printf("  Fee rates:   broker=%.5f transfer=%.5f tax=%.4f\n",
		cfg.Fee.Broker, cfg.Fee.Transfer, cfg.Fee.Tax)
}

func setupLogger(cfg *config.Config) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var w io.Writer = os.Stdout
	if cfg.Log.Path != "" {
		if err := os.MkdirAll(cfg.Log.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(cfg.Log.Path, "trader.log"),
			os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, f)
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, nil
}

// watchSigint closes the returned channel when SIGINT arrives twice within
// the press window; a single press only prints a prompt.
func watchSigint() <-chan struct{} {
	shutdown := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		var last time.Time
		for sig := range sigCh {
			if sig == syscall.SIGTERM {
				close(shutdown)
				return
			}
			now := time.Now()
			if now.Sub(last) < sigintWindow {
				close(shutdown)
				return
			}
			fmt.Println("press ctrl-c once more to exit")
			last = now
		}
	}()
	return shutdown
}

func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := setupLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup logging: %v\n", err)
		os.Exit(1)
	}

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, logger)
		srv.Start()
		defer srv.Stop(context.Background())
	}

	shutdown := watchSigint()

	eng := trader.New(cfg, shutdown, logger)
	if err := eng.Init(); err != nil {
		logger.Error("init failed", "err", err)
		os.Exit(1)
	}
	defer eng.Close()

	if err := eng.Run(context.Background()); err != nil {
		logger.Error("engine failed", "err", err)
		os.Exit(1)
	}
}

func cmdBacktest(args []string) {
	fs := flag.NewFlagSet("backtest", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	accountID := fs.String("account", "backtest", "Account id")
	codes := fs.String("codes", "", "Comma-separated security codes")
	strategyName := fs.String("strategy", "holdside", "Strategy name")
	riskName := fs.String("risk", "", "Risk policy name (optional)")
	brokerName := fs.String("broker", "sim", "Broker name")
	freq := fs.Int64("freq", types.Freq1Day, "Bar frequency in seconds")
	start := fs.String("start", "", "Start date (2006-01-02)")
	end := fs.String("end", "", "End date (2006-01-02)")
	cash := fs.Float64("cash", 0, "Initial cash (0 = config default)")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := setupLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup logging: %v\n", err)
		os.Exit(1)
	}

	if *codes == "" {
		fmt.Fprintln(os.Stderr, "--codes is required")
		os.Exit(1)
	}

	req := &trader.SpawnRequest{
		AccountID: *accountID,
		Type:      types.AcctBacktest,
		InitCash:  *cash,
		Frequency: *freq,
		Codes:     strings.Split(*codes, ","),
		StartDate: *start,
		EndDate:   *end,
		Strategy:  *strategyName,
		Risk:      *riskName,
		Broker:    *brokerName,
	}

	shutdown := watchSigint()

	eng := trader.New(cfg, shutdown, logger)
	if err := eng.Init(); err != nil {
		logger.Error("init failed", "err", err)
		os.Exit(1)
	}
	defer eng.Close()

	if err := eng.RunAccount(context.Background(), req); err != nil {
		logger.Error("backtest failed", "err", err)
		os.Exit(1)
	}
}
