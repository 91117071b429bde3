// Package strategy defines the strategy plugin contract and hosts the
// built-in implementations.
package strategy

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/quantfisher/ashare-trader/internal/types"
)

// Strategy is the lifecycle contract every strategy implementation honors.
// Hooks observe a read-only account snapshot and may return Subscribe or
// Signal events; the runner stamps attribution and ids before forwarding.
type Strategy interface {
	// Name identifies the strategy for signal attribution.
	Name() string

	// OnInit is called once before any quotation event, with the account
	// snapshot and the caller-provided options map.
	OnInit(ctx context.Context, acct *types.Account, opts map[string]string) error

	// OnDestroy is called once when the runner exits.
	OnDestroy(ctx context.Context) error

	// OnOpen is invoked on quot-start, morning-start and noon-start.
	OnOpen(ctx context.Context, acct *types.Account, quot *types.QuotData) ([]types.Event, error)

	// OnClose is invoked on morning-end, noon-end and quot-end.
	OnClose(ctx context.Context, acct *types.Account, quot *types.QuotData) ([]types.Event, error)

	// OnQuot is invoked on every aggregated bar map.
	OnQuot(ctx context.Context, acct *types.Account, quot *types.QuotData) ([]types.Event, error)
}

// Factory builds a fresh strategy instance.
type Factory func() Strategy

var (
	regMu    sync.RWMutex
	registry = make(map[string]Factory)
)

// Register installs a strategy factory under a name. Later registrations
// win, matching plugin search-path shadowing.
func Register(name string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[name] = f
}

// New builds a registered strategy by name.
func New(name string) (Strategy, error) {
	regMu.RLock()
	f, ok := registry[name]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: strategy %s", types.ErrPluginNotFound, name)
	}
	return f(), nil
}

// Names lists the registered strategies, sorted.
func Names() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("holdside", func() Strategy { return NewHoldside() })
	Register("smacross", func() Strategy { return NewSMACross() })
}
