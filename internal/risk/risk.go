// Package risk defines the risk plugin contract and hosts the built-in
// policies.
package risk

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/quantfisher/ashare-trader/internal/types"
)

// Risk is the lifecycle contract for protective policies. OnRisk is invoked
// on every bar delivered while the account is trading; returned signals are
// stamped with risk attribution by the runner.
type Risk interface {
	// Name identifies the policy for signal attribution.
	Name() string

	// OnInit is called once with the account snapshot and options.
	OnInit(ctx context.Context, acct *types.Account, opts map[string]string) error

	// OnDestroy is called once when the runner exits.
	OnDestroy(ctx context.Context) error

	// OnRisk evaluates the account against the latest bars and returns
	// protective signals.
	OnRisk(ctx context.Context, acct *types.Account, quot *types.QuotData) ([]*types.Signal, error)
}

// Factory builds a fresh risk policy instance.
type Factory func() Risk

var (
	regMu    sync.RWMutex
	registry = make(map[string]Factory)
)

// Register installs a risk factory under a name.
func Register(name string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[name] = f
}

// New builds a registered risk policy by name.
func New(name string) (Risk, error) {
	regMu.RLock()
	f, ok := registry[name]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: risk %s", types.ErrPluginNotFound, name)
	}
	return f(), nil
}

// Names lists the registered risk policies, sorted.
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
	Register("simple-stop", func() Risk { return NewSimpleStop() })
}
