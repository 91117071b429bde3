// Package broker defines the broker adapter contract and hosts the default
// simulation broker.
package broker

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/quantfisher/ashare-trader/internal/types"
)

// PushFunc delivers a broker push event to the hub.
type PushFunc func(*types.BrokerEvent)

// Broker is the lifecycle contract for broker adapters. Entrusts arrive via
// OnEntrust; fills and syncs go back through the push sink, either inline
// or asynchronously from OnPoll.
type Broker interface {
	// Name identifies the broker for attribution and logs.
	Name() string

	// OnInit is called once with the push sink and options.
	OnInit(ctx context.Context, push PushFunc, opts map[string]string) error

	// OnDestroy is called once when the runner exits.
	OnDestroy(ctx context.Context) error

	// OnEntrust routes one order request.
	OnEntrust(ctx context.Context, entrust *types.Entrust) error

	// OnPoll is invoked periodically to drain asynchronous broker state.
	OnPoll(ctx context.Context) error
}

// Factory builds a fresh broker instance.
type Factory func() Broker

var (
	regMu    sync.RWMutex
	registry = make(map[string]Factory)
)

// Register installs a broker factory under a name.
func Register(name string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[name] = f
}

// New builds a registered broker by name.
func New(name string) (Broker, error) {
	regMu.RLock()
	f, ok := registry[name]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: broker %s", types.ErrPluginNotFound, name)
	}
	return f(), nil
}

// Names lists the registered brokers, sorted.
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
	Register("sim", func() Broker { return NewSim() })
}
