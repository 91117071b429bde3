package broker

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/quantfisher/ashare-trader/internal/types"
)

// Sim is the default simulation broker: every buy/sell fills fully and
// immediately at the request price, cancels confirm immediately.
type Sim struct {
	push   PushFunc
	nextID atomic.Int64
}

// NewSim creates a simulation broker.
func NewSim() *Sim {
	return &Sim{}
}

func (s *Sim) Name() string { return "sim" }

func (s *Sim) OnInit(_ context.Context, push PushFunc, _ map[string]string) error {
	s.push = push
	return nil
}

func (s *Sim) OnDestroy(context.Context) error { return nil }

// OnEntrust confirms the request inline: buys and sells become full deals,
// cancels become cancel confirmations.
func (s *Sim) OnEntrust(_ context.Context, entrust *types.Entrust) error {
	e := *entrust
	e.BrokerEntrustID = fmt.Sprintf("SIM-%d", s.nextID.Add(1))

	switch e.EntrustType {
	case types.EntrustBuy, types.EntrustSell:
		e.Status = types.EntrustStatusDeal
		e.VolumeDeal = e.Volume
		e.VolumeCancel = 0
	case types.EntrustCancel:
		e.Status = types.EntrustStatusCancel
		e.VolumeDeal = 0
		e.VolumeCancel = e.Volume
	}

	s.push(&types.BrokerEvent{Type: types.BrokerPushEntrust, Entrust: &e})
	return nil
}

// OnPoll is a no-op: the simulator has no asynchronous state.
func (s *Sim) OnPoll(context.Context) error { return nil }

var _ Broker = (*Sim)(nil)
