// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/stakevm/utils/wrappers"
	"github.com/luxfi/stakevm/vms/stakevm/vmerrs"
)

const (
	methodLabel = "method"
	resultLabel = "result"

	resultSuccess = "success"
)

var (
	_ Metrics = (*metricsImpl)(nil)

	callLabels = []string{methodLabel, resultLabel}
)

type Metrics interface {
	// MarkCall counts one call of method. A nil err counts as a success;
	// anything else is counted under its error code.
	MarkCall(method string, err error)
	// SetTotals updates the vault gauges after a committed call.
	SetTotals(Totals)
}

// Totals is a snapshot of the vault counters.
type Totals struct {
	Supply  *uint256.Int
	Custody *uint256.Int
	Staked  *uint256.Int
	Pending *uint256.Int
	Rate    *uint256.Int
}

type metricsImpl struct {
	calls *prometheus.CounterVec

	supply, custody, staked, pending, rate prometheus.Gauge
}

func New(registerer prometheus.Registerer) (Metrics, error) {
	m := &metricsImpl{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calls",
				Help: "number of calls by method and result",
			},
			callLabels,
		),
		supply: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "claim_supply",
			Help: "claim tokens in existence",
		}),
		custody: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "custody",
			Help: "base asset held by the vault",
		}),
		staked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "staked",
			Help: "base asset delegated to validators",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pending_withdrawals",
			Help: "base asset owed to unclaimed withdrawal requests",
		}),
		rate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "exchange_rate",
			Help: "base units per claim token, scaled by 1e9",
		}),
	}

	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(m.calls),
		registerer.Register(m.supply),
		registerer.Register(m.custody),
		registerer.Register(m.staked),
		registerer.Register(m.pending),
		registerer.Register(m.rate),
	)
	return m, errs.Err
}

func (m *metricsImpl) MarkCall(method string, err error) {
	result := resultSuccess
	if err != nil {
		result = vmerrs.CodeOf(err)
	}
	m.calls.With(prometheus.Labels{
		methodLabel: method,
		resultLabel: result,
	}).Inc()
}

func (m *metricsImpl) SetTotals(t Totals) {
	set(m.supply, t.Supply)
	set(m.custody, t.Custody)
	set(m.staked, t.Staked)
	set(m.pending, t.Pending)
	set(m.rate, t.Rate)
}

func set(g prometheus.Gauge, v *uint256.Int) {
	if v != nil {
		g.Set(v.Float64())
	}
}
