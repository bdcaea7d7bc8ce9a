package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "curvepool"

// Pool counts pool operations. A nil *Pool is valid and records nothing.
type Pool struct {
	deposits     prometheus.Counter
	withdrawals  prometheus.Counter
	feeSweeps    *prometheus.CounterVec
	swaps        *prometheus.CounterVec
	failures     *prometheus.CounterVec
	poolsCreated prometheus.Counter
}

// NewPool builds the pool collectors and registers them on reg.
func NewPool(reg prometheus.Registerer) (*Pool, error) {
	m := &Pool{
		deposits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deposits",
			Help:      "number of successful pool bootstraps",
		}),
		withdrawals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "withdrawals",
			Help:      "number of reserve withdrawals",
		}),
		feeSweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fee_sweeps",
			Help:      "number of fee sweeps by beneficiary",
		}, []string{"beneficiary"}),
		swaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swaps",
			Help:      "number of swaps by direction",
		}, []string{"direction"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures",
			Help:      "number of rejected pool operations",
		}, []string{"op"}),
		poolsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pools_created",
			Help:      "number of pools constructed by the registry",
		}),
	}
	if reg == nil {
		return m, nil
	}
	err := errors.Join(
		reg.Register(m.deposits),
		reg.Register(m.withdrawals),
		reg.Register(m.feeSweeps),
		reg.Register(m.swaps),
		reg.Register(m.failures),
		reg.Register(m.poolsCreated),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Pool) Deposit() {
	if m != nil {
		m.deposits.Inc()
	}
}

func (m *Pool) Withdraw() {
	if m != nil {
		m.withdrawals.Inc()
	}
}

func (m *Pool) FeeSweep(beneficiary string) {
	if m != nil {
		m.feeSweeps.WithLabelValues(beneficiary).Inc()
	}
}

func (m *Pool) Swap(direction string) {
	if m != nil {
		m.swaps.WithLabelValues(direction).Inc()
	}
}

func (m *Pool) Failure(op string) {
	if m != nil {
		m.failures.WithLabelValues(op).Inc()
	}
}

func (m *Pool) PoolCreated() {
	if m != nil {
		m.poolsCreated.Inc()
	}
}

// DepositCount returns the deposit counter, for reporting.
func (m *Pool) DepositCount() prometheus.Counter {
	if m == nil {
		return nil
	}
	return m.deposits
}

// PoolsCreatedCount returns the pool creation counter, for reporting.
func (m *Pool) PoolsCreatedCount() prometheus.Counter {
	if m == nil {
		return nil
	}
	return m.poolsCreated
}

// SwapCount returns the swap counter for direction, for reporting.
func (m *Pool) SwapCount(direction string) prometheus.Counter {
	if m == nil {
		return nil
	}
	return m.swaps.WithLabelValues(direction)
}

// FailureCount returns the failure counter for op, for reporting.
func (m *Pool) FailureCount(op string) prometheus.Counter {
	if m == nil {
		return nil
	}
	return m.failures.WithLabelValues(op)
}
