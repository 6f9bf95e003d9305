package observability

import (
	"errors"
	"math"
	"math/big"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	nativecommon "horus/native/common"
	"horus/native/leverage"
)

// LeverageMetrics tracks the leveraged liquidity ledger.
type LeverageMetrics struct {
	operations  *prometheus.CounterVec
	debt        prometheus.Gauge
	liquidity   prometheus.Gauge
	ceiling     prometheus.Gauge
	accrued     prometheus.Gauge
	underpaid   prometheus.Counter
	underpaidTo prometheus.Counter
}

var (
	leverageMetricsOnce sync.Once
	leverageRegistry    *LeverageMetrics
)

// Leverage returns the lazily-initialised leverage metrics registry. It
// satisfies leverage.MetricsSink.
func Leverage() *LeverageMetrics {
	leverageMetricsOnce.Do(func() {
		leverageRegistry = &LeverageMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "horus",
				Subsystem: "leverage",
				Name:      "operations_total",
				Help:      "Count of ledger operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			debt: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "horus",
				Subsystem: "leverage",
				Name:      "debt_total",
				Help:      "Aggregate outstanding debt in debt-asset base units.",
			}),
			liquidity: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "horus",
				Subsystem: "leverage",
				Name:      "liquidity_total",
				Help:      "Aggregate liquidity tokens attributed to users.",
			}),
			ceiling: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "horus",
				Subsystem: "leverage",
				Name:      "debt_ceiling",
				Help:      "Configured aggregate debt ceiling.",
			}),
			accrued: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "horus",
				Subsystem: "leverage",
				Name:      "accrued_interest",
				Help:      "Skimmed interest awaiting collection, in static collateral units.",
			}),
			underpaid: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "horus",
				Subsystem: "leverage",
				Name:      "reward_underpayments_total",
				Help:      "Count of reward settlements paid below the amount owed.",
			}),
			underpaidTo: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "horus",
				Subsystem: "leverage",
				Name:      "reward_shortfall_total",
				Help:      "Reward tokens owed but not paid because the balance ran short.",
			}),
		}
		prometheus.MustRegister(
			leverageRegistry.operations,
			leverageRegistry.debt,
			leverageRegistry.liquidity,
			leverageRegistry.ceiling,
			leverageRegistry.accrued,
			leverageRegistry.underpaid,
			leverageRegistry.underpaidTo,
		)
	})
	return leverageRegistry
}

// ObserveOperation records the outcome of a ledger operation. Rejections are
// labelled by their sentinel so dashboards can tell ceiling pressure from
// insolvency.
func (m *LeverageMetrics) ObserveOperation(op string, err error) {
	if m == nil {
		return
	}
	op = strings.TrimSpace(op)
	if op == "" {
		op = "unknown"
	}
	m.operations.WithLabelValues(op, outcomeLabel(err)).Inc()
}

// ObserveTotals updates the aggregate gauges after a commit.
func (m *LeverageMetrics) ObserveTotals(debt, lp, ceiling, accrued *big.Int) {
	if m == nil {
		return
	}
	m.debt.Set(bigToFloat(debt))
	m.liquidity.Set(bigToFloat(lp))
	m.ceiling.Set(bigToFloat(ceiling))
	m.accrued.Set(bigToFloat(accrued))
}

// ObserveUnderpayment records a capped reward payout.
func (m *LeverageMetrics) ObserveUnderpayment(shortfall *big.Int) {
	if m == nil {
		return
	}
	m.underpaid.Inc()
	m.underpaidTo.Add(bigToFloat(shortfall))
}

var outcomeSentinels = []struct {
	err   error
	label string
}{
	{leverage.ErrInsufficientEquity, "insufficient_equity"},
	{leverage.ErrDebtCeilingExceeded, "ceiling_exceeded"},
	{leverage.ErrInsufficientLiquidity, "insufficient_liquidity"},
	{leverage.ErrSlippageExceeded, "slippage"},
	{leverage.ErrDeadlineExpired, "deadline"},
	{leverage.ErrUnauthorized, "unauthorized"},
	{leverage.ErrInvalidAmount, "invalid_amount"},
	{leverage.ErrInvariantViolation, "invariant"},
	{nativecommon.ErrModulePaused, "paused"},
}

func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	for _, s := range outcomeSentinels {
		if errors.Is(err, s.err) {
			return s.label
		}
	}
	return "error"
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		// Guard against NaN/Inf when conversion fails.
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
