package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// ReactorMetrics covers the per-collateral operation counters and pool gauges
// exported on /metrics.
type ReactorMetrics struct {
	operations    *prometheus.CounterVec
	reserve       *prometheus.GaugeVec
	neutronSupply *prometheus.GaugeVec
	protonSupply  *prometheus.GaugeVec
	conversionFee *prometheus.GaugeVec
}

var (
	reactorOnce     sync.Once
	reactorRegistry *ReactorMetrics
)

func Reactor() *ReactorMetrics {
	reactorOnce.Do(func() {
		reactorRegistry = &ReactorMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "reactor_operations_total",
				Help: "Count of completed reactor operations by collateral and kind.",
			}, []string{"collateral", "kind"}),
			reserve: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "reactor_reserve",
				Help: "Collateral units held by the reactor, wad-adjusted.",
			}, []string{"collateral"}),
			neutronSupply: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "reactor_neutron_supply",
				Help: "Outstanding stable claim supply, wad-adjusted.",
			}, []string{"collateral"}),
			protonSupply: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "reactor_proton_supply",
				Help: "Outstanding volatile claim supply, wad-adjusted.",
			}, []string{"collateral"}),
			conversionFee: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "reactor_conversion_fee_wad",
				Help: "Last quoted conversion fee rate by collateral and direction.",
			}, []string{"collateral", "direction"}),
		}
		prometheus.MustRegister(
			reactorRegistry.operations,
			reactorRegistry.reserve,
			reactorRegistry.neutronSupply,
			reactorRegistry.protonSupply,
			reactorRegistry.conversionFee,
		)
	})
	return reactorRegistry
}

func (m *ReactorMetrics) ObserveOperation(collateral, kind string) {
	if m == nil {
		return
	}
	if collateral == "" {
		collateral = "unknown"
	}
	if kind == "" {
		kind = "unknown"
	}
	m.operations.WithLabelValues(collateral, kind).Inc()
}

func (m *ReactorMetrics) SetPool(collateral string, reserve, neutronSupply, protonSupply float64) {
	if m == nil || collateral == "" {
		return
	}
	m.reserve.WithLabelValues(collateral).Set(reserve)
	m.neutronSupply.WithLabelValues(collateral).Set(neutronSupply)
	m.protonSupply.WithLabelValues(collateral).Set(protonSupply)
}

func (m *ReactorMetrics) SetConversionFee(collateral, direction string, feeWad float64) {
	if m == nil || collateral == "" || direction == "" {
		return
	}
	m.conversionFee.WithLabelValues(collateral, direction).Set(feeWad)
}
