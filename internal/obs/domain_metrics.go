package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PaymentInitiateTotal counts transaction initiation outcomes.
	PaymentInitiateTotal *prometheus.CounterVec
	// PaymentCallbackTotal counts inbound gateway callbacks by outcome.
	PaymentCallbackTotal *prometheus.CounterVec
	// PaymentConfirmTotal counts order status confirmations by gateway status.
	PaymentConfirmTotal *prometheus.CounterVec
	// OrderTransitionsTotal counts order state changes.
	OrderTransitionsTotal *prometheus.CounterVec
	// GatewayLatency records gateway call latency in milliseconds.
	GatewayLatency *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PaymentInitiateTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_initiate_total",
			Help:      "Count of transaction initiation outcomes.",
		}, []string{"result"})
		PaymentCallbackTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_callback_total",
			Help:      "Count of processed gateway callbacks by outcome.",
		}, []string{"result"})
		PaymentConfirmTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_confirm_total",
			Help:      "Count of order status confirmations by outcome.",
		}, []string{"result"})
		OrderTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Count of order status transitions.",
		}, []string{"to"})
		GatewayLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payment_gateway_duration_ms",
			Help:      "Latency for payment gateway calls in milliseconds.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"operation", "result"})

		mustRegisterCollector(reg, PaymentInitiateTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PaymentInitiateTotal = v
			}
		})
		mustRegisterCollector(reg, PaymentCallbackTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PaymentCallbackTotal = v
			}
		})
		mustRegisterCollector(reg, PaymentConfirmTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PaymentConfirmTotal = v
			}
		})
		mustRegisterCollector(reg, OrderTransitionsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OrderTransitionsTotal = v
			}
		})
		mustRegisterCollector(reg, GatewayLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				GatewayLatency = v
			}
		})
	})
}

// CountInitiate increments the initiation counter when domain metrics are registered.
func CountInitiate(result string) {
	if PaymentInitiateTotal != nil {
		PaymentInitiateTotal.WithLabelValues(result).Inc()
	}
}

// CountCallback increments the callback counter when domain metrics are registered.
func CountCallback(result string) {
	if PaymentCallbackTotal != nil {
		PaymentCallbackTotal.WithLabelValues(result).Inc()
	}
}

// CountConfirm increments the confirmation counter when domain metrics are registered.
func CountConfirm(result string) {
	if PaymentConfirmTotal != nil {
		PaymentConfirmTotal.WithLabelValues(result).Inc()
	}
}

// CountTransition increments the order transition counter when domain metrics are registered.
func CountTransition(to string) {
	if OrderTransitionsTotal != nil {
		OrderTransitionsTotal.WithLabelValues(to).Inc()
	}
}

// ObserveGateway records a gateway call's latency.
func ObserveGateway(operation, result string, millis float64) {
	if GatewayLatency != nil {
		GatewayLatency.WithLabelValues(operation, result).Observe(millis)
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
}
