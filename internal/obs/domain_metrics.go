package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PricingDecisionsTotal counts tier resolutions by outcome (valid, below_minimum, fallback).
	PricingDecisionsTotal *prometheus.CounterVec
	// UpsellSuggestionsTotal counts upsell suggestions offered to buyers.
	UpsellSuggestionsTotal prometheus.Counter
	// ProposalsSavedTotal counts proposal saves by mode (create, update).
	ProposalsSavedTotal *prometheus.CounterVec
	// ProposalPDFTotal counts PDF renders by result.
	ProposalPDFTotal *prometheus.CounterVec
	// ProposalPDFLatency records PDF render latency in milliseconds.
	ProposalPDFLatency prometheus.Histogram
	// CatalogCacheTotal counts catalog cache lookups by result (hit, miss, error).
	CatalogCacheTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PricingDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_decisions_total",
			Help:      "Count of tiered price resolutions by outcome.",
		}, []string{"result"})
		UpsellSuggestionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upsell_suggestions_total",
			Help:      "Number of next-tier upsell suggestions produced.",
		})
		ProposalsSavedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proposals_saved_total",
			Help:      "Count of proposal saves by mode.",
		}, []string{"mode"})
		ProposalPDFTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proposal_pdf_total",
			Help:      "Count of proposal PDF renders by result.",
		}, []string{"result"})
		ProposalPDFLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "proposal_pdf_duration_ms",
			Help:      "Latency of proposal PDF renders in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		})
		CatalogCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_cache_total",
			Help:      "Count of catalog cache lookups by result.",
		}, []string{"result"})

		mustRegisterCollector(reg, PricingDecisionsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PricingDecisionsTotal = v
			}
		})
		mustRegisterCollector(reg, UpsellSuggestionsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				UpsellSuggestionsTotal = v
			}
		})
		mustRegisterCollector(reg, ProposalsSavedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ProposalsSavedTotal = v
			}
		})
		mustRegisterCollector(reg, ProposalPDFTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ProposalPDFTotal = v
			}
		})
		mustRegisterCollector(reg, ProposalPDFLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				ProposalPDFLatency = v
			}
		})
		mustRegisterCollector(reg, CatalogCacheTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CatalogCacheTotal = v
			}
		})
	})
}

// The record helpers are no-ops until MustRegisterDomainMetrics runs, so
// packages can be exercised in tests without a registry.

// RecordPricingDecision increments the pricing decision counter.
func RecordPricingDecision(result string) {
	if PricingDecisionsTotal != nil {
		PricingDecisionsTotal.WithLabelValues(result).Inc()
	}
}

// RecordUpsell increments the upsell counter.
func RecordUpsell() {
	if UpsellSuggestionsTotal != nil {
		UpsellSuggestionsTotal.Inc()
	}
}

// RecordProposalSaved increments the proposal save counter.
func RecordProposalSaved(mode string) {
	if ProposalsSavedTotal != nil {
		ProposalsSavedTotal.WithLabelValues(mode).Inc()
	}
}

// RecordProposalPDF records a PDF render outcome and its latency.
func RecordProposalPDF(result string, millis float64) {
	if ProposalPDFTotal != nil {
		ProposalPDFTotal.WithLabelValues(result).Inc()
	}
	if ProposalPDFLatency != nil && result == "ok" {
		ProposalPDFLatency.Observe(millis)
	}
}

// RecordCatalogCache increments the catalog cache counter.
func RecordCatalogCache(result string) {
	if CatalogCacheTotal != nil {
		CatalogCacheTotal.WithLabelValues(result).Inc()
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
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
