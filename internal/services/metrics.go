package services

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the engine's Prometheus collectors
type Metrics struct {
	CoinsAwarded     *prometheus.CounterVec
	CoinsDeducted    *prometheus.CounterVec
	AwardFailures    *prometheus.CounterVec
	BadgesAwarded    *prometheus.CounterVec
	Redemptions      *prometheus.CounterVec
	ComplaintsFiled  *prometheus.CounterVec
	Breaches         prometheus.Counter
	SweepDuration    prometheus.Histogram
	WalletMismatches prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CoinsAwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civic_coins_awarded_total",
			Help: "Coins credited to citizen wallets",
		}, []string{"reason"}),
		CoinsDeducted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civic_coins_deducted_total",
			Help: "Coins debited from citizen wallets",
		}, []string{"reason"}),
		AwardFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civic_award_failures_total",
			Help: "Best-effort ledger awards that failed after retries",
		}, []string{"reason"}),
		BadgesAwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civic_badges_awarded_total",
			Help: "Badges newly awarded",
		}, []string{"slug"}),
		Redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civic_redemptions_total",
			Help: "Reward redemption attempts by outcome",
		}, []string{"outcome"}),
		ComplaintsFiled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civic_complaints_filed_total",
			Help: "Complaints accepted at intake",
		}, []string{"severity"}),
		Breaches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "civic_sla_breaches_total",
			Help: "Complaints flagged as SLA-breached by the sweep",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "civic_sla_sweep_duration_seconds",
			Help:    "Duration of SLA sweep runs",
			Buckets: prometheus.DefBuckets,
		}),
		WalletMismatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "civic_wallet_mismatches",
			Help: "Wallets whose cached totals disagree with their transactions at the last audit",
		}),
	}

	reg.MustRegister(
		m.CoinsAwarded, m.CoinsDeducted, m.AwardFailures, m.BadgesAwarded,
		m.Redemptions, m.ComplaintsFiled, m.Breaches, m.SweepDuration, m.WalletMismatches,
	)
	return m
}
