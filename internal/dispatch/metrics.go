package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	offersSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_offers_sent_total",
		Help: "Number of ride offers pushed to drivers.",
	})

	acceptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_accepts_total",
		Help: "Number of offers accepted by drivers.",
	})

	declinesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_declines_total",
		Help: "Number of offers declined by drivers.",
	})

	timeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_timeouts_total",
		Help: "Number of offers that expired without a driver response.",
	})

	exhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_exhausted_total",
		Help: "Number of requests resolved with no drivers available.",
	})

	cancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_cancelled_total",
		Help: "Number of requests cancelled while in dispatch.",
	})
)
