package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// ClaimsSubmitted 按结果统计认领申请提交
	ClaimsSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lostfound",
		Subsystem: "claim",
		Name:      "submitted_total",
		Help:      "Claim submissions, labeled by result.",
	}, []string{"result"})

	// ClaimsReviewed 按操作和结果统计审核
	ClaimsReviewed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lostfound",
		Subsystem: "claim",
		Name:      "reviewed_total",
		Help:      "Claim reviews, labeled by action and result.",
	}, []string{"action", "result"})

	NotificationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lostfound",
		Subsystem: "notify",
		Name:      "failures_total",
		Help:      "Notifications that could not be delivered.",
	})

	RecommendationsReturned = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lostfound",
		Subsystem: "match",
		Name:      "recommendations",
		Help:      "Number of recommendations returned per request.",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
	})
)

// Register 只注册一次, 可重复调用
func Register() {
	once.Do(func() {
		prometheus.MustRegister(ClaimsSubmitted, ClaimsReviewed, NotificationFailures, RecommendationsReturned)
	})
}
