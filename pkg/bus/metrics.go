package bus

import "github.com/prometheus/client_golang/prometheus"

var (
	messagesPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sync_messages_published_total"},
		[]string{"type"},
	)
	messagesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sync_messages_received_total"},
		[]string{"type"},
	)
)
