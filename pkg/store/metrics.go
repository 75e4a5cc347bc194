package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "introchat_store_messages_saved_total",
		Help: "Messages durably appended to a thread.",
	})
	threadsSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "introchat_store_threads_saved_total",
		Help: "Thread metadata writes.",
	})
	threadsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "introchat_store_threads_deleted_total",
		Help: "Hard thread deletions (cascading to messages).",
	})
	statusUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "introchat_store_status_updates_total",
		Help: "Delivery status rewrites.",
	})
)
