package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_created_total",
		Help: "Notifications persisted, by event kind.",
	}, []string{"kind"})

	NotificationsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_skipped_total",
		Help: "Notifications not created, by event kind and reason.",
	}, []string{"kind", "reason"})

	NotificationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_failed_total",
		Help: "Notifications that could not be persisted, by event kind.",
	}, []string{"kind"})

	EventsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_events_rejected_total",
		Help: "Inbound domain events dropped before planning, by reason.",
	}, []string{"reason"})

	Pushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_pushes_total",
		Help: "Live channel pushes, by result.",
	}, []string{"result"})

	LiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "notification_live_connections",
		Help: "Currently registered live channels.",
	})

	BackfilledItems = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notification_backfilled_items_total",
		Help: "Notifications replayed to reconnecting clients.",
	})

	DispatchQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "notification_dispatch_queue_depth",
		Help: "Events waiting to be planned by the dispatcher.",
	})
)

const (
	ReasonSelf             = "self"
	ReasonReceiverNotFound = "receiver_not_found"
	ReasonValidation       = "validation"
	ReasonQueueFull        = "queue_full"

	PushDelivered = "delivered"
	PushDropped   = "dropped"
	PushNoChannel = "no_channel"
)
