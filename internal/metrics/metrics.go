package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_dispatched_total",
			Help: "Total number of notification records persisted",
		},
		[]string{"category", "recipient_kind"},
	)

	NotificationDispatchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_dispatch_failures_total",
			Help: "Total number of notification dispatches that failed at the store",
		},
		[]string{"category"},
	)

	UrgencyEscalations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urgency_escalations_total",
			Help: "Total number of projects escalated into a severe urgency tier",
		},
		[]string{"tier"},
	)

	BidsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bids_submitted_total",
			Help: "Total number of bids accepted by the marketplace",
		},
	)
)
