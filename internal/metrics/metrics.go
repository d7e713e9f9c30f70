package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Command metrics
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "huskychat_commands_total",
			Help: "Total commands handled",
		},
		[]string{"command", "status"},
	)

	CommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "huskychat_command_duration_seconds",
			Help:    "Command handling duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"command"},
	)

	// Connection metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "huskychat_connections_active",
			Help: "Currently open command-socket connections",
		},
	)

	// Business metrics
	SignInsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "huskychat_signins_total",
			Help: "Total sign-in finish attempts",
		},
		[]string{"result"},
	)

	RegistrationsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "huskychat_registrations_started_total",
			Help: "Total registrations started",
		},
	)

	UsersRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "huskychat_users_registered_total",
			Help: "Total registrations completed",
		},
	)

	// Relay metrics
	PushesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "huskychat_pushes_sent_total",
			Help: "Total real-time pushes attempted",
		},
		[]string{"result"}, // "delivered" or "dropped"
	)

	MessagesPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "huskychat_messages_persisted_total",
			Help: "Total per-recipient message records persisted",
		},
	)
)
