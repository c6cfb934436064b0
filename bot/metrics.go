package bot

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shout_messages_total",
			Help: "Messages run through the shout pipeline, by outcome.",
		},
		[]string{"outcome"},
	)
	recallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shout_recalls_total",
			Help: "Recall replies sent, by whether an archived shout was found.",
		},
		[]string{"found"},
	)
	archiveOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shout_archive_operations_total",
			Help: "Archive mutations that changed stored shouts.",
		},
		[]string{"op"},
	)
	updatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shout_telegram_updates_total",
			Help: "Telegram updates received, by kind.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		messagesTotal,
		recallsTotal,
		archiveOpsTotal,
		updatesTotal,
	)
}
