package inspector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	inspectorSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inspector_subscribers",
		Help: "The number of clients following the frame report feed.",
	})

	inspectorDroppedReports = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inspector_dropped_reports",
		Help: "The number of frame reports dropped for lagging subscribers.",
	})

	inspectorSentMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inspector_sent_messages",
		Help: "The number of messages sent on the frame report feed.",
	}, []string{"type"})
)

func instrumentSubscribersChanged(count int) {
	inspectorSubscribers.Set(float64(count))
}

func instrumentDroppedReport() {
	inspectorDroppedReports.Inc()
}

func instrumentSentMessage(msgType string) {
	inspectorSentMessages.
		With(prometheus.Labels{"type": msgType}).
		Inc()
}
