package consumer

import "github.com/prometheus/client_golang/prometheus"

const subsystem = "consumer"

var (
	processedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthscore",
		Subsystem: subsystem,
		Name:      "messages_processed_total",
		Help:      "Kafka messages handled and committed.",
	}, []string{"topic", "event_type"})

	handlerErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthscore",
		Subsystem: subsystem,
		Name:      "handler_errors_total",
		Help:      "Handler failures after retries; the message is left uncommitted.",
	}, []string{"topic", "event_type"})

	decodeErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthscore",
		Subsystem: subsystem,
		Name:      "decode_errors_total",
		Help:      "Malformed records skipped and committed.",
	}, []string{"topic"})

	lastMessageGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "healthscore",
		Subsystem: subsystem,
		Name:      "last_message_timestamp_seconds",
		Help:      "Kafka timestamp of the last committed message.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(processedCounter, handlerErrorCounter, decodeErrorCounter, lastMessageGauge)
}

func recordProcessed(msg Message) {
	processedCounter.WithLabelValues(msg.Topic, msg.EventType).Inc()
	if !msg.Timestamp.IsZero() {
		lastMessageGauge.WithLabelValues(msg.Topic).Set(float64(msg.Timestamp.Unix()))
	}
}

func recordHandlerError(msg Message) {
	handlerErrorCounter.WithLabelValues(msg.Topic, msg.EventType).Inc()
}

func recordDecodeError(topic string) {
	decodeErrorCounter.WithLabelValues(topic).Inc()
}
