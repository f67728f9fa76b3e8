package bus

import (
	"github.com/segmentio/kafka-go"
)

// NewWriter returns a producer with no default topic: every message names
// its own, so one writer serves the outbox relay and the dead-letter path.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}
