package notify

import (
	"context"
	"encoding/json"
	"time"

	kafka "github.com/segmentio/kafka-go"
)

type kafkaQueue struct{ w *kafka.Writer }

// NewKafka publishes events to a Kafka topic. Writers are safe for
// concurrent use.
func NewKafka(brokers []string, topic string) Queue {
	if len(brokers) == 0 {
		return NewNoop()
	}
	if topic == "" {
		topic = "governance.approvals"
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireOne,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &kafkaQueue{w: w}
}

func (q *kafkaQueue) Publish(evt Event) error {
	b, _ := json.Marshal(evt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return q.w.WriteMessages(ctx, kafka.Message{Key: []byte(evt.ApprovalRef), Value: b})
}

func (q *kafkaQueue) Close() error { return q.w.Close() }
