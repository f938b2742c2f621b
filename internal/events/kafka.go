package events

import (
	"context"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/sirupsen/logrus"
)

type producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Flush(timeoutMs int) int
	Close()
}

var _ Notifier = (*KafkaNotifier)(nil)

// KafkaNotifier produces events to a topic keyed by context.
type KafkaNotifier struct {
	producer producer
	topic    string
}

// NewKafkaNotifier connects a producer to the given brokers.
func NewKafkaNotifier(brokers, topic string) (*KafkaNotifier, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":   brokers,
		"security.protocol":   "plaintext",
		"go.delivery.reports": false,
	})
	if err != nil {
		return nil, err
	}

	return &KafkaNotifier{producer: p, topic: topic}, nil
}

func (k *KafkaNotifier) Notify(_ context.Context, e Event) {
	err := k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &k.topic, Partition: kafka.PartitionAny},
		Key:            []byte(e.Context),
		Value:          e.encode(),
	}, nil)
	if err != nil {
		logrus.Warnf("failed to produce event %s for %s: %v", e.Type, e.Context, err)
	}
}

// Close flushes pending events and closes the producer.
func (k *KafkaNotifier) Close() {
	k.producer.Flush(1000)
	k.producer.Close()
}
