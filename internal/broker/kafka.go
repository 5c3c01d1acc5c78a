package broker

import (
	"fmt"

	"treasury-reconciler/internal/config"

	"github.com/IBM/sarama"
	"github.com/segmentio/kafka-go"
)

// NewKafkaWriter creates the producer used for settlement notifications.
func NewKafkaWriter(cfg config.KafkaConfig) (*kafka.Writer, error) {
	if !cfg.KafkaEnabled() {
		return nil, fmt.Errorf("no kafka brokers configured")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.SettlementTopic,
		Balancer:     &kafka.Hash{},    // Use hash balancer to guarantee order per treasury
		RequiredAcks: kafka.RequireOne, // Wait for acknowledgement from leader
		Async:        false,            // Synchronous writing for reliability
		MaxAttempts:  10,
	}

	return writer, nil
}

// NewCardEventsConsumer creates the sarama consumer for card-processor events.
func NewCardEventsConsumer(cfg config.KafkaConfig) (sarama.Consumer, error) {
	consumer, err := sarama.NewConsumer(cfg.Brokers, cfg.GetSaramaConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}
	return consumer, nil
}
