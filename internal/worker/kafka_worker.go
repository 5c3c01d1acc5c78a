package worker

import (
	"context"
	"encoding/json"
	"time"

	"treasury-reconciler/internal/models"

	"github.com/IBM/sarama"
)

func (m *PartitionManager) runWorker(ctx context.Context, partition int, partitionConsumer sarama.PartitionConsumer, batchProcessor *BatchProcessor) {
	ticker := time.NewTicker(m.cfg.Worker.ProcessingInterval)
	defer ticker.Stop()

	log := m.logger.WithField("partition", partition)

	for {
		select {
		case <-ctx.Done():
			// Context canceled - terminating work
			log.Info("Shutdown signal received")
			batchProcessor.ProcessRemaining(context.WithoutCancel(ctx))
			return

		case msg, ok := <-partitionConsumer.Messages():
			if !ok {
				batchProcessor.ProcessRemaining(ctx)
				return
			}
			event, err := decodeCardEvent(msg.Value)
			if err != nil {
				log.WithError(err).WithField("offset", msg.Offset).Warn("Failed to unmarshal card event")
				m.metrics.CardEvent("unknown", "malformed")
				continue
			}
			batchProcessor.AddEvent(event)

		case err := <-partitionConsumer.Errors():
			// Error from Kafka
			log.WithError(err).Error("Kafka error")

		case <-ticker.C:
			// The timer has triggered - we process the batch
			batchProcessor.ProcessBatch(ctx)
		}
	}
}

func decodeCardEvent(value []byte) (models.CardEvent, error) {
	var event models.CardEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return event, err
	}
	return event, nil
}
