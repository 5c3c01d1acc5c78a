package worker

import (
	"context"
	"sync"

	"treasury-reconciler/internal/broker"
	"treasury-reconciler/internal/config"
	"treasury-reconciler/internal/logging"
	"treasury-reconciler/internal/metrics"

	"github.com/IBM/sarama"
)

// PartitionManager runs one card-event worker per topic partition.
type PartitionManager struct {
	cfg        *config.Config
	cardEvents CardEventProcessor
	metrics    *metrics.Metrics
	logger     logging.Logger
	wg         sync.WaitGroup
}

func NewPartitionManager(cfg *config.Config, cardEvents CardEventProcessor, m *metrics.Metrics, logger logging.Logger) *PartitionManager {
	return &PartitionManager{
		cfg:        cfg,
		cardEvents: cardEvents,
		metrics:    m,
		logger:     logger,
	}
}

// Start blocks until ctx is canceled and every partition worker has flushed.
func (m *PartitionManager) Start(ctx context.Context) error {
	m.logger.WithField("partitions", m.cfg.Kafka.Partitions).Info("Starting card event workers")

	consumer, err := broker.NewCardEventsConsumer(m.cfg.Kafka)
	if err != nil {
		return err
	}
	defer consumer.Close()

	for partition := 0; partition < m.cfg.Kafka.Partitions; partition++ {
		m.wg.Add(1)
		go m.startWorkerForPartition(ctx, consumer, partition)
	}

	// Wait for all workers to complete to prevent program termination
	m.wg.Wait()
	m.logger.Info("All partition workers stopped")
	return nil
}

func (m *PartitionManager) startWorkerForPartition(ctx context.Context, consumer sarama.Consumer, partition int) {
	defer m.wg.Done()

	log := m.logger.WithField("partition", partition)
	log.Info("Starting worker for partition")

	// Redelivered events are ignored by the upsert
	partitionConsumer, err := consumer.ConsumePartition(
		m.cfg.Kafka.CardEventsTopic,
		int32(partition),
		m.cfg.Kafka.GetSaramaConfig().Consumer.Offsets.Initial,
	)
	if err != nil {
		log.WithError(err).Error("Failed to create partition consumer")
		return
	}
	defer partitionConsumer.Close()

	// Create a BatchProcessor for this partition
	batchProcessor := NewBatchProcessor(partition, m.cardEvents, m.logger)

	// Start the main worker loop
	m.runWorker(ctx, partition, partitionConsumer, batchProcessor)
}
