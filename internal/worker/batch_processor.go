package worker

import (
	"context"
	"sort"
	"sync"
	"time"

	"treasury-reconciler/internal/logging"
	"treasury-reconciler/internal/models"
)

// CardEventProcessor stores the card events of one treasury.
type CardEventProcessor interface {
	ProcessTreasuryEvents(ctx context.Context, treasuryID int64, events []models.CardEvent) error
}

type BatchProcessor struct {
	partitionID   int
	cardEvents    CardEventProcessor
	logger        logging.Logger
	events        []models.CardEvent
	mutex         sync.Mutex
	lastProcessed time.Time
}

func NewBatchProcessor(partitionID int, cardEvents CardEventProcessor, logger logging.Logger) *BatchProcessor {
	return &BatchProcessor{
		partitionID:   partitionID,
		cardEvents:    cardEvents,
		logger:        logger,
		events:        make([]models.CardEvent, 0),
		lastProcessed: time.Now(),
	}
}

func (bp *BatchProcessor) AddEvent(event models.CardEvent) {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	bp.events = append(bp.events, event)
}

// ProcessBatch hands the buffered events to the service, one treasury at a time.
// Events of a treasury that failed stay buffered for the next tick.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context) {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	bp.processLocked(ctx)
}

func (bp *BatchProcessor) ProcessRemaining(ctx context.Context) {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	if len(bp.events) > 0 {
		bp.logger.WithFields(logging.Fields{
			"partition": bp.partitionID,
			"events":    len(bp.events),
		}).Info("Processing remaining card events before shutdown")
		bp.processLocked(ctx)
	}
}

func (bp *BatchProcessor) Pending() int {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	return len(bp.events)
}

func (bp *BatchProcessor) processLocked(ctx context.Context) {
	if len(bp.events) == 0 {
		return
	}

	log := bp.logger.WithField("partition", bp.partitionID)
	log.WithField("events", len(bp.events)).Debug("Processing card event batch")

	retained := make([]models.CardEvent, 0)
	for _, group := range groupByTreasury(bp.events) {
		if err := bp.cardEvents.ProcessTreasuryEvents(ctx, group.treasuryID, group.events); err != nil {
			log.WithError(err).WithField("treasury_id", group.treasuryID).Error("Failed to process card events")
			// Continue processing other treasuries
			retained = append(retained, group.events...)
			continue
		}
	}

	bp.events = retained
	bp.lastProcessed = time.Now()
}

type treasuryEvents struct {
	treasuryID int64
	events     []models.CardEvent
}

// groupByTreasury keeps arrival order within a treasury.
func groupByTreasury(events []models.CardEvent) []treasuryEvents {
	index := make(map[int64]int)
	var groups []treasuryEvents
	for _, event := range events {
		i, ok := index[event.TreasuryID]
		if !ok {
			i = len(groups)
			index[event.TreasuryID] = i
			groups = append(groups, treasuryEvents{treasuryID: event.TreasuryID})
		}
		groups[i].events = append(groups[i].events, event)
	}
	sort.SliceStable(groups, func(a, b int) bool { return groups[a].treasuryID < groups[b].treasuryID })
	return groups
}
