package kafkarepo

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"treasury-reconciler/internal/models"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type SettlementRepository struct {
	writer messageWriter
}

func NewSettlementRepository(writer *kafka.Writer) *SettlementRepository {
	return &SettlementRepository{
		writer: writer,
	}
}

// NotifySettleable publishes one message per operation that became settleable.
func (r *SettlementRepository) NotifySettleable(ctx context.Context, treasury models.Treasury, operations []models.TreasuryOperation) error {
	if len(operations) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(operations))
	for _, op := range operations {
		msg := settlementMessage(treasury, op)
		msgBytes, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to marshal settlement message: %w", err)
		}

		// Use treasury id as key to keep settlements of one treasury ordered
		messages = append(messages, kafka.Message{
			Key:   []byte(strconv.FormatInt(treasury.ID, 10)),
			Value: msgBytes,
		})
	}

	if err := r.writer.WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("failed to write messages to kafka: %w", err)
	}

	return nil
}

func settlementMessage(treasury models.Treasury, op models.TreasuryOperation) models.SettlementMessage {
	msg := models.SettlementMessage{
		OperationID: op.ID,
		TreasuryID:  op.TreasuryID,
		Direction:   op.Direction,
		Amount:      op.SettlementAmount(),
		Token:       treasury.Token.Address,
		CreatedAt:   op.CreatedAt,
	}
	if op.Account != nil {
		msg.Account = *op.Account
	}
	if op.Metadata.Payg != nil && op.Metadata.Payg.Description != nil {
		msg.Description = *op.Metadata.Payg.Description
	} else {
		msg.Description = op.Message
	}
	return msg
}
