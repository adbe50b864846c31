package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/procurement-bot/internal/application/port"
	"github.com/garyjia/procurement-bot/internal/domain/entity"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create records one ticket event. Replaying an event ID is a no-op.
func (r *HistoryRepository) Create(ctx context.Context, history *entity.TicketHistory) error {
	query := `
		INSERT INTO ticket_history (
			event_id, ticket_number, actor, action, previous_status,
			new_status, reason, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		history.EventID,
		entity.NormalizeTicketNumber(history.TicketNumber),
		history.Actor,
		history.Action,
		history.PreviousStatus,
		history.NewStatus,
		history.Reason,
		history.Timestamp.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create history record",
			zap.String("ticket_number", history.TicketNumber),
			zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	history.ID = id
	return nil
}

// ListByTicket returns a ticket's history, oldest first
func (r *HistoryRepository) ListByTicket(ctx context.Context, ticketNumber string) ([]*entity.TicketHistory, error) {
	query := `
		SELECT id, event_id, ticket_number, actor, action, previous_status,
			new_status, reason, timestamp
		FROM ticket_history
		WHERE ticket_number = ?
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, entity.NormalizeTicketNumber(ticketNumber))
	if err != nil {
		r.logger.Error("Failed to get history by ticket", zap.String("ticket_number", ticketNumber), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var records []*entity.TicketHistory
	for rows.Next() {
		var record entity.TicketHistory
		var ts time.Time
		err := rows.Scan(
			&record.ID,
			&record.EventID,
			&record.TicketNumber,
			&record.Actor,
			&record.Action,
			&record.PreviousStatus,
			&record.NewStatus,
			&record.Reason,
			&ts,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		record.Timestamp = ts
		records = append(records, &record)
	}

	return records, rows.Err()
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
