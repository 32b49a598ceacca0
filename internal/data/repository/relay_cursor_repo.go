package repository

import (
	"context"
	"errors"
	"fmt"

	"vehicle-rental/pkg/database"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// RelayCursorRepository stores how far a relay has shipped the timeline.
type RelayCursorRepository interface {
	Get(ctx context.Context, name string) (int64, error)
	Set(ctx context.Context, name string, seq int64) error
}

type relayCursorRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewRelayCursorRepository(db database.Querier, log *zap.Logger) RelayCursorRepository {
	return &relayCursorRepository{
		db:  db,
		log: log.With(zap.String("repository", "relay_cursor")),
	}
}

func (r *relayCursorRepository) Get(ctx context.Context, name string) (int64, error) {
	var seq int64
	err := r.db.QueryRow(ctx, `SELECT last_seq FROM relay_cursors WHERE name = $1`, name).Scan(&seq)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		r.log.Error("Failed to read relay cursor", zap.Error(err), zap.String("name", name))
		return 0, fmt.Errorf("read relay cursor %s: %w", name, err)
	}
	return seq, nil
}

func (r *relayCursorRepository) Set(ctx context.Context, name string, seq int64) error {
	query := `
		INSERT INTO relay_cursors (name, last_seq, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET last_seq = EXCLUDED.last_seq, updated_at = NOW()
		WHERE relay_cursors.last_seq < EXCLUDED.last_seq
	`

	if _, err := r.db.Exec(ctx, query, name, seq); err != nil {
		r.log.Error("Failed to store relay cursor",
			zap.Error(err),
			zap.String("name", name),
			zap.Int64("seq", seq),
		)
		return fmt.Errorf("store relay cursor %s: %w", name, err)
	}
	return nil
}
