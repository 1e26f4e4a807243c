package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "marketpipe/internal/domain/entity/marketdata"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository stores order book snapshot history in Postgres. Level arrays
// are kept as JSONB so the read path can hand them back without a join.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

const insertSnapshotQuery = `
	INSERT INTO order_book_snapshots (snapshot_id, symbol, snapshot_at, sequence_number, bids, asks)
	VALUES ($1,$2,$3,$4,$5,$6)`

func (r *Repository) AddOrderBookSnapshot(ctx context.Context, snapshot *domain.OrderBookSnapshot) error {
	if snapshot == nil {
		return errors.New("nil order book snapshot")
	}
	if snapshot.ID == uuid.Nil {
		snapshot.ID = uuid.New()
	}
	bidsJSON, asksJSON, err := marshalSides(snapshot)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, insertSnapshotQuery,
		snapshot.ID,
		snapshot.Symbol,
		time.Unix(0, snapshot.Timestamp).UTC(),
		snapshot.SequenceNumber,
		bidsJSON,
		asksJSON,
	)
	return err
}

func (r *Repository) AddOrderBookSnapshots(ctx context.Context, snapshots []domain.OrderBookSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	rows := make([][]interface{}, 0, len(snapshots))
	for i := range snapshots {
		if snapshots[i].ID == uuid.Nil {
			snapshots[i].ID = uuid.New()
		}
		bidsJSON, asksJSON, err := marshalSides(&snapshots[i])
		if err != nil {
			return err
		}
		rows = append(rows, []interface{}{
			snapshots[i].ID,
			snapshots[i].Symbol,
			time.Unix(0, snapshots[i].Timestamp).UTC(),
			snapshots[i].SequenceNumber,
			bidsJSON,
			asksJSON,
		})
	}
	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"order_book_snapshots"},
		[]string{"snapshot_id", "symbol", "snapshot_at", "sequence_number", "bids", "asks"},
		pgx.CopyFromRows(rows),
	)
	return err
}

func (r *Repository) GetOrderBookSnapshotsBetween(ctx context.Context, symbol string, from, to time.Time) ([]domain.OrderBookSnapshot, error) {
	const query = `
		SELECT snapshot_id, symbol, snapshot_at, sequence_number, bids, asks
		FROM order_book_snapshots
		WHERE symbol=$1 AND snapshot_at >= $2 AND snapshot_at <= $3
		ORDER BY snapshot_at ASC`
	rows, err := r.pool.Query(ctx, query, symbol, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []domain.OrderBookSnapshot
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, rows.Err()
}

func (r *Repository) GetLastOrderBookSnapshots(ctx context.Context, symbol string, limit int) ([]domain.OrderBookSnapshot, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	const query = `
		SELECT snapshot_id, symbol, snapshot_at, sequence_number, bids, asks
		FROM order_book_snapshots
		WHERE symbol=$1
		ORDER BY snapshot_at DESC
		LIMIT $2`
	rows, err := r.pool.Query(ctx, query, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []domain.OrderBookSnapshot
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, rows.Err()
}

func scanSnapshot(row pgx.Row) (domain.OrderBookSnapshot, error) {
	var (
		snapshotAt time.Time
		bidsJSON   []byte
		asksJSON   []byte
	)
	snapshot := domain.OrderBookSnapshot{}
	err := row.Scan(
		&snapshot.ID,
		&snapshot.Symbol,
		&snapshotAt,
		&snapshot.SequenceNumber,
		&bidsJSON,
		&asksJSON,
	)
	if err != nil {
		return domain.OrderBookSnapshot{}, err
	}
	snapshot.Timestamp = snapshotAt.UnixNano()
	if err := json.Unmarshal(bidsJSON, &snapshot.Bids); err != nil {
		return domain.OrderBookSnapshot{}, err
	}
	if err := json.Unmarshal(asksJSON, &snapshot.Asks); err != nil {
		return domain.OrderBookSnapshot{}, err
	}
	return snapshot, nil
}

func marshalSides(snapshot *domain.OrderBookSnapshot) ([]byte, []byte, error) {
	bidsJSON, err := json.Marshal(snapshot.Bids)
	if err != nil {
		return nil, nil, err
	}
	asksJSON, err := json.Marshal(snapshot.Asks)
	if err != nil {
		return nil, nil, err
	}
	return bidsJSON, asksJSON, nil
}
