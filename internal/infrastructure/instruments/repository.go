package instruments

import (
	"context"
	"errors"
	"fmt"

	domain "marketpipe/internal/domain/entity/instruments"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrInstrumentNotFound = errors.New("instrument not found")

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

const instrumentColumns = `uid, symbol, name, asset_class, tick_size, reference_price, created_at, updated_at`

func (r *Repository) CreateInstrument(ctx context.Context, instrument *domain.Instrument) error {
	if instrument == nil {
		return errors.New("instrument is nil")
	}
	const query = `
		INSERT INTO instruments (uid, symbol, name, asset_class, tick_size, reference_price, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING ` + instrumentColumns

	row := r.pool.QueryRow(ctx, query,
		instrument.UID,
		instrument.Symbol,
		instrument.Name,
		instrument.AssetClass,
		instrument.TickSize,
		instrument.ReferencePrice,
		instrument.CreatedAt,
		instrument.UpdatedAt,
	)
	return scanInstrumentInto(row, instrument)
}

func (r *Repository) GetInstrument(ctx context.Context, uid uuid.UUID) (*domain.Instrument, error) {
	const query = `
		SELECT ` + instrumentColumns + `
		FROM instruments
		WHERE uid=$1`

	row := r.pool.QueryRow(ctx, query, uid)
	instrument := &domain.Instrument{}
	if err := scanInstrumentInto(row, instrument); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInstrumentNotFound
		}
		return nil, err
	}
	return instrument, nil
}

func (r *Repository) GetInstrumentBySymbol(ctx context.Context, symbol string) (*domain.Instrument, error) {
	const query = `
		SELECT ` + instrumentColumns + `
		FROM instruments
		WHERE symbol=$1`

	row := r.pool.QueryRow(ctx, query, symbol)
	instrument := &domain.Instrument{}
	if err := scanInstrumentInto(row, instrument); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInstrumentNotFound
		}
		return nil, err
	}
	return instrument, nil
}

func (r *Repository) ListInstruments(ctx context.Context) ([]domain.Instrument, error) {
	const query = `
		SELECT ` + instrumentColumns + `
		FROM instruments
		ORDER BY symbol ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instruments []domain.Instrument
	for rows.Next() {
		var instrument domain.Instrument
		if err := scanInstrumentInto(rows, &instrument); err != nil {
			return nil, err
		}
		instruments = append(instruments, instrument)
	}
	return instruments, rows.Err()
}

func (r *Repository) UpdateInstrument(ctx context.Context, instrument *domain.Instrument) error {
	if instrument == nil {
		return errors.New("instrument is nil")
	}
	if instrument.UID == uuid.Nil {
		return errors.New("instrument UID is required")
	}
	const query = `
		UPDATE instruments
		SET symbol=$2,
			name=$3,
			asset_class=$4,
			tick_size=$5,
			reference_price=$6,
			updated_at=$7
		WHERE uid=$1
		RETURNING ` + instrumentColumns

	row := r.pool.QueryRow(ctx, query,
		instrument.UID,
		instrument.Symbol,
		instrument.Name,
		instrument.AssetClass,
		instrument.TickSize,
		instrument.ReferencePrice,
		instrument.UpdatedAt,
	)
	if err := scanInstrumentInto(row, instrument); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInstrumentNotFound
		}
		return err
	}
	return nil
}

func (r *Repository) DeleteInstrument(ctx context.Context, uid uuid.UUID) error {
	const query = `DELETE FROM instruments WHERE uid=$1`
	cmdTag, err := r.pool.Exec(ctx, query, uid)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrInstrumentNotFound
	}
	return nil
}

func scanInstrumentInto(row pgx.Row, instrument *domain.Instrument) error {
	return row.Scan(
		&instrument.UID,
		&instrument.Symbol,
		&instrument.Name,
		&instrument.AssetClass,
		&instrument.TickSize,
		&instrument.ReferencePrice,
		&instrument.CreatedAt,
		&instrument.UpdatedAt,
	)
}
