package interfaces

import (
	"context"

	domain "marketpipe/internal/domain/entity/instruments"

	"github.com/google/uuid"
)

// InstrumentsRepository stores the directory of tradable symbols.
type InstrumentsRepository interface {
	CreateInstrument(ctx context.Context, instrument *domain.Instrument) error
	GetInstrument(ctx context.Context, uid uuid.UUID) (*domain.Instrument, error)
	GetInstrumentBySymbol(ctx context.Context, symbol string) (*domain.Instrument, error)
	ListInstruments(ctx context.Context) ([]domain.Instrument, error)
	UpdateInstrument(ctx context.Context, instrument *domain.Instrument) error
	DeleteInstrument(ctx context.Context, uid uuid.UUID) error

	Close()
}
