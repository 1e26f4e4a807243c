package instruments

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "marketpipe/internal/domain/entity/instruments"
	interfaces "marketpipe/internal/domain/interfaces"

	"github.com/google/uuid"
)

var (
	ErrNilInstrument = errors.New("instrument is nil")
	ErrEmptySymbol   = errors.New("instrument symbol is empty")
)

type Service struct {
	repo interfaces.InstrumentsRepository
}

func NewService(repo interfaces.InstrumentsRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateInstrument(ctx context.Context, instrument *domain.Instrument) error {
	if instrument == nil {
		return ErrNilInstrument
	}
	instrument.Symbol = strings.ToUpper(strings.TrimSpace(instrument.Symbol))
	if instrument.Symbol == "" {
		return ErrEmptySymbol
	}
	if instrument.UID == uuid.Nil {
		instrument.UID = uuid.New()
	}
	now := time.Now().UTC()
	instrument.CreatedAt = now
	instrument.UpdatedAt = now
	return s.repo.CreateInstrument(ctx, instrument)
}

func (s *Service) GetInstrument(ctx context.Context, uid uuid.UUID) (*domain.Instrument, error) {
	return s.repo.GetInstrument(ctx, uid)
}

func (s *Service) GetInstrumentBySymbol(ctx context.Context, symbol string) (*domain.Instrument, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, ErrEmptySymbol
	}
	return s.repo.GetInstrumentBySymbol(ctx, symbol)
}

func (s *Service) ListInstruments(ctx context.Context) ([]domain.Instrument, error) {
	return s.repo.ListInstruments(ctx)
}

func (s *Service) UpdateInstrument(ctx context.Context, instrument *domain.Instrument) error {
	if instrument == nil {
		return ErrNilInstrument
	}
	instrument.UpdatedAt = time.Now().UTC()
	return s.repo.UpdateInstrument(ctx, instrument)
}

func (s *Service) DeleteInstrument(ctx context.Context, uid uuid.UUID) error {
	return s.repo.DeleteInstrument(ctx, uid)
}

func (s *Service) Close() {
	s.repo.Close()
}
