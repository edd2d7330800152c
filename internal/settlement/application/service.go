package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"wecar-diagnosis/internal/observability/metrics"
	settlement "wecar-diagnosis/internal/settlement/domain"
)

// Repository is the storage surface the settlement service needs.
type Repository interface {
	CountAnsweredByDayEvaluator(ctx context.Context, start, end time.Time) ([]settlement.SourceRow, error)
	SaveSnapshot(ctx context.Context, snap *settlement.Snapshot) (int64, error)
	GetSnapshot(ctx context.Context, id int64) (*settlement.Snapshot, error)
	ListSnapshots(ctx context.Context) ([]*settlement.Snapshot, error)
}

// Service computes monthly settlements and manages saved snapshots.
type Service struct {
	repo   Repository
	logger *log.Logger
}

func NewService(repo Repository, logger *log.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("settlement service: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{repo: repo, logger: logger}, nil
}

// Aggregate computes the settlement for one year/month from live data.
func (s *Service) Aggregate(ctx context.Context, year, month int) (*settlement.Aggregation, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveSettlementOp("aggregate", result, time.Since(start))
	}()

	period, err := settlement.NewPeriod(year, month)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	agg, err := s.aggregate(ctx, period)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	return agg, nil
}

func (s *Service) aggregate(ctx context.Context, period settlement.Period) (*settlement.Aggregation, error) {
	source, err := s.repo.CountAnsweredByDayEvaluator(ctx, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("settlement aggregate %d-%02d: %w", period.Year, period.Month, err)
	}
	return settlement.BuildAggregation(period, source), nil
}

// SaveSnapshot freezes the current aggregation for a period and stores
// it. The stored payload is what exports and later reads see, even if
// the underlying requests change afterwards.
func (s *Service) SaveSnapshot(ctx context.Context, year, month int) (*settlement.Snapshot, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveSettlementOp("save_snapshot", result, time.Since(start))
	}()

	period, err := settlement.NewPeriod(year, month)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	agg, err := s.aggregate(ctx, period)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	payload, err := json.Marshal(agg)
	if err != nil {
		result = metrics.ResultError
		return nil, fmt.Errorf("settlement snapshot encode: %w", err)
	}

	snap := &settlement.Snapshot{
		Year:      year,
		Month:     month,
		Title:     settlement.SnapshotTitle(period),
		StartDate: agg.StartDate,
		EndDate:   agg.EndDate,
		Payload:   payload,
	}
	id, err := s.repo.SaveSnapshot(ctx, snap)
	if err != nil {
		result = metrics.ResultError
		return nil, fmt.Errorf("settlement snapshot save: %w", err)
	}
	snap.ID = id
	s.logger.Printf("settlement snapshot saved id=%d title=%s rows=%d", id, snap.Title, agg.Totals.Count)
	return snap, nil
}

// FetchSnapshot loads a saved settlement and decodes its payload.
func (s *Service) FetchSnapshot(ctx context.Context, id int64) (*settlement.Snapshot, *settlement.Aggregation, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveSettlementOp("fetch_snapshot", result, time.Since(start))
	}()

	snap, err := s.repo.GetSnapshot(ctx, id)
	if err != nil {
		result = metrics.ResultError
		return nil, nil, err
	}
	var agg settlement.Aggregation
	if err := json.Unmarshal(snap.Payload, &agg); err != nil {
		result = metrics.ResultError
		return nil, nil, fmt.Errorf("settlement snapshot decode id=%d: %w", id, err)
	}
	return snap, &agg, nil
}

// ListSnapshots returns saved settlements, newest first.
func (s *Service) ListSnapshots(ctx context.Context) ([]*settlement.Snapshot, error) {
	return s.repo.ListSnapshots(ctx)
}
