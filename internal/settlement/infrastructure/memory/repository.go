package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	settlement "wecar-diagnosis/internal/settlement/domain"
)

// Repository is an in-memory settlement store for demo/testing. Source
// rows are seeded up front; snapshots accumulate as they are saved.
type Repository struct {
	mu     sync.RWMutex
	source []settlement.SourceRow
	snaps  map[int64]*settlement.Snapshot
	nextID int64
}

func NewRepository() *Repository {
	return &Repository{
		snaps:  make(map[int64]*settlement.Snapshot),
		nextID: 1,
	}
}

// SeedSource replaces the grouped counts returned by aggregation reads.
func (r *Repository) SeedSource(rows []settlement.SourceRow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.source = append([]settlement.SourceRow(nil), rows...)
}

// CountAnsweredByDayEvaluator filters seeded rows into [start, end).
func (r *Repository) CountAnsweredByDayEvaluator(ctx context.Context, start, end time.Time) ([]settlement.SourceRow, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []settlement.SourceRow
	for _, src := range r.source {
		day, err := time.Parse("2006-01-02", src.Date)
		if err != nil {
			continue
		}
		if day.Before(start) || !day.Before(end) {
			continue
		}
		result = append(result, src)
	}
	return result, nil
}

func (r *Repository) SaveSnapshot(ctx context.Context, snap *settlement.Snapshot) (int64, error) {
	_ = ctx
	if snap == nil {
		return 0, settlement.ErrNilSnapshot
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *snap
	stored.ID = r.nextID
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	r.snaps[stored.ID] = &stored
	r.nextID++
	return stored.ID, nil
}

func (r *Repository) GetSnapshot(ctx context.Context, id int64) (*settlement.Snapshot, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := r.snaps[id]
	if snap == nil {
		return nil, settlement.ErrSnapshotNotFound
	}
	copied := *snap
	return &copied, nil
}

func (r *Repository) ListSnapshots(ctx context.Context) ([]*settlement.Snapshot, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*settlement.Snapshot, 0, len(r.snaps))
	for _, snap := range r.snaps {
		copied := *snap
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}
