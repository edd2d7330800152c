package application

import (
	"context"
	"testing"

	"wecar-diagnosis/internal/settlement/infrastructure/memory"

	settlement "wecar-diagnosis/internal/settlement/domain"
)

func seedRepo() *memory.Repository {
	repo := memory.NewRepository()
	repo.SeedSource([]settlement.SourceRow{
		{Date: "2024-03-02", EvaluatorID: 2, EvaluatorName: "김평가", Count: 2},
		{Date: "2024-03-05", EvaluatorID: 2, EvaluatorName: "김평가", Count: 3},
		{Date: "2024-04-01", EvaluatorID: 2, EvaluatorName: "김평가", Count: 7},
	})
	return repo
}

func TestAggregateScopesToPeriod(t *testing.T) {
	svc, err := NewService(seedRepo(), nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	agg, err := svc.Aggregate(context.Background(), 2024, 3)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if agg.Totals.Count != 5 {
		t.Fatalf("count = %d, want 5 (April row excluded)", agg.Totals.Count)
	}
	if agg.Totals.Amount != 75000 {
		t.Fatalf("amount = %d", agg.Totals.Amount)
	}
}

func TestAggregateInvalidPeriod(t *testing.T) {
	svc, _ := NewService(seedRepo(), nil)
	if _, err := svc.Aggregate(context.Background(), 2024, 13); err == nil {
		t.Fatal("expected invalid period error")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	repo := seedRepo()
	svc, _ := NewService(repo, nil)
	ctx := context.Background()

	snap, err := svc.SaveSnapshot(ctx, 2024, 3)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if snap.ID == 0 {
		t.Fatal("snapshot id not assigned")
	}
	if snap.Title != "2024-03-01_2024-03-31" {
		t.Fatalf("title = %s", snap.Title)
	}

	// A snapshot is frozen: later data changes must not affect it.
	repo.SeedSource(nil)

	stored, agg, err := svc.FetchSnapshot(ctx, snap.ID)
	if err != nil {
		t.Fatalf("FetchSnapshot: %v", err)
	}
	if stored.Year != 2024 || stored.Month != 3 {
		t.Fatalf("stored period = %d-%d", stored.Year, stored.Month)
	}
	if agg.Totals.Count != 5 {
		t.Fatalf("frozen count = %d, want 5", agg.Totals.Count)
	}
}

func TestSnapshotRejectsInvalidPeriod(t *testing.T) {
	svc, _ := NewService(seedRepo(), nil)
	if _, err := svc.SaveSnapshot(context.Background(), 2024, 0); err == nil {
		t.Fatal("expected invalid period error")
	}
}

func TestSnapshotTitleYearRollover(t *testing.T) {
	repo := memory.NewRepository()
	repo.SeedSource([]settlement.SourceRow{
		{Date: "2024-12-15", EvaluatorID: 2, EvaluatorName: "김평가", Count: 1},
	})
	svc, _ := NewService(repo, nil)

	snap, err := svc.SaveSnapshot(context.Background(), 2024, 12)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if snap.Title != "2024-12-01_2024-12-31" {
		t.Fatalf("title = %s", snap.Title)
	}
	if snap.StartDate != "2024-12-01" || snap.EndDate != "2024-12-31" {
		t.Fatalf("bounds = %s / %s", snap.StartDate, snap.EndDate)
	}
}

func TestFetchSnapshotMissing(t *testing.T) {
	svc, _ := NewService(memory.NewRepository(), nil)
	if _, _, err := svc.FetchSnapshot(context.Background(), 99); err == nil {
		t.Fatal("expected not found error")
	}
}

func TestListSnapshotsNewestFirst(t *testing.T) {
	repo := seedRepo()
	svc, _ := NewService(repo, nil)
	ctx := context.Background()

	first, err := svc.SaveSnapshot(ctx, 2024, 3)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	second, err := svc.SaveSnapshot(ctx, 2024, 4)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	list, err := svc.ListSnapshots(ctx)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("snapshots = %d", len(list))
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("order = %d, %d", list[0].ID, list[1].ID)
	}
}
