package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/YuujiKamura/tonsuu-checker/internal/estimate"
)

func setupTestStore(t *testing.T) *Store {
	dbPath := filepath.Join(t.TempDir(), "estimates.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(id, subject string) *Record {
	return &Record{
		ID:        id,
		SubjectID: subject,
		Estimate: estimate.AggregatedEstimate{
			RawEstimate: estimate.RawEstimate{
				IsTargetDetected: true,
				TruckClass:       estimate.TruckClass4t,
				MaterialType:     estimate.MaterialSoil,
				Height:           0.5,
				FillRatioW:       0.8,
				FillRatioZ:       1.0,
				PackingDensity:   1.0,
				ConfidenceScore:  0.85,
				Reasoning:        "full bed, level load",
				LicensePlate:     "品川 500 あ 12-34",
			},
			EnsembleCount: 3,
			ValidCount:    3,
			VolumeM3:      3.152,
			Tonnage:       5.67,
		},
		EquipmentClass: estimate.TruckClass4t,
		LoadGrade:      "heavy",
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	rec := testRecord("rec-1", "subject-1")
	rec.SnapshotPath = "/data/snapshots/2026-08-30/rec-1.jpg"
	if err := s.SaveEstimate(ctx, rec); err != nil {
		t.Fatalf("Failed to save estimate: %v", err)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be backfilled on save")
	}

	got, err := s.GetEstimate(ctx, "rec-1")
	if err != nil {
		t.Fatalf("Failed to get estimate: %v", err)
	}
	if got.SubjectID != "subject-1" {
		t.Errorf("SubjectID = %s, want subject-1", got.SubjectID)
	}
	if got.Estimate.Tonnage != 5.67 || got.Estimate.VolumeM3 != 3.152 {
		t.Errorf("Figures lost in round-trip: %v / %v", got.Estimate.VolumeM3, got.Estimate.Tonnage)
	}
	if got.Estimate.TruckClass != estimate.TruckClass4t {
		t.Errorf("TruckClass = %s, want 4t", got.Estimate.TruckClass)
	}
	if got.Estimate.LicensePlate != "品川 500 あ 12-34" {
		t.Errorf("LicensePlate lost: %q", got.Estimate.LicensePlate)
	}
	if got.LoadGrade != "heavy" {
		t.Errorf("LoadGrade = %s, want heavy", got.LoadGrade)
	}
	if got.SnapshotPath != rec.SnapshotPath {
		t.Errorf("SnapshotPath = %s", got.SnapshotPath)
	}
	if got.Estimate.EnsembleCount != 3 || got.Estimate.ValidCount != 3 {
		t.Errorf("Counts lost: %d / %d", got.Estimate.EnsembleCount, got.Estimate.ValidCount)
	}
}

func TestStore_SaveRejectsEmptyID(t *testing.T) {
	s := setupTestStore(t)

	rec := testRecord("", "subject-1")
	if err := s.SaveEstimate(context.Background(), rec); err == nil {
		t.Error("Expected error for empty record ID")
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := setupTestStore(t)

	if _, err := s.GetEstimate(context.Background(), "nope"); err == nil {
		t.Error("Expected error for missing record")
	}
}

func TestStore_ListBySubject_NewestFirst(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"old", "mid", "new"} {
		rec := testRecord(id, "subject-1")
		rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := s.SaveEstimate(ctx, rec); err != nil {
			t.Fatalf("Failed to save %s: %v", id, err)
		}
	}
	other := testRecord("other", "subject-2")
	if err := s.SaveEstimate(ctx, other); err != nil {
		t.Fatalf("Failed to save other: %v", err)
	}

	records, err := s.ListBySubject(ctx, "subject-1", 0)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	if records[0].ID != "new" || records[2].ID != "old" {
		t.Errorf("Expected newest first, got %s,%s,%s", records[0].ID, records[1].ID, records[2].ID)
	}

	limited, err := s.ListBySubject(ctx, "subject-1", 2)
	if err != nil {
		t.Fatalf("Failed to list with limit: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("Expected 2 records with limit, got %d", len(limited))
	}
}

func TestStore_ReferencesByEquipmentClass(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	saves := []struct {
		id    string
		grade string
		class estimate.TruckClass
		age   time.Duration
	}{
		{"heavy-old", "heavy", estimate.TruckClass4t, 0},
		{"heavy-new", "heavy", estimate.TruckClass4t, 10 * time.Minute},
		{"light-1", "light", estimate.TruckClass4t, 5 * time.Minute},
		{"other-class", "heavy", estimate.TruckClass10t, 20 * time.Minute},
	}
	for _, sv := range saves {
		rec := testRecord(sv.id, "subject-1")
		rec.LoadGrade = sv.grade
		rec.EquipmentClass = sv.class
		rec.CreatedAt = base.Add(sv.age)
		if err := s.SaveEstimate(ctx, rec); err != nil {
			t.Fatalf("Failed to save %s: %v", sv.id, err)
		}
	}

	refs, err := s.ReferencesByEquipmentClass(ctx, estimate.TruckClass4t)
	if err != nil {
		t.Fatalf("Failed to load references: %v", err)
	}

	// At most one per grade, the most recent one, same class only.
	if len(refs) != 2 {
		t.Fatalf("Expected 2 references (one per grade), got %d", len(refs))
	}
	byGrade := map[string]string{}
	for _, r := range refs {
		byGrade[r.LoadGrade] = r.ID
	}
	if byGrade["heavy"] != "heavy-new" {
		t.Errorf("Expected most recent heavy reference, got %s", byGrade["heavy"])
	}
	if byGrade["light"] != "light-1" {
		t.Errorf("Expected light reference, got %s", byGrade["light"])
	}
}

func TestStore_DeleteOlderThan(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	old := testRecord("old", "subject-1")
	old.CreatedAt = time.Now().Add(-48 * time.Hour)
	recent := testRecord("recent", "subject-1")
	recent.CreatedAt = time.Now()
	for _, rec := range []*Record{old, recent} {
		if err := s.SaveEstimate(ctx, rec); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}
	}

	deleted, err := s.DeleteOlderThan(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted, got %d", deleted)
	}

	count, err := s.CountEstimates(ctx)
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 remaining, got %d", count)
	}
	if _, err := s.GetEstimate(ctx, "recent"); err != nil {
		t.Errorf("Recent record must survive: %v", err)
	}
}
