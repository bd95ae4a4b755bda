package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"voterroll/internal"
	"voterroll/internal/storage"
)

func newTestStore(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "voters.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestIngestReportAndIdempotence(t *testing.T) {
	db := newTestStore(t)
	rec := NewReconciler(testConfig(), db)
	ctx := context.Background()

	rows := []internal.RawRecord{
		rawRow(1, "Asha Rao", "34", "F", "North", "B01", "12 Lake Rd"),
		rawRow(2, "Vikram Singh", "51", "M", "South", "S02", "3 Hill St"),
	}

	report, err := rec.Ingest(ctx, "batch-1", rows)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Accepted) != 2 || report.SkippedDuplicates != 0 ||
		len(report.Rejected) != 0 || len(report.NeedsReview) != 0 || len(report.Failed) != 0 {
		t.Fatalf("first ingest report: %+v", report)
	}

	// The same roster again must change nothing: zero accepted, every row
	// accounted for as a skipped duplicate.
	again, err := rec.Ingest(ctx, "batch-2", rows)
	if err != nil {
		t.Fatal(err)
	}
	if len(again.Accepted) != 0 || again.SkippedDuplicates != 2 || len(again.NeedsReview) != 0 {
		t.Fatalf("re-ingest report: %+v", again)
	}

	voters, err := db.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(voters) != 2 {
		t.Fatalf("persisted voters=%d, want 2", len(voters))
	}
}

func TestIngestInBatchExactDuplicate(t *testing.T) {
	db := newTestStore(t)
	rec := NewReconciler(testConfig(), db)

	report, err := rec.Ingest(context.Background(), "batch-1", []internal.RawRecord{
		rawRow(1, "Asha Rao", "34", "F", "North", "B01", ""),
		rawRow(2, "asha   rao", "34", "F", "North", "B01", ""),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Accepted) != 1 || report.SkippedDuplicates != 1 {
		t.Fatalf("report: %+v", report)
	}
	if len(report.Rejected) != 0 || len(report.NeedsReview) != 0 {
		t.Fatalf("report: %+v", report)
	}
}

func TestIngestVerbatimRowRejected(t *testing.T) {
	db := newTestStore(t)
	rec := NewReconciler(testConfig(), db)

	// Byte-identical raw lines are an input defect, not a duplicate voter.
	report, err := rec.Ingest(context.Background(), "batch-1", []internal.RawRecord{
		rawRow(1, "Asha Rao", "34", "F", "North", "B01", ""),
		rawRow(2, "Asha Rao", "34", "F", "North", "B01", ""),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Accepted) != 1 || report.SkippedDuplicates != 0 {
		t.Fatalf("report: %+v", report)
	}
	if len(report.Rejected) != 1 || report.Rejected[0].Reason != internal.ReasonDuplicateRow || report.Rejected[0].RowIndex != 2 {
		t.Fatalf("rejected: %+v", report.Rejected)
	}
}

func TestIngestRejectionDoesNotAbortBatch(t *testing.T) {
	db := newTestStore(t)
	rec := NewReconciler(testConfig(), db)

	names := []string{"Asha Rao", "Vikram Singh", "Meera Pillai", "Ravi Kumar", "", "Lata Desai", "Sunil Shetty", "Priya Nair", "Arun Joshi", "Kavita Menon"}
	rows := make([]internal.RawRecord, 0, len(names))
	for i, name := range names {
		rows = append(rows, rawRow(i+1, name, "30", "F", "North", "B01", ""))
	}

	report, err := rec.Ingest(context.Background(), "batch-1", rows)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Rejected) != 1 || report.Rejected[0].RowIndex != 5 || report.Rejected[0].Reason != internal.ReasonMissingName {
		t.Fatalf("rejected: %+v", report.Rejected)
	}
	resolved := len(report.Accepted) + report.SkippedDuplicates + len(report.NeedsReview)
	if resolved != 9 {
		t.Fatalf("resolved=%d, want all 9 well-formed rows classified: %+v", resolved, report)
	}
}

func TestIngestOrderSensitivity(t *testing.T) {
	// Same natural key, irreconcilable ages. Earliest row wins, so the two
	// orderings persist different voters; both flag the loser for review.
	run := func(first, second string) (internal.BatchReport, []internal.Voter) {
		db := newTestStore(t)
		rec := NewReconciler(testConfig(), db)
		report, err := rec.Ingest(context.Background(), "batch-1", []internal.RawRecord{
			rawRow(1, "Asha Rao", first, "F", "North", "B01", ""),
			rawRow(2, "Asha Rao", second, "F", "North", "B01", ""),
		})
		if err != nil {
			t.Fatal(err)
		}
		voters, err := db.Snapshot(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		return report, voters
	}

	reportA, votersA := run("41", "67")
	reportB, votersB := run("67", "41")

	for _, report := range []internal.BatchReport{reportA, reportB} {
		if len(report.Accepted) != 1 || len(report.NeedsReview) != 1 {
			t.Fatalf("report: %+v", report)
		}
		if report.NeedsReview[0].Classification != internal.MatchConflict || report.NeedsReview[0].RowIndex != 2 {
			t.Fatalf("needs_review: %+v", report.NeedsReview)
		}
	}

	if len(votersA) != 1 || len(votersB) != 1 {
		t.Fatalf("persisted: %d / %d", len(votersA), len(votersB))
	}
	if *votersA[0].Age != 41 || *votersB[0].Age != 67 {
		t.Fatalf("ages: %d / %d, want order to decide the winner", *votersA[0].Age, *votersB[0].Age)
	}
}

func TestIngestProbableDuplicateGoesToReviewOnly(t *testing.T) {
	db := newTestStore(t)
	rec := NewReconciler(testConfig(), db)
	ctx := context.Background()

	if _, err := rec.Ingest(ctx, "batch-1", []internal.RawRecord{
		rawRow(1, "Asha Rao", "34", "F", "North", "B01", "12 Lake Rd"),
	}); err != nil {
		t.Fatal(err)
	}

	report, err := rec.Ingest(ctx, "batch-2", []internal.RawRecord{
		rawRow(1, "Asha Raoo", "34", "F", "North", "B01", "12 Lake Rd"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.NeedsReview) != 1 || report.NeedsReview[0].Classification != internal.MatchProbableDuplicate {
		t.Fatalf("report: %+v", report)
	}
	if len(report.Accepted) != 0 {
		t.Fatalf("review rows must not be committed: %+v", report)
	}

	voters, err := db.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(voters) != 1 {
		t.Fatalf("persisted voters=%d, want 1", len(voters))
	}
}
