package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"voterroll/internal"
	"voterroll/internal/config"
	"voterroll/internal/storage"
)

// IngestService wraps the reconciler with batch bookkeeping: a batches row
// per run and persisted review items for later human adjudication.
type IngestService struct {
	db  *storage.DB
	cfg config.Config
}

func NewIngestService(db *storage.DB, cfg config.Config) *IngestService {
	return &IngestService{db: db, cfg: cfg}
}

// Ingest runs one batch and records its outcome. source and docRef are
// provenance only ("csv"/"pdf"/"imap", file path or message id).
func (s *IngestService) Ingest(ctx context.Context, source, docRef string, rows []internal.RawRecord) (internal.BatchReport, error) {
	batchID := uuid.NewString()
	if err := s.db.InsertBatch(ctx, batchID, source, docRef); err != nil {
		return internal.BatchReport{}, err
	}

	reconciler := NewReconciler(s.cfg, s.db)
	report, err := reconciler.Ingest(ctx, batchID, rows)
	if err != nil {
		_ = s.db.UpdateBatch(ctx, batchID, internal.BatchStatusFailed, "{}")
		return internal.BatchReport{}, err
	}

	if err := s.persistReviewItems(ctx, batchID, rows, report); err != nil {
		return report, err
	}

	status := internal.BatchStatusProcessed
	if len(report.Failed) > 0 {
		status = internal.BatchStatusPartial
	}
	counts, _ := json.Marshal(map[string]int{
		"rows":               len(rows),
		"accepted":           len(report.Accepted),
		"skipped_duplicates": report.SkippedDuplicates,
		"rejected":           len(report.Rejected),
		"needs_review":       len(report.NeedsReview),
		"failed":             len(report.Failed),
	})
	if err := s.db.UpdateBatch(ctx, batchID, status, string(counts)); err != nil {
		return report, err
	}

	return report, nil
}

func (s *IngestService) persistReviewItems(ctx context.Context, batchID string, rows []internal.RawRecord, report internal.BatchReport) error {
	if len(report.NeedsReview) == 0 {
		return nil
	}

	// Re-normalize to recover the candidate payload for each review row;
	// normalization is pure, so this reproduces what the detector saw.
	byIndex := map[int]internal.NormalizedCandidate{}
	for _, raw := range rows {
		if cand, rej := NormalizeRow(raw); rej == nil {
			byIndex[raw.RowIndex] = cand
		}
	}

	items := make([]internal.ReviewItem, 0, len(report.NeedsReview))
	for _, rv := range report.NeedsReview {
		cand, ok := byIndex[rv.RowIndex]
		if !ok {
			continue
		}
		payload, err := json.Marshal(cand)
		if err != nil {
			return err
		}
		items = append(items, internal.ReviewItem{
			BatchID:        batchID,
			RowIndex:       rv.RowIndex,
			Classification: rv.Classification,
			MatchedVoterID: rv.MatchedVoterID,
			Score:          rv.Score,
			CandidateJSON:  string(payload),
		})
	}
	return s.db.InsertReviewItems(ctx, items)
}

// ApplyReview commits a single adjudicated review item as a new voter.
// Returns the voter id and whether the write was skipped as a duplicate.
func (s *IngestService) ApplyReview(ctx context.Context, reviewID int64) (int64, bool, error) {
	item, err := s.db.GetReviewItem(ctx, reviewID)
	if err != nil {
		return 0, false, err
	}
	if item == nil {
		return 0, false, fmt.Errorf("review item not found: id=%d", reviewID)
	}
	if item.Status != "open" {
		return 0, false, fmt.Errorf("review item %d already %s", reviewID, item.Status)
	}

	var cand internal.NormalizedCandidate
	if err := json.Unmarshal([]byte(item.CandidateJSON), &cand); err != nil {
		return 0, false, fmt.Errorf("decode review item %d: %w", reviewID, err)
	}

	committer := NewCommitter(s.db, s.cfg.CommitGroupSize)
	id, duplicate, err := committer.CommitResolved(ctx, item.BatchID, cand)
	if err != nil {
		return 0, false, err
	}

	if err := s.db.SetReviewItemStatus(ctx, reviewID, "applied"); err != nil {
		return id, duplicate, err
	}
	return id, duplicate, nil
}

// DismissReview closes a review item without committing anything.
func (s *IngestService) DismissReview(ctx context.Context, reviewID int64) error {
	item, err := s.db.GetReviewItem(ctx, reviewID)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("review item not found: id=%d", reviewID)
	}
	return s.db.SetReviewItemStatus(ctx, reviewID, "dismissed")
}
