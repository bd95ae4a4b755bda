package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"voterroll/internal"
	"voterroll/internal/config"
	"voterroll/internal/roster"
)

// Reconciler drives one ingestion batch end to end: normalization and
// validation fan out across a bounded worker pool, duplicate detection
// runs in row order against a progressively built in-batch index, and the
// accept bucket goes to the committer as one unit of work.
type Reconciler struct {
	cfg       config.Config
	store     VoterStore
	committer *Committer
}

func NewReconciler(cfg config.Config, store VoterStore) *Reconciler {
	return &Reconciler{
		cfg:       cfg,
		store:     store,
		committer: NewCommitter(store, cfg.CommitGroupSize),
	}
}

func (r *Reconciler) Committer() *Committer { return r.committer }

type resolvedRow struct {
	cand     internal.NormalizedCandidate
	rejected *internal.RejectReason
}

// Ingest processes one batch of raw rows and returns its BatchReport. The
// only error case is fatal: the store was unreachable before anything was
// committed, so the caller may retry the whole batch.
func (r *Reconciler) Ingest(ctx context.Context, batchID string, rows []internal.RawRecord) (internal.BatchReport, error) {
	report := internal.BatchReport{
		BatchID:     batchID,
		Accepted:    []int64{},
		Rejected:    []internal.RejectedRow{},
		NeedsReview: []internal.ReviewRow{},
	}

	snapshot, err := r.store.Snapshot(ctx)
	if err != nil {
		return internal.BatchReport{}, fmt.Errorf("store snapshot: %w", err)
	}
	storeIndex := roster.BuildIndex(snapshot)

	// Rows are independent through normalize+validate; fan out, collect by
	// position so later stages see the original order.
	resolved := make([]resolvedRow, len(rows))
	gate := Gate{Strict: r.cfg.StrictGender}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.IngestWorkers)
	for i := range rows {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cand, rej := NormalizeRow(rows[i])
			if rej == nil {
				rej = gate.Check(cand)
			}
			resolved[i] = resolvedRow{cand: cand, rejected: rej}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return internal.BatchReport{}, err
	}

	// In-batch duplicate resolution is order-sensitive: earliest row wins.
	detector := NewDetector(r.cfg, storeIndex)
	batch := newBatchIndex()
	rowSet := newRowSet()
	accepted := []internal.NormalizedCandidate{}

	for i := range rows {
		row := resolved[i]
		if row.rejected != nil {
			report.Rejected = append(report.Rejected, internal.RejectedRow{RowIndex: rows[i].RowIndex, Reason: *row.rejected})
			continue
		}
		if !rowSet.Admit(row.cand.RawLine, row.cand.RowIndex) {
			report.Rejected = append(report.Rejected, internal.RejectedRow{RowIndex: rows[i].RowIndex, Reason: internal.ReasonDuplicateRow})
			continue
		}

		outcome := detector.Classify(row.cand, batch)
		switch outcome.Class {
		case internal.MatchNew:
			accepted = append(accepted, row.cand)
			batch.Register(row.cand, true)
		case internal.MatchExactDuplicate:
			// Idempotent re-ingestion: same roster in, zero new rows out.
			report.SkippedDuplicates++
		default:
			report.NeedsReview = append(report.NeedsReview, internal.ReviewRow{
				RowIndex:       row.cand.RowIndex,
				Classification: outcome.Class,
				MatchedVoterID: outcome.MatchedVoterID,
				Score:          outcome.Score,
			})
			batch.Register(row.cand, false)
		}
	}

	commit, err := r.committer.Commit(ctx, batchID, accepted)
	if err != nil {
		return internal.BatchReport{}, fmt.Errorf("commit batch %s: %w", batchID, err)
	}

	for _, row := range commit.Committed {
		report.Accepted = append(report.Accepted, row.VoterID)
	}
	// Uniqueness races discovered at write time are duplicates, not errors.
	report.SkippedDuplicates += len(commit.Skipped)
	report.Failed = append(report.Failed, commit.Failed...)

	return report, nil
}
