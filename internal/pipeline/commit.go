package pipeline

import (
	"context"

	"voterroll/internal"
)

// VoterStore is the storage contract the pipeline depends on. Group writes
// must be atomic and must perform the natural-key uniqueness check inside
// the same write, so a race between two batches (or a batch and an API
// create) resolves to exactly one persisted row.
type VoterStore interface {
	Snapshot(ctx context.Context) ([]internal.Voter, error)
	InsertVoterGroup(ctx context.Context, batchID string, cands []internal.NormalizedCandidate) ([]internal.GroupWriteResult, error)
	InsertVoter(ctx context.Context, batchID string, cand internal.NormalizedCandidate) (int64, bool, error)
}

// Committer persists the accept bucket in bounded atomic groups. A group
// that fails does not roll back groups committed before it.
type Committer struct {
	store     VoterStore
	groupSize int
}

func NewCommitter(store VoterStore, groupSize int) *Committer {
	if groupSize < 1 {
		groupSize = 1
	}
	return &Committer{store: store, groupSize: groupSize}
}

type CommittedRow struct {
	RowIndex int
	VoterID  int64
}

// CommitResult accounts for every input candidate exactly once.
type CommitResult struct {
	Committed []CommittedRow
	Skipped   []CommittedRow // lost the uniqueness race at write time
	Failed    []internal.FailedRow
}

// Commit writes candidates in row order. Returns an error only in the
// fatal case: the very first group fails, leaving zero side effects. Any
// later failure, and cancellation between groups, is partial success
// reported in the result.
func (c *Committer) Commit(ctx context.Context, batchID string, accepted []internal.NormalizedCandidate) (CommitResult, error) {
	result := CommitResult{}

	for start := 0; start < len(accepted); start += c.groupSize {
		end := start + c.groupSize
		if end > len(accepted) {
			end = len(accepted)
		}
		group := accepted[start:end]

		if err := ctx.Err(); err != nil {
			failRemaining(&result, accepted[start:], err.Error())
			return result, nil
		}

		written, err := c.store.InsertVoterGroup(ctx, batchID, group)
		if err != nil {
			if start == 0 {
				return CommitResult{}, err
			}
			failRemaining(&result, accepted[start:], err.Error())
			return result, nil
		}

		for _, w := range written {
			row := CommittedRow{RowIndex: w.RowIndex, VoterID: w.VoterID}
			if w.Duplicate {
				result.Skipped = append(result.Skipped, row)
			} else {
				result.Committed = append(result.Committed, row)
			}
		}
	}

	return result, nil
}

// CommitResolved writes a single record that a human adjudicated out of
// the review bucket. The duplicate return means someone else won the race
// since adjudication started.
func (c *Committer) CommitResolved(ctx context.Context, batchID string, cand internal.NormalizedCandidate) (int64, bool, error) {
	return c.store.InsertVoter(ctx, batchID, cand)
}

func failRemaining(result *CommitResult, remaining []internal.NormalizedCandidate, reason string) {
	for _, cand := range remaining {
		result.Failed = append(result.Failed, internal.FailedRow{RowIndex: cand.RowIndex, Reason: reason})
	}
}
