package pipeline

import (
	"voterroll/internal"
	"voterroll/internal/config"
	"voterroll/internal/roster"
)

// Detector classifies candidates against a store snapshot and the
// candidates already resolved earlier in the same batch. Classification is
// deterministic: buckets are scanned in fixed order (store by voter id,
// then batch by row index) and ties keep the earliest match.
type Detector struct {
	cfg   config.Config
	store *roster.Index
}

func NewDetector(cfg config.Config, store *roster.Index) *Detector {
	return &Detector{cfg: cfg, store: store}
}

type batchEntry struct {
	RowIndex int
	prof     profile
}

// batchIndex is built progressively as rows resolve, in row order.
type batchIndex struct {
	firstSeen      map[internal.NaturalKey]batchEntry
	byConstituency map[string][]batchEntry
}

func newBatchIndex() *batchIndex {
	return &batchIndex{
		firstSeen:      map[internal.NaturalKey]batchEntry{},
		byConstituency: map[string][]batchEntry{},
	}
}

// Register records a classified candidate. Accepted candidates join the
// similarity comparison set; every classified candidate claims its natural
// key so later rows with the same tuple resolve against the earliest one.
func (b *batchIndex) Register(c internal.NormalizedCandidate, accepted bool) {
	entry := batchEntry{RowIndex: c.RowIndex, prof: candidateProfile(c)}
	key := c.NaturalKey()
	if _, ok := b.firstSeen[key]; !ok {
		b.firstSeen[key] = entry
	}
	if accepted {
		b.byConstituency[c.ConstituencyKey] = append(b.byConstituency[c.ConstituencyKey], entry)
	}
}

// Classify resolves one candidate: exact natural-key match first (store
// wins over batch, earliest batch row wins within the batch), then weighted
// similarity against same-constituency records only. An exact key whose
// ages cannot be reconciled is a conflict, not a duplicate; one record is
// wrong and a human has to say which.
func (d *Detector) Classify(c internal.NormalizedCandidate, batch *batchIndex) internal.MatchOutcome {
	key := c.NaturalKey()
	prof := candidateProfile(c)

	if entry, ok := d.store.ByNaturalKey[key]; ok {
		id := entry.VoterID
		other := entryProfile(entry)
		if agesContradict(prof, other, d.cfg.MatchAgeTolerance) {
			return internal.MatchOutcome{Class: internal.MatchConflict, MatchedVoterID: &id, Score: similarity(prof, other)}
		}
		return internal.MatchOutcome{Class: internal.MatchExactDuplicate, MatchedVoterID: &id, Score: 1.0}
	}
	if entry, ok := batch.firstSeen[key]; ok {
		ri := entry.RowIndex
		if agesContradict(prof, entry.prof, d.cfg.MatchAgeTolerance) {
			return internal.MatchOutcome{Class: internal.MatchConflict, MatchedRowIndex: &ri, Score: similarity(prof, entry.prof)}
		}
		return internal.MatchOutcome{Class: internal.MatchExactDuplicate, MatchedRowIndex: &ri, Score: 1.0}
	}

	best := internal.MatchOutcome{Class: internal.MatchNew}
	consider := func(other profile, voterID *int64, rowIndex *int) {
		if score := similarity(prof, other); score > best.Score {
			best = internal.MatchOutcome{Score: score, MatchedVoterID: voterID, MatchedRowIndex: rowIndex}
		}
	}

	for _, entry := range d.store.ByConstituency[c.ConstituencyKey] {
		id := entry.VoterID
		consider(entryProfile(entry), &id, nil)
	}
	for _, entry := range batch.byConstituency[c.ConstituencyKey] {
		ri := entry.RowIndex
		consider(entry.prof, nil, &ri)
	}

	switch {
	case best.Score >= d.cfg.MatchProbableThreshold:
		best.Class = internal.MatchProbableDuplicate
	case best.Score >= d.cfg.MatchConflictThreshold:
		best.Class = internal.MatchConflict
	default:
		return internal.MatchOutcome{Class: internal.MatchNew, Score: best.Score}
	}
	return best
}
