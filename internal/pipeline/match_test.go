package pipeline

import (
	"testing"

	"voterroll/internal"
	"voterroll/internal/roster"
	"voterroll/internal/util"
)

func storeVoter(id int64, name string, age int, constituency, booth, address string) internal.Voter {
	v := internal.Voter{
		ID:              id,
		Name:            name,
		NameKey:         util.NormalizeKey(name),
		Constituency:    constituency,
		ConstituencyKey: util.NormalizeKey(constituency),
		BoothNo:         booth,
		BoothKey:        util.NormalizeKey(booth),
		Address:         address,
	}
	if age > 0 {
		v.Age = &age
	}
	return v
}

func classify(t *testing.T, voters []internal.Voter, raw internal.RawRecord) internal.MatchOutcome {
	t.Helper()
	detector := NewDetector(testConfig(), roster.BuildIndex(voters))
	return detector.Classify(mustNormalize(t, raw), newBatchIndex())
}

func TestClassifyNew(t *testing.T) {
	voters := []internal.Voter{storeVoter(1, "Asha Rao", 34, "North", "B01", "")}
	out := classify(t, voters, rawRow(1, "Meera Pillai", "28", "F", "North", "B07", ""))
	if out.Class != internal.MatchNew {
		t.Fatalf("class=%s score=%.3f, want new", out.Class, out.Score)
	}
}

func TestClassifyExactDuplicateAgainstStore(t *testing.T) {
	voters := []internal.Voter{storeVoter(7, "Asha Rao", 34, "North", "B01", "")}

	// Same tuple modulo casing and spacing must hit the natural key.
	out := classify(t, voters, rawRow(1, "  asha   RAO ", "34", "F", "north", "b01", ""))
	if out.Class != internal.MatchExactDuplicate {
		t.Fatalf("class=%s, want exact_duplicate", out.Class)
	}
	if out.MatchedVoterID == nil || *out.MatchedVoterID != 7 {
		t.Fatalf("matched id: %v", out.MatchedVoterID)
	}
}

func TestClassifyExactDuplicateWithinAgeTolerance(t *testing.T) {
	voters := []internal.Voter{storeVoter(7, "Asha Rao", 34, "North", "B01", "")}
	out := classify(t, voters, rawRow(1, "Asha Rao", "36", "F", "North", "B01", ""))
	if out.Class != internal.MatchExactDuplicate {
		t.Fatalf("class=%s, want exact_duplicate (age within tolerance)", out.Class)
	}
}

func TestClassifyConflictOnSameKeyWithContradictingAges(t *testing.T) {
	voters := []internal.Voter{storeVoter(7, "Asha Rao", 41, "North", "B01", "")}
	out := classify(t, voters, rawRow(1, "Asha Rao", "67", "F", "North", "B01", ""))
	if out.Class != internal.MatchConflict {
		t.Fatalf("class=%s, want conflict", out.Class)
	}
	if out.MatchedVoterID == nil || *out.MatchedVoterID != 7 {
		t.Fatalf("matched id: %v", out.MatchedVoterID)
	}
}

func TestClassifyProbableDuplicate(t *testing.T) {
	voters := []internal.Voter{storeVoter(3, "Asha Rao", 34, "North", "B01", "12 Lake Rd")}
	out := classify(t, voters, rawRow(1, "Asha Raoo", "34", "F", "North", "B01", "12 Lake Rd"))
	if out.Class != internal.MatchProbableDuplicate {
		t.Fatalf("class=%s score=%.3f, want probable_duplicate", out.Class, out.Score)
	}
	if out.MatchedVoterID == nil || *out.MatchedVoterID != 3 {
		t.Fatalf("matched id: %v", out.MatchedVoterID)
	}
}

func TestClassifyConflictBand(t *testing.T) {
	voters := []internal.Voter{storeVoter(3, "Asha Rao", 34, "North", "B01", "")}
	out := classify(t, voters, rawRow(1, "Asha Rai", "34", "F", "North", "B02", ""))
	if out.Class != internal.MatchConflict {
		t.Fatalf("class=%s score=%.3f, want conflict", out.Class, out.Score)
	}
}

func TestClassifyScopedToConstituency(t *testing.T) {
	// Identical person-shaped data in another constituency is a different
	// electorate; it must never pull the candidate into review.
	voters := []internal.Voter{storeVoter(3, "Asha Rao", 34, "South", "B01", "12 Lake Rd")}
	out := classify(t, voters, rawRow(1, "Asha Rao", "34", "F", "North", "B01", "12 Lake Rd"))
	if out.Class != internal.MatchNew {
		t.Fatalf("class=%s score=%.3f, want new", out.Class, out.Score)
	}
	if out.Score != 0 {
		t.Fatalf("score=%.3f, want 0 (no comparisons at all)", out.Score)
	}
}

func TestClassifyExactDuplicateWithinBatch(t *testing.T) {
	detector := NewDetector(testConfig(), roster.BuildIndex(nil))
	batch := newBatchIndex()

	first := mustNormalize(t, rawRow(1, "Asha Rao", "34", "F", "North", "B01", ""))
	if out := detector.Classify(first, batch); out.Class != internal.MatchNew {
		t.Fatalf("first row class=%s, want new", out.Class)
	}
	batch.Register(first, true)

	second := mustNormalize(t, rawRow(5, "asha rao", "34", "F", "North", "B01", ""))
	out := detector.Classify(second, batch)
	if out.Class != internal.MatchExactDuplicate {
		t.Fatalf("class=%s, want exact_duplicate", out.Class)
	}
	if out.MatchedRowIndex == nil || *out.MatchedRowIndex != 1 {
		t.Fatalf("matched row: %v, want earliest row 1", out.MatchedRowIndex)
	}
}

func TestClassifyConflictWithinBatchOnAges(t *testing.T) {
	detector := NewDetector(testConfig(), roster.BuildIndex(nil))
	batch := newBatchIndex()

	first := mustNormalize(t, rawRow(1, "Asha Rao", "41", "F", "North", "B01", ""))
	batch.Register(first, true)

	out := detector.Classify(mustNormalize(t, rawRow(2, "Asha Rao", "67", "F", "North", "B01", "")), batch)
	if out.Class != internal.MatchConflict {
		t.Fatalf("class=%s, want conflict", out.Class)
	}
	if out.MatchedRowIndex == nil || *out.MatchedRowIndex != 1 {
		t.Fatalf("matched row: %v", out.MatchedRowIndex)
	}
}

func TestClassifyStoreWinsOverBatch(t *testing.T) {
	voters := []internal.Voter{storeVoter(9, "Asha Rao", 34, "North", "B01", "")}
	detector := NewDetector(testConfig(), roster.BuildIndex(voters))
	batch := newBatchIndex()
	batch.Register(mustNormalize(t, rawRow(1, "Asha Rao", "34", "F", "North", "B01", "")), false)

	out := detector.Classify(mustNormalize(t, rawRow(2, "Asha Rao", "34", "F", "North", "B01", "")), batch)
	if out.Class != internal.MatchExactDuplicate {
		t.Fatalf("class=%s, want exact_duplicate", out.Class)
	}
	if out.MatchedVoterID == nil || *out.MatchedVoterID != 9 {
		t.Fatalf("store match must take precedence: %+v", out)
	}
}
