package roster

import (
	"testing"

	"voterroll/internal"
	"voterroll/internal/util"
)

func voter(id int64, name string, age int, constituency, booth string) internal.Voter {
	v := internal.Voter{
		ID:              id,
		Name:            name,
		NameKey:         util.NormalizeKey(name),
		Constituency:    constituency,
		ConstituencyKey: util.NormalizeKey(constituency),
		BoothNo:         booth,
		BoothKey:        util.NormalizeKey(booth),
	}
	if age > 0 {
		v.Age = &age
	}
	return v
}

func TestBuildIndex(t *testing.T) {
	idx := BuildIndex([]internal.Voter{
		voter(3, "Asha Rao", 34, "North", "B01"),
		voter(1, "Vikram Singh", 51, "South", "S02"),
		voter(2, "Meera Pillai", 0, "North", "B07"),
	})

	key := internal.NaturalKey{Name: "ASHA RAO", Constituency: "NORTH", Booth: "B01"}
	entry, ok := idx.ByNaturalKey[key]
	if !ok || entry.VoterID != 3 || !entry.AgeKnown || entry.Age != 34 {
		t.Fatalf("entry: %+v ok=%t", entry, ok)
	}

	north := idx.ByConstituency["NORTH"]
	if len(north) != 2 || north[0].VoterID != 2 || north[1].VoterID != 3 {
		t.Fatalf("bucket not sorted by id: %+v", north)
	}
	if north[0].AgeKnown {
		t.Fatal("nil age must project as unknown")
	}
}

func TestBuildIndexLowestIDWinsKey(t *testing.T) {
	// Duplicate keys cannot be inserted anymore, but a legacy store may
	// still hold them; the oldest row owns the key.
	idx := BuildIndex([]internal.Voter{
		voter(9, "Asha Rao", 34, "North", "B01"),
		voter(4, "Asha Rao", 35, "North", "B01"),
	})

	key := internal.NaturalKey{Name: "ASHA RAO", Constituency: "NORTH", Booth: "B01"}
	if entry := idx.ByNaturalKey[key]; entry.VoterID != 4 {
		t.Fatalf("entry: %+v, want id 4", entry)
	}
}
