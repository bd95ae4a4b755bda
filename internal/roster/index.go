// Package roster indexes a snapshot of the voter store for duplicate
// detection. The index is built once per batch and only read afterwards.
package roster

import (
	"sort"

	"voterroll/internal"
)

// Entry is the matchable projection of one persisted voter.
type Entry struct {
	VoterID  int64
	Key      internal.NaturalKey
	NameKey  string
	Age      int
	AgeKnown bool
	Address  string
}

type Index struct {
	ByNaturalKey   map[internal.NaturalKey]Entry
	ByConstituency map[string][]Entry
}

// BuildIndex projects the store snapshot. Constituency buckets are sorted
// by voter id so comparison order, and therefore tie-breaking, is stable.
func BuildIndex(voters []internal.Voter) *Index {
	idx := &Index{
		ByNaturalKey:   map[internal.NaturalKey]Entry{},
		ByConstituency: map[string][]Entry{},
	}

	for _, v := range voters {
		e := Entry{
			VoterID: v.ID,
			Key:     internal.NaturalKey{Name: v.NameKey, Constituency: v.ConstituencyKey, Booth: v.BoothKey},
			NameKey: v.NameKey,
			Address: v.Address,
		}
		if v.Age != nil {
			e.Age = *v.Age
			e.AgeKnown = true
		}

		if existing, ok := idx.ByNaturalKey[e.Key]; !ok || e.VoterID < existing.VoterID {
			idx.ByNaturalKey[e.Key] = e
		}
		idx.ByConstituency[e.Key.Constituency] = append(idx.ByConstituency[e.Key.Constituency], e)
	}

	for key := range idx.ByConstituency {
		bucket := idx.ByConstituency[key]
		sort.Slice(bucket, func(i, j int) bool { return bucket[i].VoterID < bucket[j].VoterID })
	}

	return idx
}
