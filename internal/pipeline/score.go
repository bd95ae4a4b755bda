package pipeline

import (
	"voterroll/internal"
	"voterroll/internal/roster"
	"voterroll/internal/util"
)

// Similarity weights. Name dominates; age and address refine. The
// thresholds that interpret the score live in config, not here.
const (
	weightName    = 0.60
	weightAge     = 0.25
	weightAddress = 0.15

	// neutralScore is used when a field is unknown on either side: absence
	// of evidence neither confirms nor denies a match.
	neutralScore = 0.5

	// ageSpread is the age difference at which age similarity bottoms out.
	ageSpread = 20.0
)

// profile is the minimal shape the scorer compares; both store entries and
// in-batch candidates project onto it.
type profile struct {
	NameKey  string
	Age      int
	AgeKnown bool
	Address  string
}

func candidateProfile(c internal.NormalizedCandidate) profile {
	return profile{NameKey: c.NameKey, Age: c.Age, AgeKnown: c.AgeKnown, Address: c.Address}
}

func entryProfile(e roster.Entry) profile {
	return profile{NameKey: e.NameKey, Age: e.Age, AgeKnown: e.AgeKnown, Address: e.Address}
}

// similarity scores two profiles in [0, 1]. Pure; comparing a profile to
// itself yields 1 in the name and age terms and at least neutral in the
// address term.
func similarity(a, b profile) float64 {
	nameScore := util.DiceCoefficient(a.NameKey, b.NameKey)

	ageScore := neutralScore
	if a.AgeKnown && b.AgeKnown {
		diff := float64(a.Age - b.Age)
		if diff < 0 {
			diff = -diff
		}
		if diff > ageSpread {
			diff = ageSpread
		}
		ageScore = 1 - diff/ageSpread
	}

	addrScore := neutralScore
	if a.Address != "" && b.Address != "" {
		addrScore = util.DiceCoefficient(util.NormalizeKey(a.Address), util.NormalizeKey(b.Address))
	}

	return weightName*nameScore + weightAge*ageScore + weightAddress*addrScore
}

// agesContradict reports whether two profiles carry ages that cannot both
// be right for one person, within tolerance.
func agesContradict(a, b profile, tolerance int) bool {
	if !a.AgeKnown || !b.AgeKnown {
		return false
	}
	diff := a.Age - b.Age
	if diff < 0 {
		diff = -diff
	}
	return diff > tolerance
}
