package util

import (
	"strconv"
	"strings"

	"voterroll/internal"
)

const (
	MinVoterAge = 1
	MaxVoterAge = 120
)

// ParseAge reads an age as an integer in [MinVoterAge, MaxVoterAge].
// Anything else (blank, junk, out of range, "34.0" is tolerated) comes
// back as unknown; age absence never blocks ingestion.
func ParseAge(input string) (int, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0, false
	}
	if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64); err == nil {
		age := int(f)
		if float64(age) == f && age >= MinVoterAge && age <= MaxVoterAge {
			return age, true
		}
	}
	return 0, false
}

// ParseGender maps known spellings and abbreviations onto the gender enum.
func ParseGender(input string) internal.Gender {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "m", "male", "man":
		return internal.GenderMale
	case "f", "female", "woman":
		return internal.GenderFemale
	case "o", "other", "third gender", "transgender", "t":
		return internal.GenderOther
	default:
		return internal.GenderUnknown
	}
}

// ParseVote treats anything not recognizably true as false.
func ParseVote(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "1", "true", "yes", "y", "voted":
		return true
	default:
		return false
	}
}
