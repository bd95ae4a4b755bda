package pipeline

import (
	"voterroll/internal"
)

// Gate enforces field-level invariants on normalized candidates. In strict
// mode a gender that did not map onto the enum rejects the row; otherwise
// unknown gender passes through.
type Gate struct {
	Strict bool
}

// Check returns nil when the candidate may proceed to matching.
func (g Gate) Check(c internal.NormalizedCandidate) *internal.RejectReason {
	if c.NameKey == "" {
		return reject(internal.ReasonMissingName)
	}
	if c.ConstituencyKey == "" {
		return reject(internal.ReasonMissingConstituency)
	}
	if g.Strict && c.Gender == internal.GenderUnknown {
		return reject(internal.ReasonInvalidGender)
	}
	return nil
}

// rowSet tracks verbatim raw lines so a structurally malformed source
// emitting the same row twice is rejected, visibly, on the second copy.
type rowSet struct {
	seen map[string]int
}

func newRowSet() *rowSet {
	return &rowSet{seen: map[string]int{}}
}

// Admit returns false when an identical raw line was admitted earlier.
func (s *rowSet) Admit(rawLine string, rowIndex int) bool {
	if rawLine == "" {
		return true
	}
	if _, dup := s.seen[rawLine]; dup {
		return false
	}
	s.seen[rawLine] = rowIndex
	return true
}
