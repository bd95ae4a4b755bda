package pipeline

import (
	"voterroll/internal"
	"voterroll/internal/extract"
	"voterroll/internal/util"
)

// NormalizeRow turns one RawRecord into a NormalizedCandidate. It is a
// pure transform: the only hard rejections are a row with nothing usable
// in it (malformed_row) and an empty name (missing_name). Unparseable age
// or gender degrades to unknown instead of blocking the row.
func NormalizeRow(raw internal.RawRecord) (internal.NormalizedCandidate, *internal.RejectReason) {
	if len(raw.Fields) == 0 {
		return internal.NormalizedCandidate{}, reject(internal.ReasonMalformedRow)
	}

	name := util.CleanText(raw.Fields[extract.FieldName])
	if name == "" {
		return internal.NormalizedCandidate{}, reject(internal.ReasonMissingName)
	}

	cand := internal.NormalizedCandidate{
		RowIndex: raw.RowIndex,
		DocID:    raw.DocID,
		Source:   raw.Source,
		RawLine:  raw.RawLine,

		Name:      name,
		NameKey:   util.NormalizeKey(name),
		GenderRaw: util.CleanText(raw.Fields[extract.FieldGender]),
		Address:   util.CleanText(raw.Fields[extract.FieldAddress]),
		Vote:      util.ParseVote(raw.Fields[extract.FieldVote]),
	}

	cand.Age, cand.AgeKnown = util.ParseAge(raw.Fields[extract.FieldAge])
	cand.Gender = util.ParseGender(cand.GenderRaw)

	cand.Constituency = util.CleanText(raw.Fields[extract.FieldConstituency])
	cand.ConstituencyKey = util.NormalizeKey(cand.Constituency)
	cand.BoothNo = util.CleanText(raw.Fields[extract.FieldBoothNo])
	cand.BoothKey = util.NormalizeKey(cand.BoothNo)

	return cand, nil
}

func reject(r internal.RejectReason) *internal.RejectReason { return &r }
