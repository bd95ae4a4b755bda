package internal

// SourceFormat tags where a raw row came from. The pipeline never branches
// on the format after extraction.
type SourceFormat string

const (
	SourceCSV  SourceFormat = "csv"
	SourceXLSX SourceFormat = "xlsx"
	SourcePDF  SourceFormat = "pdf"
	SourceHTML SourceFormat = "html"
)

// RawRecord is one extracted row, unparsed. Field keys are already mapped
// to canonical column names (name, age, gender, constituency, booth_no,
// address, vote) at the extraction boundary; values are raw strings.
type RawRecord struct {
	DocID    string
	RowIndex int
	Source   SourceFormat
	RawLine  string
	Fields   map[string]string
}

type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderOther   Gender = "other"
	GenderUnknown Gender = "unknown"
)

// NaturalKey identifies a real-world voter: normalized name, constituency
// and booth number. Two records with equal keys denote the same person.
type NaturalKey struct {
	Name         string
	Constituency string
	Booth        string
}

// NormalizedCandidate is the cleaned, typed projection of one RawRecord.
// Display fields keep original casing; *Key fields are the normalized
// forms used for matching.
type NormalizedCandidate struct {
	RowIndex int
	DocID    string
	Source   SourceFormat
	RawLine  string

	Name            string
	NameKey         string
	Age             int
	AgeKnown        bool
	Gender          Gender
	GenderRaw       string
	Constituency    string
	ConstituencyKey string
	BoothNo         string
	BoothKey        string
	Address         string
	Vote            bool
}

func (c NormalizedCandidate) NaturalKey() NaturalKey {
	return NaturalKey{Name: c.NameKey, Constituency: c.ConstituencyKey, Booth: c.BoothKey}
}

type RejectReason string

const (
	ReasonMalformedRow        RejectReason = "malformed_row"
	ReasonMissingName         RejectReason = "missing_name"
	ReasonMissingConstituency RejectReason = "missing_constituency"
	ReasonInvalidGender       RejectReason = "invalid_gender"
	ReasonDuplicateRow        RejectReason = "duplicate_within_row_set"
)

type MatchClass string

const (
	MatchNew               MatchClass = "new"
	MatchExactDuplicate    MatchClass = "exact_duplicate"
	MatchProbableDuplicate MatchClass = "probable_duplicate"
	MatchConflict          MatchClass = "conflict"
)

// MatchOutcome is the result of comparing one candidate against the store
// snapshot and the earlier-in-batch candidates.
type MatchOutcome struct {
	Class           MatchClass
	MatchedVoterID  *int64
	MatchedRowIndex *int
	Score           float64
}

// Voter is the canonical persisted entity. ID is assigned by the store at
// commit, never by the pipeline.
type Voter struct {
	ID              int64
	Name            string
	NameKey         string
	Age             *int
	Gender          Gender
	Constituency    string
	ConstituencyKey string
	BoothNo         string
	BoothKey        string
	Address         string
	Vote            bool
	BatchID         *string
	CreatedAt       string
	UpdatedAt       *string
}

// VoterUpdate carries a partial edit; nil fields are left untouched.
type VoterUpdate struct {
	Name         *string
	Age          *int
	Gender       *Gender
	Constituency *string
	BoothNo      *string
	Address      *string
	Vote         *bool
}

type RejectedRow struct {
	RowIndex int          `json:"row_index"`
	Reason   RejectReason `json:"reason"`
}

type ReviewRow struct {
	RowIndex       int        `json:"row_index"`
	Classification MatchClass `json:"classification"`
	MatchedVoterID *int64     `json:"matched_identity,omitempty"`
	Score          float64    `json:"score"`
}

type FailedRow struct {
	RowIndex int    `json:"row_index"`
	Reason   string `json:"reason"`
}

// BatchReport is the sole artifact a completed ingestion run hands back to
// the caller. Every input row resolves to exactly one of: accepted,
// skipped duplicate, rejected, needs review, or failed.
type BatchReport struct {
	BatchID           string        `json:"batch_id"`
	Accepted          []int64       `json:"accepted"`
	SkippedDuplicates int           `json:"skipped_duplicates"`
	Rejected          []RejectedRow `json:"rejected"`
	NeedsReview       []ReviewRow   `json:"needs_review"`
	Failed            []FailedRow   `json:"failed,omitempty"`
}

// GroupWriteResult reports the fate of one candidate inside an atomic
// group write: either a fresh id or a uniqueness-constraint skip.
type GroupWriteResult struct {
	RowIndex  int
	VoterID   int64
	Duplicate bool
}

// ReviewItem is a persisted needs-review row awaiting human adjudication.
type ReviewItem struct {
	ID             int64
	BatchID        string
	RowIndex       int
	Classification MatchClass
	MatchedVoterID *int64
	Score          float64
	CandidateJSON  string
	Status         string
	CreatedAt      string
}

type BatchStatus string

const (
	BatchStatusProcessed BatchStatus = "processed"
	BatchStatusPartial   BatchStatus = "partial"
	BatchStatusFailed    BatchStatus = "failed"
)

// BatchRow is the persisted record of one ingestion run.
type BatchRow struct {
	ID         string
	Source     string
	DocRef     string
	Status     BatchStatus
	CountsJSON string
	CreatedAt  string
}

// FetchedRosterMessage is one mail message pulled by a connector before it
// is persisted.
type FetchedRosterMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

// DocumentRow tracks one stored inbound document (a mailed roster).
type DocumentRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}
