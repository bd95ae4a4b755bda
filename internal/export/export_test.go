package export

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"voterroll/internal"
	"voterroll/internal/util"
)

func TestReviewItemsToXLSX(t *testing.T) {
	items := []internal.ReviewItem{
		{
			ID:             1,
			BatchID:        "batch-1",
			RowIndex:       4,
			Classification: internal.MatchProbableDuplicate,
			MatchedVoterID: util.Int64Ptr(7),
			Score:          0.93,
			Status:         "open",
			CandidateJSON:  `{"Name":"Asha Raoo","Age":34,"AgeKnown":true,"Gender":"female","Constituency":"North","BoothNo":"B01","Address":"12 Lake Rd"}`,
		},
	}

	path := filepath.Join(t.TempDir(), "review.xlsx")
	if err := ReviewItemsToXLSX(items, path); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d, want header + 1 item", len(rows))
	}
	if rows[0][0] != "review_id" || rows[0][3] != "classification" {
		t.Fatalf("header: %v", rows[0])
	}
	got := rows[1]
	if got[3] != "probable_duplicate" || got[7] != "Asha Raoo" || got[11] != "B01" {
		t.Fatalf("row: %v", got)
	}
}
