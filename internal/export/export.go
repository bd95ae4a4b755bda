// Package export writes review-bucket items to xlsx workbooks operators
// can adjudicate from.
package export

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"voterroll/internal"
)

func ReviewItemsToXLSX(items []internal.ReviewItem, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{
		"review_id", "batch_id", "row_index", "classification", "score", "matched_voter_id", "status",
		"name", "age", "gender", "constituency", "booth_no", "address",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, item := range items {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		var cand internal.NormalizedCandidate
		_ = json.Unmarshal([]byte(item.CandidateJSON), &cand)

		set(1, item.ID)
		set(2, item.BatchID)
		set(3, item.RowIndex)
		set(4, string(item.Classification))
		set(5, item.Score)
		if item.MatchedVoterID != nil {
			set(6, *item.MatchedVoterID)
		}
		set(7, item.Status)
		set(8, cand.Name)
		if cand.AgeKnown {
			set(9, cand.Age)
		}
		set(10, string(cand.Gender))
		set(11, cand.Constituency)
		set(12, cand.BoothNo)
		set(13, cand.Address)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}
