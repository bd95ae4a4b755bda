// Package extract turns uploaded roster documents (CSV, XLSX, PDF, HTML)
// into RawRecord rows. Garbage rows are passed through, not dropped; the
// pipeline's gate decides their fate so every row shows up in the report.
package extract

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"voterroll/internal"
	"voterroll/internal/util"
)

// Canonical column names every source format maps onto.
const (
	FieldName         = "name"
	FieldAge          = "age"
	FieldGender       = "gender"
	FieldConstituency = "constituency"
	FieldBoothNo      = "booth_no"
	FieldAddress      = "address"
	FieldVote         = "vote"
)

// FromFile extracts rows from a document on disk. The format may be left
// empty, in which case it is inferred from the extension.
func FromFile(docID, path string, format internal.SourceFormat) ([]internal.RawRecord, error) {
	if format == "" {
		format = formatFromName(path)
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromBytes(docID, blob, format)
}

func FromBytes(docID string, blob []byte, format internal.SourceFormat) ([]internal.RawRecord, error) {
	switch format {
	case internal.SourceCSV:
		return parseCSV(docID, bytes.NewReader(blob))
	case internal.SourceXLSX:
		return parseXLSX(docID, blob)
	case internal.SourcePDF:
		return parsePDF(docID, blob)
	case internal.SourceHTML:
		return parseHTML(docID, blob)
	default:
		return nil, fmt.Errorf("unsupported source format: %s", format)
	}
}

func formatFromName(name string) internal.SourceFormat {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return internal.SourceCSV
	case ".xlsx", ".xls":
		return internal.SourceXLSX
	case ".pdf":
		return internal.SourcePDF
	case ".html", ".htm":
		return internal.SourceHTML
	default:
		return ""
	}
}

// canonicalField maps a source column header onto one of the canonical
// field names, tolerating the header spellings seen in real rolls
// ("Booth No", "BOOTH", "Sex", ...). Unrecognized headers map to "".
func canonicalField(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	h = strings.ReplaceAll(h, "_", " ")
	switch {
	case strings.Contains(h, "name"):
		return FieldName
	case strings.Contains(h, "age"):
		return FieldAge
	case strings.Contains(h, "gender") || strings.Contains(h, "sex"):
		return FieldGender
	case strings.Contains(h, "constituen"):
		return FieldConstituency
	case strings.Contains(h, "booth"):
		return FieldBoothNo
	case strings.Contains(h, "addr"):
		return FieldAddress
	case strings.Contains(h, "vote"):
		return FieldVote
	default:
		return ""
	}
}

func rowToRecord(docID string, source internal.SourceFormat, rowIndex int, headers []string, cells []string) internal.RawRecord {
	fields := map[string]string{}
	for i := 0; i < len(headers) && i < len(cells); i++ {
		key := canonicalField(headers[i])
		if key == "" {
			continue
		}
		value := util.CleanText(cells[i])
		if value == "" {
			continue
		}
		fields[key] = value
	}
	return internal.RawRecord{
		DocID:    docID,
		RowIndex: rowIndex,
		Source:   source,
		RawLine:  strings.Join(trimCells(cells), " | "),
		Fields:   fields,
	}
}

func trimCells(cells []string) []string {
	out := make([]string, 0, len(cells))
	for _, c := range cells {
		out = append(out, util.CleanText(c))
	}
	return out
}

func parseCSV(docID string, r io.Reader) ([]internal.RawRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	out := []internal.RawRecord{}
	rowIndex := 0
	for {
		cells, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A broken line is a garbage row, not a failed document. Record
			// where the parse broke so the rejection points at the source.
			rawLine := err.Error()
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				rawLine = fmt.Sprintf("unreadable line %d, column %d: %v", parseErr.Line, parseErr.Column, parseErr.Err)
			}
			rowIndex++
			out = append(out, internal.RawRecord{DocID: docID, RowIndex: rowIndex, Source: internal.SourceCSV, RawLine: rawLine, Fields: map[string]string{}})
			continue
		}
		if allBlank(cells) {
			continue
		}
		rowIndex++
		out = append(out, rowToRecord(docID, internal.SourceCSV, rowIndex, headers, cells))
	}
	return out, nil
}

func parseXLSX(docID string, blob []byte) ([]internal.RawRecord, error) {
	f, err := excelize.OpenReader(bytes.NewReader(blob))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := []internal.RawRecord{}
	rowIndex := 0
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}

		var headers []string
		for _, row := range rows {
			cells := trimCells(row)
			if allBlank(cells) {
				continue
			}
			if headers == nil {
				if looksLikeHeader(cells) {
					headers = cells
					continue
				}
				// Sheet without a header row: assume the roll's column order.
				headers = []string{FieldName, FieldAge, FieldGender, FieldConstituency, FieldBoothNo, FieldAddress}
			}
			rowIndex++
			out = append(out, rowToRecord(docID, internal.SourceXLSX, rowIndex, headers, cells))
		}
	}
	return out, nil
}

func parseHTML(docID string, blob []byte) ([]internal.RawRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(blob))
	if err != nil {
		return nil, err
	}

	out := []internal.RawRecord{}
	rowIndex := 0
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tr")
		if rows.Length() < 2 {
			return
		}

		headers := []string{}
		rows.First().Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			headers = append(headers, cell.Text())
		})
		if !looksLikeHeader(headers) {
			return
		}

		rows.Slice(1, rows.Length()).Each(func(_ int, row *goquery.Selection) {
			cells := []string{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, cell.Text())
			})
			if allBlank(cells) {
				return
			}
			rowIndex++
			out = append(out, rowToRecord(docID, internal.SourceHTML, rowIndex, headers, cells))
		})
	})
	return out, nil
}

// rosterLine matches one typed roster line: name, age, gender token,
// constituency, booth, optional address.
var rosterLine = regexp.MustCompile(`(?i)^(.+?)\s+(\d{1,3})\s+(male|female|other|m|f|o)\b\.?\s+(\S+(?:\s\S+)*?)\s+([A-Za-z]*\d+[A-Za-z0-9\-]*)(?:\s+(.+))?$`)

func parsePDF(docID string, blob []byte) ([]internal.RawRecord, error) {
	r, err := pdf.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return nil, err
	}

	out := []internal.RawRecord{}
	rowIndex := 0
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		for _, line := range splitLines(text) {
			if looksLikeHeader(strings.Fields(line)) {
				continue
			}
			rowIndex++
			out = append(out, lineToRecord(docID, rowIndex, line))
		}
	}
	return out, nil
}

func lineToRecord(docID string, rowIndex int, line string) internal.RawRecord {
	rec := internal.RawRecord{
		DocID:    docID,
		RowIndex: rowIndex,
		Source:   internal.SourcePDF,
		RawLine:  util.CleanText(line),
		Fields:   map[string]string{},
	}
	m := rosterLine.FindStringSubmatch(rec.RawLine)
	if m == nil {
		// Unparseable line: surface the raw text, let the gate reject it.
		return rec
	}
	rec.Fields[FieldName] = util.CleanText(m[1])
	rec.Fields[FieldAge] = m[2]
	rec.Fields[FieldGender] = m[3]
	rec.Fields[FieldConstituency] = util.CleanText(m[4])
	rec.Fields[FieldBoothNo] = m[5]
	if m[6] != "" {
		rec.Fields[FieldAddress] = util.CleanText(m[6])
	}
	return rec
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func looksLikeHeader(cells []string) bool {
	hits := 0
	for _, c := range cells {
		if canonicalField(c) != "" {
			hits++
		}
	}
	return hits >= 2
}

func allBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
