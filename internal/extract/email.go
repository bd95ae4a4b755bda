package extract

import (
	"bytes"
	"strings"

	"github.com/jhillyerd/enmime"

	"voterroll/internal"
)

// FromEmailRaw pulls roster rows out of a stored MIME message: every
// attachment with a recognizable roster format is extracted, and rows are
// re-indexed into one flat sequence. Returns the rows, the subject line
// and the attachment names that were considered.
func FromEmailRaw(docID string, raw []byte) ([]internal.RawRecord, string, []string, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, "", nil, err
	}

	rows := []internal.RawRecord{}
	names := []string{}
	for _, att := range env.Attachments {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" {
			filename = "attachment"
		}
		names = append(names, filename)

		format := formatFromName(filename)
		if format == "" {
			continue
		}
		extra, err := FromBytes(docID, att.Content, format)
		if err != nil {
			// One unreadable attachment must not sink the rest.
			continue
		}
		rows = append(rows, extra...)
	}

	for i := range rows {
		rows[i].RowIndex = i + 1
	}
	return rows, env.GetHeader("Subject"), names, nil
}
