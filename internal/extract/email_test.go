package extract

import (
	"strings"
	"testing"
)

func TestFromEmailRaw(t *testing.T) {
	raw := strings.ReplaceAll(`From: eo@example.org
To: rolls@example.org
Subject: March roster
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="BOUNDARY"

--BOUNDARY
Content-Type: text/plain

Roster attached.
--BOUNDARY
Content-Type: text/plain; name="notes.txt"
Content-Disposition: attachment; filename="notes.txt"

Internal notes, not a roster.
--BOUNDARY
Content-Type: text/csv; name="roster.csv"
Content-Disposition: attachment; filename="roster.csv"

Name,Age,Gender,Constituency,Booth No
Asha Rao,34,F,North,B01
Vikram Singh,51,M,South,S02
--BOUNDARY--
`, "\n", "\r\n")

	rows, subject, names, err := FromEmailRaw("doc-1", []byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if subject != "March roster" {
		t.Fatalf("subject: %q", subject)
	}
	if len(names) != 2 {
		t.Fatalf("attachment names: %v", names)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d, want 2 (txt attachment skipped)", len(rows))
	}
	if rows[0].Fields[FieldName] != "Asha Rao" || rows[1].RowIndex != 2 {
		t.Fatalf("rows: %+v", rows)
	}
}

func TestFromEmailRawNoRosterAttachments(t *testing.T) {
	raw := strings.ReplaceAll(`From: someone@example.org
Subject: hello
MIME-Version: 1.0
Content-Type: text/plain

No attachments here.
`, "\n", "\r\n")

	rows, _, names, err := FromEmailRaw("doc-2", []byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 || len(names) != 0 {
		t.Fatalf("rows=%d names=%v, want nothing", len(rows), names)
	}
}
