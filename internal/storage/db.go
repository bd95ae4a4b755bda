// Package storage is the sqlite-backed voter store. The UNIQUE index over
// the normalized natural key (nameKey, constituencyKey, boothKey) is the
// single source of truth for duplicate resolution across concurrent
// batches and API writers.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"voterroll/internal"
	"voterroll/internal/util"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := conn.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS voters (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  nameKey TEXT NOT NULL,
  age INTEGER,
  gender TEXT NOT NULL DEFAULT 'unknown',
  constituency TEXT NOT NULL,
  constituencyKey TEXT NOT NULL,
  boothNo TEXT NOT NULL DEFAULT '',
  boothKey TEXT NOT NULL DEFAULT '',
  address TEXT NOT NULL DEFAULT '',
  vote INTEGER NOT NULL DEFAULT 0,
  batchId TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT,
  UNIQUE(nameKey, constituencyKey, boothKey)
);
CREATE INDEX IF NOT EXISTS idx_voters_constituencyKey ON voters(constituencyKey);
CREATE INDEX IF NOT EXISTS idx_voters_nameKey ON voters(nameKey);

CREATE TABLE IF NOT EXISTS batches (
  id TEXT PRIMARY KEY,
  source TEXT NOT NULL,
  docRef TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'processed',
  countsJson TEXT NOT NULL DEFAULT '{}',
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS review_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  batchId TEXT NOT NULL,
  rowIndex INTEGER NOT NULL,
  classification TEXT NOT NULL,
  matchedVoterId INTEGER,
  score REAL NOT NULL,
  candidateJson TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'open',
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(batchId) REFERENCES batches(id)
);
CREATE INDEX IF NOT EXISTS idx_review_items_status ON review_items(status);

CREATE TABLE IF NOT EXISTS documents (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// Snapshot reads every voter for batch-start duplicate detection. Ordered
// by id so downstream indexing is deterministic.
func (d *DB) Snapshot(ctx context.Context) ([]internal.Voter, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT id, name, nameKey, age, gender, constituency, constituencyKey,
       boothNo, boothKey, address, vote, batchId, createdAt, updatedAt
FROM voters ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanVoters(rows)
}

func scanVoters(rows *sql.Rows) ([]internal.Voter, error) {
	var out []internal.Voter
	for rows.Next() {
		var v internal.Voter
		var gender string
		if err := rows.Scan(
			&v.ID, &v.Name, &v.NameKey, &v.Age, &gender, &v.Constituency, &v.ConstituencyKey,
			&v.BoothNo, &v.BoothKey, &v.Address, &v.Vote, &v.BatchID, &v.CreatedAt, &v.UpdatedAt,
		); err != nil {
			return nil, err
		}
		v.Gender = internal.Gender(gender)
		out = append(out, v)
	}
	return out, rows.Err()
}

const insertVoterSQL = `
INSERT INTO voters (name, nameKey, age, gender, constituency, constituencyKey, boothNo, boothKey, address, vote, batchId)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(nameKey, constituencyKey, boothKey) DO NOTHING
`

func candidateArgs(batchID string, c internal.NormalizedCandidate) []any {
	var age any
	if c.AgeKnown {
		age = c.Age
	}
	return []any{c.Name, c.NameKey, age, string(c.Gender), c.Constituency, c.ConstituencyKey, c.BoothNo, c.BoothKey, c.Address, c.Vote, batchID}
}

// InsertVoterGroup writes one commit group atomically. A candidate losing
// the uniqueness race comes back with Duplicate=true and the id of the row
// that beat it; the group still commits.
func (d *DB) InsertVoterGroup(ctx context.Context, batchID string, cands []internal.NormalizedCandidate) ([]internal.GroupWriteResult, error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertVoterSQL)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	out := make([]internal.GroupWriteResult, 0, len(cands))
	for _, c := range cands {
		res, err := stmt.ExecContext(ctx, candidateArgs(batchID, c)...)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}

		wr := internal.GroupWriteResult{RowIndex: c.RowIndex}
		if affected == 0 {
			err := tx.QueryRowContext(ctx,
				`SELECT id FROM voters WHERE nameKey = ? AND constituencyKey = ? AND boothKey = ?`,
				c.NameKey, c.ConstituencyKey, c.BoothKey,
			).Scan(&wr.VoterID)
			switch {
			case err == nil:
				wr.Duplicate = true
			case errors.Is(err, sql.ErrNoRows):
				// The winning row vanished between insert and lookup. Retry
				// the insert once rather than report a duplicate of id 0.
				retry, err := stmt.ExecContext(ctx, candidateArgs(batchID, c)...)
				if err != nil {
					return nil, err
				}
				inserted, err := retry.RowsAffected()
				if err != nil {
					return nil, err
				}
				if inserted == 0 {
					return nil, fmt.Errorf("voter key contested: %s/%s/%s", c.NameKey, c.ConstituencyKey, c.BoothKey)
				}
				id, err := retry.LastInsertId()
				if err != nil {
					return nil, err
				}
				wr.VoterID = id
			default:
				return nil, err
			}
		} else {
			id, err := res.LastInsertId()
			if err != nil {
				return nil, err
			}
			wr.VoterID = id
		}
		out = append(out, wr)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

// InsertVoter writes a single resolved candidate, for review adjudication
// and direct creates. Returns (id, duplicate, err).
func (d *DB) InsertVoter(ctx context.Context, batchID string, c internal.NormalizedCandidate) (int64, bool, error) {
	results, err := d.InsertVoterGroup(ctx, batchID, []internal.NormalizedCandidate{c})
	if err != nil {
		return 0, false, err
	}
	return results[0].VoterID, results[0].Duplicate, nil
}

func (d *DB) GetVoter(ctx context.Context, id int64) (*internal.Voter, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT id, name, nameKey, age, gender, constituency, constituencyKey,
       boothNo, boothKey, address, vote, batchId, createdAt, updatedAt
FROM voters WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	voters, err := scanVoters(rows)
	if err != nil {
		return nil, err
	}
	if len(voters) == 0 {
		return nil, nil
	}
	return &voters[0], nil
}

// UpdateVoter applies a partial edit. Natural-key columns are recomputed
// through the same normalization the pipeline uses, so an edited record
// stays matchable.
func (d *DB) UpdateVoter(ctx context.Context, id int64, upd internal.VoterUpdate) (*internal.Voter, error) {
	sets := []string{"updatedAt = CURRENT_TIMESTAMP"}
	args := []any{}
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if upd.Name != nil {
		add("name", *upd.Name)
		add("nameKey", util.NormalizeKey(*upd.Name))
	}
	if upd.Constituency != nil {
		add("constituency", *upd.Constituency)
		add("constituencyKey", util.NormalizeKey(*upd.Constituency))
	}
	if upd.BoothNo != nil {
		add("boothNo", *upd.BoothNo)
		add("boothKey", util.NormalizeKey(*upd.BoothNo))
	}
	if upd.Age != nil {
		add("age", *upd.Age)
	}
	if upd.Gender != nil {
		add("gender", string(*upd.Gender))
	}
	if upd.Address != nil {
		add("address", *upd.Address)
	}
	if upd.Vote != nil {
		add("vote", *upd.Vote)
	}

	args = append(args, id)
	query := "UPDATE voters SET " + joinSets(sets) + " WHERE id = ?"
	if _, err := d.conn.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}
	return d.GetVoter(ctx, id)
}

func joinSets(sets []string) string {
	out := ""
	for i, s := range sets {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}

func (d *DB) DeleteVoter(ctx context.Context, id int64) (bool, error) {
	res, err := d.conn.ExecContext(ctx, `DELETE FROM voters WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

func (d *DB) ListVoters(ctx context.Context, limit, offset int) ([]internal.Voter, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT id, name, nameKey, age, gender, constituency, constituencyKey,
       boothNo, boothKey, address, vote, batchId, createdAt, updatedAt
FROM voters ORDER BY id ASC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanVoters(rows)
}

// SearchVoters matches name, constituency or booth, case-insensitively.
func (d *DB) SearchVoters(ctx context.Context, query string, limit int) ([]internal.Voter, error) {
	like := "%" + query + "%"
	rows, err := d.conn.QueryContext(ctx, `
SELECT id, name, nameKey, age, gender, constituency, constituencyKey,
       boothNo, boothKey, address, vote, batchId, createdAt, updatedAt
FROM voters
WHERE name LIKE ? COLLATE NOCASE
   OR constituency LIKE ? COLLATE NOCASE
   OR boothNo LIKE ? COLLATE NOCASE
ORDER BY id ASC LIMIT ?`, like, like, like, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanVoters(rows)
}

type ConstituencyCount struct {
	Constituency string
	Count        int
}

func (d *DB) SummaryByConstituency(ctx context.Context) ([]ConstituencyCount, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT constituency, COUNT(id) FROM voters GROUP BY constituency ORDER BY constituency ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ConstituencyCount
	for rows.Next() {
		var c ConstituencyCount
		if err := rows.Scan(&c.Constituency, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AgeDistribution buckets known ages into the dashboard's bins.
func (d *DB) AgeDistribution(ctx context.Context) (map[string]int, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT CASE
  WHEN age < 18 THEN '0-17'
  WHEN age <= 30 THEN '18-30'
  WHEN age <= 45 THEN '31-45'
  WHEN age <= 60 THEN '46-60'
  ELSE '61+'
END AS ageRange, COUNT(id)
FROM voters WHERE age IS NOT NULL GROUP BY ageRange`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bins := map[string]int{"0-17": 0, "18-30": 0, "31-45": 0, "46-60": 0, "61+": 0}
	for rows.Next() {
		var bin string
		var count int
		if err := rows.Scan(&bin, &count); err != nil {
			return nil, err
		}
		bins[bin] = count
	}
	return bins, rows.Err()
}

func (d *DB) GenderRatio(ctx context.Context) (map[string]int, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT gender, COUNT(id) FROM voters GROUP BY gender`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var gender string
		var count int
		if err := rows.Scan(&gender, &count); err != nil {
			return nil, err
		}
		out[gender] = count
	}
	return out, rows.Err()
}

func (d *DB) InsertBatch(ctx context.Context, id, source, docRef string) error {
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO batches (id, source, docRef) VALUES (?, ?, ?)`, id, source, docRef)
	return err
}

func (d *DB) UpdateBatch(ctx context.Context, id string, status internal.BatchStatus, countsJSON string) error {
	_, err := d.conn.ExecContext(ctx,
		`UPDATE batches SET status = ?, countsJson = ? WHERE id = ?`, string(status), countsJSON, id)
	return err
}

func (d *DB) GetBatch(ctx context.Context, id string) (*internal.BatchRow, error) {
	var b internal.BatchRow
	var status string
	err := d.conn.QueryRowContext(ctx,
		`SELECT id, source, docRef, status, countsJson, createdAt FROM batches WHERE id = ?`, id).
		Scan(&b.ID, &b.Source, &b.DocRef, &status, &b.CountsJSON, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	b.Status = internal.BatchStatus(status)
	return &b, nil
}

func (d *DB) InsertReviewItems(ctx context.Context, items []internal.ReviewItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO review_items (batchId, rowIndex, classification, matchedVoterId, score, candidateJson, status)
VALUES (?, ?, ?, ?, ?, ?, 'open')`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, item := range items {
		if _, err := stmt.ExecContext(ctx, item.BatchID, item.RowIndex, string(item.Classification), item.MatchedVoterID, item.Score, item.CandidateJSON); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *DB) ListReviewItems(ctx context.Context, status string, limit int) ([]internal.ReviewItem, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT id, batchId, rowIndex, classification, matchedVoterId, score, candidateJson, status, createdAt
FROM review_items WHERE status = ? ORDER BY id ASC LIMIT ?`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ReviewItem
	for rows.Next() {
		var item internal.ReviewItem
		var classification string
		if err := rows.Scan(&item.ID, &item.BatchID, &item.RowIndex, &classification, &item.MatchedVoterID, &item.Score, &item.CandidateJSON, &item.Status, &item.CreatedAt); err != nil {
			return nil, err
		}
		item.Classification = internal.MatchClass(classification)
		out = append(out, item)
	}
	return out, rows.Err()
}

func (d *DB) ListReviewItemsByBatch(ctx context.Context, batchID string) ([]internal.ReviewItem, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT id, batchId, rowIndex, classification, matchedVoterId, score, candidateJson, status, createdAt
FROM review_items WHERE batchId = ? ORDER BY rowIndex ASC`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ReviewItem
	for rows.Next() {
		var item internal.ReviewItem
		var classification string
		if err := rows.Scan(&item.ID, &item.BatchID, &item.RowIndex, &classification, &item.MatchedVoterID, &item.Score, &item.CandidateJSON, &item.Status, &item.CreatedAt); err != nil {
			return nil, err
		}
		item.Classification = internal.MatchClass(classification)
		out = append(out, item)
	}
	return out, rows.Err()
}

func (d *DB) GetReviewItem(ctx context.Context, id int64) (*internal.ReviewItem, error) {
	var item internal.ReviewItem
	var classification string
	err := d.conn.QueryRowContext(ctx, `
SELECT id, batchId, rowIndex, classification, matchedVoterId, score, candidateJson, status, createdAt
FROM review_items WHERE id = ?`, id).
		Scan(&item.ID, &item.BatchID, &item.RowIndex, &classification, &item.MatchedVoterID, &item.Score, &item.CandidateJSON, &item.Status, &item.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	item.Classification = internal.MatchClass(classification)
	return &item, nil
}

func (d *DB) SetReviewItemStatus(ctx context.Context, id int64, status string) error {
	_, err := d.conn.ExecContext(ctx, `UPDATE review_items SET status = ? WHERE id = ?`, status, id)
	return err
}

func (d *DB) UpsertDocument(ctx context.Context, provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.DocumentRow, error) {
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO documents (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.DocumentRow{}, err
	}

	row, err := d.GetDocumentByProviderMessageID(ctx, provider, messageID)
	if err != nil {
		return internal.DocumentRow{}, err
	}
	if row == nil {
		return internal.DocumentRow{}, fmt.Errorf("failed to upsert document: provider=%s messageId=%s", provider, messageID)
	}
	return *row, nil
}

func (d *DB) GetDocumentByProviderMessageID(ctx context.Context, provider, messageID string) (*internal.DocumentRow, error) {
	var row internal.DocumentRow
	err := d.conn.QueryRowContext(ctx, `
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM documents WHERE provider = ? AND messageId = ?`, provider, messageID).
		Scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListDocumentsByStatus(ctx context.Context, status string, limit int) ([]internal.DocumentRow, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM documents WHERE status = ? ORDER BY receivedAt ASC LIMIT ?`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.DocumentRow
	for rows.Next() {
		var row internal.DocumentRow
		if err := rows.Scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateDocumentStatus(ctx context.Context, id int, status string) error {
	_, err := d.conn.ExecContext(ctx, `UPDATE documents SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, id)
	return err
}
