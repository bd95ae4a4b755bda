package connectors

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"voterroll/internal"
	"voterroll/internal/storage"
)

// DocumentStoreService persists fetched messages: raw MIME bytes on disk
// keyed by content hash, plus a documents row for pipeline bookkeeping.
type DocumentStoreService struct {
	db         *storage.DB
	rawMailDir string
}

func NewDocumentStoreService(db *storage.DB, rawMailDir string) *DocumentStoreService {
	return &DocumentStoreService{db: db, rawMailDir: rawMailDir}
}

func (s *DocumentStoreService) Store(ctx context.Context, msg internal.FetchedRosterMessage) (internal.DocumentRow, error) {
	hashBytes := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(hashBytes[:])

	if err := os.MkdirAll(s.rawMailDir, 0o755); err != nil {
		return internal.DocumentRow{}, err
	}

	rawPath := filepath.Join(s.rawMailDir, hash+".eml")
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, msg.Raw, 0o644); err != nil {
			return internal.DocumentRow{}, err
		}
	}

	return s.db.UpsertDocument(ctx, msg.Provider, msg.MessageID, msg.Subject, msg.From, msg.ReceivedAt, hash, rawPath, "fetched")
}
