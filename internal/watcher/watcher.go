// Package watcher polls a mailbox for roster documents and feeds each one
// through the ingestion pipeline.
package watcher

import (
	"context"
	"fmt"
	"os"
	"time"

	"voterroll/internal"
	"voterroll/internal/config"
	"voterroll/internal/connectors"
	imapconnector "voterroll/internal/connectors/imap"
	"voterroll/internal/extract"
	"voterroll/internal/pipeline"
	"voterroll/internal/storage"
)

type Service struct {
	db  *storage.DB
	cfg config.Config
}

func NewService(db *storage.DB, cfg config.Config) *Service {
	return &Service{db: db, cfg: cfg}
}

func (s *Service) Run(ctx context.Context) error {
	for {
		if err := s.runCycle(ctx); err != nil {
			fmt.Printf("watcher cycle error: %v\n", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.WatchIntervalSec) * time.Second):
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	conn, err := imapconnector.NewConnector(s.cfg)
	if err != nil {
		return err
	}

	fetchService := connectors.NewFetchService(s.db, s.cfg.RawMailDir, conn)
	fetchResult, err := fetchService.FetchAndStore(ctx, s.cfg.WatchLabel, s.cfg.WatchFetchMax)
	if err != nil {
		return err
	}

	processed, err := s.processFetched(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("watcher cycle done fetched=%d stored=%d processed=%d\n", fetchResult.Fetched, fetchResult.Stored, processed)
	return nil
}

func (s *Service) processFetched(ctx context.Context) (int, error) {
	docs, err := s.db.ListDocumentsByStatus(ctx, "fetched", s.cfg.WatchFetchMax)
	if err != nil {
		return 0, err
	}

	svc := pipeline.NewIngestService(s.db, s.cfg)
	processed := 0
	for _, doc := range docs {
		if err := s.processDocument(ctx, svc, doc); err != nil {
			// One broken document must not stall the queue.
			fmt.Printf("watcher document error id=%d messageId=%s err=%v\n", doc.ID, doc.MessageID, err)
			_ = s.db.UpdateDocumentStatus(ctx, doc.ID, "failed")
			continue
		}
		processed++
	}
	return processed, nil
}

func (s *Service) processDocument(ctx context.Context, svc *pipeline.IngestService, doc internal.DocumentRow) error {
	raw, err := os.ReadFile(doc.RawRef)
	if err != nil {
		return err
	}

	rows, subject, attachments, err := extract.FromEmailRaw(doc.MessageID, raw)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Printf("watcher skipping document id=%d subject=%q attachments=%d: no roster rows\n", doc.ID, subject, len(attachments))
		return s.db.UpdateDocumentStatus(ctx, doc.ID, "skipped")
	}

	report, err := svc.Ingest(ctx, "imap", doc.MessageID, rows)
	if err != nil {
		return err
	}

	fmt.Printf("watcher ingested document id=%d batch=%s rows=%d accepted=%d skipped=%d rejected=%d review=%d\n",
		doc.ID, report.BatchID, len(rows), len(report.Accepted), report.SkippedDuplicates, len(report.Rejected), len(report.NeedsReview))
	return s.db.UpdateDocumentStatus(ctx, doc.ID, "processed")
}
