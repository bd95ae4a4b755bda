package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"voterroll/internal"
	"voterroll/internal/config"
	"voterroll/internal/export"
	"voterroll/internal/extract"
	"voterroll/internal/pipeline"
	"voterroll/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	ctx := context.Background()
	cmd := os.Args[1]
	switch cmd {
	case "ingest":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "roster document path")
		inType := fs.String("type", "", "csv|xlsx|pdf|html (default: by extension)")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}

		docID := filepath.Base(*input)
		rows, err := extract.FromFile(docID, *input, internal.SourceFormat(*inType))
		must(err)

		svc := pipeline.NewIngestService(db, cfg)
		report, err := svc.Ingest(ctx, sourceLabel(*inType, *input), docID, rows)
		must(err)
		printReport(report, len(rows))

	case "review:list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		status := fs.String("status", "open", "open|applied|dismissed")
		limit := fs.Int("limit", 50, "max items")
		_ = fs.Parse(os.Args[2:])
		items, err := db.ListReviewItems(ctx, *status, *limit)
		must(err)
		for _, item := range items {
			matched := "-"
			if item.MatchedVoterID != nil {
				matched = fmt.Sprintf("%d", *item.MatchedVoterID)
			}
			fmt.Printf("review id=%d batch=%s row=%d class=%s score=%.2f matched=%s status=%s\n",
				item.ID, item.BatchID, item.RowIndex, item.Classification, item.Score, matched, item.Status)
		}
		fmt.Printf("total=%d\n", len(items))

	case "review:apply":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.Int64("id", 0, "review item id")
		_ = fs.Parse(os.Args[2:])
		if *id == 0 {
			must(fmt.Errorf("--id is required"))
		}
		svc := pipeline.NewIngestService(db, cfg)
		voterID, duplicate, err := svc.ApplyReview(ctx, *id)
		must(err)
		if duplicate {
			fmt.Printf("review %d skipped: voter already exists id=%d\n", *id, voterID)
		} else {
			fmt.Printf("review %d applied: committed voter id=%d\n", *id, voterID)
		}

	case "review:dismiss":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.Int64("id", 0, "review item id")
		_ = fs.Parse(os.Args[2:])
		if *id == 0 {
			must(fmt.Errorf("--id is required"))
		}
		svc := pipeline.NewIngestService(db, cfg)
		must(svc.DismissReview(ctx, *id))
		fmt.Printf("review %d dismissed\n", *id)

	case "review:export":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		batch := fs.String("batch", "", "batch id")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*batch) == "" || strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--batch and --out are required"))
		}
		items, err := db.ListReviewItemsByBatch(ctx, *batch)
		must(err)
		if len(items) == 0 {
			must(fmt.Errorf("no review items for batch=%s", *batch))
		}
		must(export.ReviewItemsToXLSX(items, *out))
		fmt.Printf("exported %d review items to %s\n", len(items), *out)

	case "voters:list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 100, "max voters")
		offset := fs.Int("offset", 0, "skip")
		_ = fs.Parse(os.Args[2:])
		voters, err := db.ListVoters(ctx, *limit, *offset)
		must(err)
		printVoters(voters)

	case "voters:search":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		q := fs.String("q", "", "name/constituency/booth substring")
		limit := fs.Int("limit", 100, "max voters")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*q) == "" {
			must(fmt.Errorf("--q is required"))
		}
		voters, err := db.SearchVoters(ctx, *q, *limit)
		must(err)
		printVoters(voters)

	case "voters:delete":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.Int64("id", 0, "voter id")
		_ = fs.Parse(os.Args[2:])
		if *id == 0 {
			must(fmt.Errorf("--id is required"))
		}
		deleted, err := db.DeleteVoter(ctx, *id)
		must(err)
		if !deleted {
			must(fmt.Errorf("voter not found: id=%d", *id))
		}
		fmt.Printf("deleted voter id=%d\n", *id)

	case "stats":
		summary, err := db.SummaryByConstituency(ctx)
		must(err)
		fmt.Println("voters by constituency:")
		for _, row := range summary {
			fmt.Printf("  %s: %d\n", row.Constituency, row.Count)
		}

		ages, err := db.AgeDistribution(ctx)
		must(err)
		fmt.Println("age distribution:")
		for _, bin := range []string{"0-17", "18-30", "31-45", "46-60", "61+"} {
			fmt.Printf("  %s: %d\n", bin, ages[bin])
		}

		genders, err := db.GenderRatio(ctx)
		must(err)
		fmt.Println("gender ratio:")
		for gender, count := range genders {
			fmt.Printf("  %s: %d\n", gender, count)
		}

	default:
		usage()
		os.Exit(1)
	}
}

func sourceLabel(inType, input string) string {
	if strings.TrimSpace(inType) != "" {
		return inType
	}
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(input)), ".")
}

func printReport(report internal.BatchReport, rows int) {
	fmt.Printf("batch %s done rows=%d accepted=%d skipped_duplicates=%d rejected=%d needs_review=%d failed=%d\n",
		report.BatchID, rows, len(report.Accepted), report.SkippedDuplicates, len(report.Rejected), len(report.NeedsReview), len(report.Failed))
	for _, rej := range report.Rejected {
		fmt.Printf("  rejected row=%d reason=%s\n", rej.RowIndex, rej.Reason)
	}
	for _, rv := range report.NeedsReview {
		matched := "-"
		if rv.MatchedVoterID != nil {
			matched = fmt.Sprintf("%d", *rv.MatchedVoterID)
		}
		fmt.Printf("  review row=%d class=%s score=%.2f matched=%s\n", rv.RowIndex, rv.Classification, rv.Score, matched)
	}
	for _, f := range report.Failed {
		fmt.Printf("  failed row=%d reason=%s\n", f.RowIndex, f.Reason)
	}
}

func printVoters(voters []internal.Voter) {
	for _, v := range voters {
		age := "-"
		if v.Age != nil {
			age = fmt.Sprintf("%d", *v.Age)
		}
		fmt.Printf("voter id=%d name=%q age=%s gender=%s constituency=%q booth=%q vote=%t\n",
			v.ID, v.Name, age, v.Gender, v.Constituency, v.BoothNo, v.Vote)
	}
	fmt.Printf("total=%d\n", len(voters))
}

func usage() {
	fmt.Println("usage: voterroll <command>")
	fmt.Println("commands:")
	fmt.Println("  ingest --input=roster.csv [--type=csv|xlsx|pdf|html]")
	fmt.Println("  review:list [--status=open] [--limit=50]")
	fmt.Println("  review:apply --id=1")
	fmt.Println("  review:dismiss --id=1")
	fmt.Println("  review:export --batch=<uuid> --out=./out/review.xlsx")
	fmt.Println("  voters:list [--limit=100] [--offset=0]")
	fmt.Println("  voters:search --q=asha")
	fmt.Println("  voters:delete --id=1")
	fmt.Println("  stats")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
