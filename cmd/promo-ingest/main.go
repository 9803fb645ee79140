// Command promo-ingest bulk-loads promotion codes from gzipped code dumps.
// Each input file holds one code per line. Files are streamed concurrently;
// a bloom filter provides approximate cross-file deduplication so a
// multi-gigabyte dump never has to fit in memory.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/shopforge/orderflow/internal/domain/promotion"
	"github.com/shopforge/orderflow/internal/storage/postgres"
)

const (
	bloomCapacity = 100_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
)

func main() {
	var (
		databaseURL string
		percent     int
		validDays   int
		usageLimit  int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&percent, "percent", 10, "percentage discount assigned to ingested codes")
	flag.IntVar(&validDays, "valid-days", 30, "validity window in days from now")
	flag.IntVar(&usageLimit, "usage-limit", 0, "global usage limit per code (0 = unlimited)")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		slog.Error("at least one codes file is required: promo-ingest [flags] codes1.gz [codes2.gz ...]")
		os.Exit(1)
	}

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, files, percent, validDays, usageLimit); err != nil {
		slog.Error("promo ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("promo ingest completed successfully")
}

func run(ctx context.Context, databaseURL string, files []string, percent, validDays, usageLimit int) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := postgres.NewPromotionRepository(pool)

	now := time.Now().UTC()
	template := promotion.Code{
		Kind:     promotion.KindPercentage,
		Amount:   decimal.NewFromInt(int64(percent)),
		Scope:    promotion.ScopeAll,
		StartsAt: now,
		EndsAt:   now.AddDate(0, 0, validDays),
	}
	if usageLimit > 0 {
		template.UsageLimit = &usageLimit
	}

	ingest := &ingester{
		repo:     repo,
		template: template,
		seen:     bloom.NewWithEstimates(bloomCapacity, bloomFPR),
	}

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(ingest.fileWorker(ctx, i+1, f))
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("ingest summary",
		slog.Uint64("inserted", ingest.inserted),
		slog.Uint64("skipped", ingest.skipped),
	)
	return nil
}

// ingester shares the dedup filter and counters across file workers. The
// bloom filter can report false positives, so a tiny fraction of valid
// codes may be skipped as duplicates; acceptable for marketing dumps.
type ingester struct {
	repo     *postgres.PromotionRepository
	template promotion.Code

	mu       sync.Mutex
	seen     *bloom.BloomFilter
	inserted uint64
	skipped  uint64
}

// claim marks a code as seen. Reports false when the code was (probably)
// already ingested.
func (in *ingester) claim(code string) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.seen.TestString(code) {
		in.skipped++
		return false
	}
	in.seen.AddString(code)
	in.inserted++
	return true
}

func (in *ingester) fileWorker(ctx context.Context, idx int, path string) func() error {
	return func() error {
		var count uint64
		err := streamGzFile(ctx, path, func(raw string) error {
			count++
			if count%progressEvery == 0 {
				slog.Info("ingest progress",
					slog.Int("file", idx),
					slog.Uint64("lines", count),
				)
			}

			code := promotion.Normalize(raw)
			if !validCode(code) || !in.claim(code) {
				return nil
			}

			c := in.template
			c.ID = uuid.New().String()
			c.Code = code
			return in.repo.Upsert(ctx, &c)
		})
		if err != nil {
			return errors.Wrapf(err, "ingest file %s", path)
		}

		slog.Info("file complete", slog.Int("file", idx), slog.Uint64("lines", count))
		return nil
	}
}

// validCode mirrors the stored code format: 3-64 chars of A-Z 0-9 - _.
func validCode(code string) bool {
	if len(code) < 3 || len(code) > 64 {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}

// streamGzFile decompresses path with pgzip and calls fn for every line.
func streamGzFile(ctx context.Context, path string, fn func(line string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open")
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrap(err, "gzip reader")
	}
	defer gz.Close()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var line uint64
	for scanner.Scan() {
		line++
		// Check for cancellation without syscall overhead per line.
		if line%65536 == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		if err := fn(scanner.Text()); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	return errors.Wrap(scanner.Err(), "scan")
}
