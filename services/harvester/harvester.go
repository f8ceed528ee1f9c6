// Package harvester drives the daily ingest: the cartesian product of a date
// countdown and an auction id range, each pair fetched, parsed and merged into
// the catalogs. a pair that fails is recorded and skipped, never retried.
package harvester

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"agroprecios-harvester/lib/scrapers/agroprecios"
	"agroprecios-harvester/lib/timezone"
	"agroprecios-harvester/services/harvester/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/harvester")

// Source hands back the raw document for one (auction, day) pair.
// *agroprecios.Client satisfies this; tests plug in canned pages.
type Source interface {
	Fetch(ctx context.Context, auctionId int, day time.Time) ([]byte, error)
}

type RunOptions struct {
	// most recent day to query, inclusive
	LastDate time.Time
	// days to walk back from LastDate, including it. minimum 1
	MaxDays int
	// auction ids 1..MaxAuctions are queried. minimum 1
	MaxAuctions int
}

type Stats struct {
	PairsAttempted int
	PairsWithData  int
	FetchFailures  int
	PairsNoData    int
	MalformedPages int
	NewAuctions    int
	NewFamilies    int
	NewProducts    int
	NewFacts       int
}

type Harvester struct {
	source Source
	store  *store.Store
}

func New(source Source, st *store.Store) Harvester {
	return Harvester{source: source, store: st}
}

// Run walks every pair sequentially and saves all four tables once at the
// end. only a failed save is an error; everything that goes wrong with a
// single pair is folded into the stats and logged.
func (h Harvester) Run(ctx context.Context, opts RunOptions) (Stats, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	var stats Stats
	for dayOffset := 0; dayOffset < opts.MaxDays; dayOffset++ {
		day := opts.LastDate.AddDate(0, 0, -dayOffset)
		for auctionId := 1; auctionId <= opts.MaxAuctions; auctionId++ {
			h.harvestPair(ctx, auctionId, day, &stats)
		}
	}

	err := h.store.Save()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save tables")
		return stats, err
	}

	span.SetAttributes(
		attribute.Int("pairs_attempted", stats.PairsAttempted),
		attribute.Int("pairs_with_data", stats.PairsWithData),
		attribute.Int("new_facts", stats.NewFacts),
	)
	return stats, nil
}

func (h Harvester) harvestPair(ctx context.Context, auctionId int, day time.Time, stats *Stats) {
	ctx, span := tracer.Start(ctx, "harvestPair")
	defer span.End()
	span.SetAttributes(
		attribute.Int("auction_id", auctionId),
		attribute.String("day", timezone.FormatISODate(day)),
	)

	stats.PairsAttempted++

	raw, err := h.source.Fetch(ctx, auctionId, day)
	if err != nil {
		slog.WarnContext(ctx, "failed to fetch auction",
			"auction_id", auctionId, "day", timezone.FormatQueryDate(day), "err", err)
		stats.FetchFailures++
		return
	}

	page, err := agroprecios.Parse(ctx, raw, auctionId, day)
	switch {
	case errors.Is(err, agroprecios.ErrNoData):
		slog.InfoContext(ctx, "no auction published for pair",
			"auction_id", auctionId, "day", timezone.FormatQueryDate(day))
		stats.PairsNoData++
		return
	case err != nil:
		slog.WarnContext(ctx, "failed to parse auction page",
			"auction_id", auctionId, "day", timezone.FormatQueryDate(day), "err", err)
		stats.MalformedPages++
		return
	}

	if len(page.Rows) == 0 {
		slog.InfoContext(ctx, "auction page has no product rows",
			"auction_id", auctionId, "day", timezone.FormatQueryDate(day))
		stats.PairsNoData++
		return
	}

	stats.PairsWithData++
	h.mergePage(ctx, auctionId, page, stats)
}

// mergePage resolves catalog entries and inserts facts under the date the
// page displays, which is the provenance that matters when the source
// publishes under a different day than the one requested.
func (h Harvester) mergePage(ctx context.Context, auctionId int, page agroprecios.Page, stats *Stats) {
	if h.store.UpsertAuction(auctionId, page.AuctionName) {
		stats.NewAuctions++
	}

	fecha := timezone.FormatISODate(page.Date)
	for _, row := range page.Rows {
		familyId, created := h.store.ResolveFamily(row.Family)
		if created {
			stats.NewFamilies++
		}
		productId, created := h.store.ResolveProduct(familyId, row.Name, row.Url)
		if created {
			stats.NewProducts++
		}

		for _, cut := range row.Cuts {
			if h.store.InsertPrice(auctionId, fecha, productId, cut.Cut, cut.Price) {
				stats.NewFacts++
			}
		}
	}

	slog.DebugContext(ctx, "merged auction page",
		"auction_id", auctionId, "fecha", fecha, "rows", len(page.Rows))
}
