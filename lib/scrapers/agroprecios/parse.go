package agroprecios

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"agroprecios-harvester/lib/htmlutil"
	"agroprecios-harvester/lib/textutil"
	"agroprecios-harvester/lib/timezone"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// the endpoint answers requests for unknown auctions or empty days with an
// error marker instead of a table
var ErrNoData = fmt.Errorf("response carries no auction table")

// the table exists but does not have the shape we know how to read
var ErrMalformedPage = fmt.Errorf("auction table has an unexpected structure")

// CutPrice is one quoted price at a 1-based cut position. positions whose
// cell held the dash placeholder are absent entirely, so a sentinel can never
// leak downstream as a real price.
type CutPrice struct {
	Cut   int
	Price int
}

type ProductRow struct {
	Family string
	Name   string
	// empty when the row links nowhere
	Url  string
	Cuts []CutPrice
}

type Page struct {
	AuctionName string
	// the date the table displays, not necessarily the one requested
	Date time.Time
	Rows []ProductRow
}

var displayedDateRegex = regexp.MustCompile(`(\d{2})-(\d{2})-(\d{4})`)
var productUrlRegex = regexp.MustCompile(`window\.location\s*=\s*'([^']+)'`)

// Parse turns one fetched document into its structured form. `auctionId` and
// `requestedDay` only feed the fallbacks for pages that omit the auction name
// or the displayed date.
func Parse(ctx context.Context, raw []byte, auctionId int, requestedDay time.Time) (Page, error) {
	ctx, span := tracer.Start(ctx, "Parse")
	defer span.End()

	if isNoDataResponse(raw) {
		span.SetStatus(codes.Ok, "no data marker")
		return Page{}, ErrNoData
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(raw))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return Page{}, fmt.Errorf("%w: %s", ErrMalformedPage, err)
	}

	page := Page{
		AuctionName: parseAuctionName(doc, auctionId),
		Date:        parseDisplayedDate(doc, requestedDay),
	}
	page.Rows, err = parseRows(ctx, doc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed table")
		return Page{}, err
	}

	span.SetAttributes(
		attribute.String("auction_name", page.AuctionName),
		attribute.Int("rows", len(page.Rows)),
	)
	return page, nil
}

func isNoDataResponse(raw []byte) bool {
	return bytes.Contains(bytes.ToUpper(raw), []byte("ERROR")) &&
		!bytes.Contains(raw, []byte("tab_pre_pro"))
}

func parseAuctionName(doc *goquery.Document, auctionId int) string {
	name := htmlutil.SelectionText(doc.Find("table.tab_pre_sub td.titNombreizq"))
	if name == "" {
		return fmt.Sprintf("Subasta %d", auctionId)
	}
	return name
}

func parseDisplayedDate(doc *goquery.Document, fallback time.Time) time.Time {
	text := htmlutil.SelectionText(doc.Find("table.tab_pre_sub td.titNombreder"))
	groups := displayedDateRegex.FindStringSubmatch(text)
	if groups == nil {
		return fallback
	}

	day, _ := strconv.Atoi(groups[1])
	month, _ := strconv.Atoi(groups[2])
	year, _ := strconv.Atoi(groups[3])
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, timezone.Location)
}

func parseRows(ctx context.Context, doc *goquery.Document) ([]ProductRow, error) {
	rows := []ProductRow{}
	currentFamily := ""
	var structureErr error

	doc.Find("table.tab_pre_pro tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		if tr.HasClass("familias_subasta") {
			name := htmlutil.SelectionText(tr.Find("td[class^='fam']"))
			if name != "" {
				currentFamily = name
			}
			return true
		}

		productCell := tr.Find("td.pro")
		if productCell.Length() == 0 {
			return true
		}
		if currentFamily == "" {
			structureErr = fmt.Errorf("%w: product row before any family marker", ErrMalformedPage)
			return false
		}

		rows = append(rows, ProductRow{
			Family: currentFamily,
			Name:   htmlutil.SelectionText(productCell),
			Url:    parseProductUrl(tr),
			Cuts:   parseCuts(ctx, tr),
		})
		return true
	})
	if structureErr != nil {
		return nil, structureErr
	}

	return rows, nil
}

func parseProductUrl(tr *goquery.Selection) string {
	onclick := tr.AttrOr("onclick", "")
	if onclick == "" {
		return ""
	}
	groups := productUrlRegex.FindStringSubmatch(onclick)
	if groups == nil {
		return ""
	}
	return groups[1]
}

// cut positions count every cell, including dashed ones, so a quote's
// position stays stable no matter which of its neighbours are empty
func parseCuts(ctx context.Context, tr *goquery.Selection) []CutPrice {
	var cuts []CutPrice
	tr.Find("td.txt").Each(func(i int, cell *goquery.Selection) {
		text := strings.TrimSpace(cell.Text())
		value, ok, err := textutil.ScanPriceCell(text)
		if err != nil {
			slog.WarnContext(ctx, "skipping unreadable price cell", "cut", i+1, "text", text)
			return
		}
		if !ok {
			return
		}
		cuts = append(cuts, CutPrice{Cut: i + 1, Price: value})
	})
	return cuts
}
