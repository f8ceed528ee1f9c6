package commands

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"agroprecios-harvester/lib/configutil"
	"agroprecios-harvester/lib/restyutil"
	"agroprecios-harvester/lib/scrapers/agroprecios"
	"agroprecios-harvester/lib/telemetry"
	"agroprecios-harvester/lib/timezone"
	"agroprecios-harvester/lib/util/serviceutil"
	"agroprecios-harvester/services/harvester"
	"agroprecios-harvester/services/harvester/store"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type Config struct {
	// endpoint override, defaults to the public agroprecios table endpoint
	BaseUrl string `json:"base_url"`
	DataDir string `json:"data_dir"`
	DelayMs int    `json:"delay_ms"`
	// when set, every raw HTTP exchange is dumped into this directory
	DumpHttpDir string `json:"dump_http_dir"`
}

var lastdate *string
var maxdays *int
var maxsubastas *int
var dataDir *string
var verbose *bool

func init() {
	lastdate = harvestCmd.Flags().String("lastdate", "", "Most recent day to query, dd/mm/yyyy. Defaults to today.")
	maxdays = harvestCmd.Flags().Int("maxdays", 1, "Days to walk back from lastdate, including it.")
	maxsubastas = harvestCmd.Flags().Int("maxsubastas", 10, "Auction ids 1..maxsubastas are queried.")
	dataDir = harvestCmd.Flags().String("data", "", "Directory holding the JSON tables. Overrides the config.")
	verbose = harvestCmd.Flags().BoolP("verbose", "v", false, "Log at debug level.")
	rootCmd.AddCommand(harvestCmd)
}

func resolveLastDate(flag string) (time.Time, error) {
	if flag == "" {
		now := timezone.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, timezone.Location), nil
	}
	return timezone.ParseQueryDate(flag)
}

var harvestCmd = &cobra.Command{
	Use:   "harvest [--lastdate dd/mm/yyyy] [--maxdays N] [--maxsubastas N] [--data <dir>]",
	Short: "Fetches auction price tables for a date/auction range and merges them into the JSON tables.",
	Run: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)

		ctx := cmd.Context()
		err := telemetry.SetupFromEnv(ctx, "agroprecios-harvester")
		if err != nil && !os.IsNotExist(err) {
			serviceutil.Fatal("failed to setup telemetry", err)
		}
		if err == nil {
			defer telemetry.Shutdown(ctx)
			telemetry.InstrumentPerfStats(ctx)
		}

		if *maxdays < 1 {
			serviceutil.Fatal("invalid flags", fmt.Errorf("maxdays must be >= 1"))
		}
		if *maxsubastas < 1 {
			serviceutil.Fatal("invalid flags", fmt.Errorf("maxsubastas must be >= 1"))
		}
		lastDate, err := resolveLastDate(*lastdate)
		if err != nil {
			serviceutil.Fatal("invalid --lastdate, expected dd/mm/yyyy", err)
		}

		cfg, err := configutil.ReadConfig[Config]("config.json5")
		if err != nil && !os.IsNotExist(err) {
			serviceutil.Fatal("failed to read config", err)
		}
		if *dataDir != "" {
			cfg.DataDir = *dataDir
		}
		if cfg.DataDir == "" {
			cfg.DataDir = "data"
		}

		st, err := store.Open(cfg.DataDir)
		if err != nil {
			serviceutil.Fatal("failed to open JSON tables", err)
		}

		var instrumentOutput restyutil.InstrumentOutput
		if cfg.DumpHttpDir != "" {
			instrumentOutput = restyutil.NewFilesystemOutput(cfg.DumpHttpDir)
		}
		client, err := agroprecios.NewClient(agroprecios.ClientOptions{
			BaseUrl:          cfg.BaseUrl,
			Delay:            time.Duration(cfg.DelayMs) * time.Millisecond,
			InstrumentOutput: instrumentOutput,
		})
		if err != nil {
			serviceutil.Fatal("failed to initialize agroprecios client", err)
		}

		slog.Info("harvesting",
			"lastdate", timezone.FormatQueryDate(lastDate),
			"maxdays", *maxdays,
			"maxsubastas", *maxsubastas,
			"data", cfg.DataDir)

		t1 := time.Now()
		stats, err := harvester.New(client, st).Run(ctx, harvester.RunOptions{
			LastDate:    lastDate,
			MaxDays:     *maxdays,
			MaxAuctions: *maxsubastas,
		})
		if err != nil {
			serviceutil.Fatal("failed to save JSON tables", err)
		}
		elapsed := time.Since(t1)

		renderStats(stats, elapsed)
		slog.Info("harvest finished",
			"pairs", stats.PairsAttempted,
			"new_facts", stats.NewFacts,
			"seconds", elapsed.Seconds(),
			"data", cfg.DataDir)
	},
}

func renderStats(stats harvester.Stats, elapsed time.Duration) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Metric", "Value"})

	t.AppendRow(table.Row{"pairs attempted", stats.PairsAttempted})
	t.AppendRow(table.Row{"pairs with data", stats.PairsWithData})
	t.AppendRow(table.Row{"pairs without data", stats.PairsNoData})
	t.AppendRow(table.Row{"fetch failures", stats.FetchFailures})
	t.AppendRow(table.Row{"malformed pages", stats.MalformedPages})
	t.AppendRow(table.Row{"new auctions", stats.NewAuctions})
	t.AppendRow(table.Row{"new families", stats.NewFamilies})
	t.AppendRow(table.Row{"new products", stats.NewProducts})
	t.AppendRow(table.Row{"new price facts", stats.NewFacts})
	t.AppendRow(table.Row{"elapsed", elapsed.Round(time.Millisecond).String()})

	t.SetStyle(table.StyleRounded)
	t.Render()
}
