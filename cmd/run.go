package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/property-cli/internal/fetcher"
	"github.com/sells-group/property-cli/internal/pipeline"
	"github.com/sells-group/property-cli/internal/store"
)

var runFlags struct {
	apiLimit    int
	scrapeLimit int
	format      string
	output      string
	noAPI       bool
	noScrape    bool
	strict      bool
	strategy    string
	xlsxPath    string
	shapePath   string
	ftpRollURL  string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full reconciliation pipeline",
	Long:  "Fetches both sources, validates, cleans, merges across sources, deduplicates, quality-scores, and exports the result.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		wake, orange, err := buildSources()
		if err != nil {
			return err
		}

		st := openStore(ctx)
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		p, err := pipeline.New(cfg, wake, orange, st)
		if err != nil {
			return err
		}

		stats, err := p.Run(ctx, pipeline.Options{
			APILimit:      runFlags.apiLimit,
			ScrapeLimit:   runFlags.scrapeLimit,
			Format:        runFlags.format,
			OutputPath:    runFlags.output,
			SkipAPI:       runFlags.noAPI,
			SkipScrape:    runFlags.noScrape,
			Strict:        runFlags.strict,
			MergeStrategy: runFlags.strategy,
		})
		if err != nil {
			return eris.Wrap(err, "run")
		}

		printRunSummary(stats)
		return nil
	},
}

// buildSources wires the two pipeline inputs. Local-file flags substitute
// for the remote sources, which keeps reruns cheap while tuning.
func buildSources() (fetcher.Source, fetcher.Source, error) {
	var wake, orange fetcher.Source

	client := fetcher.NewHTTPClient(fetcher.HTTPOptions{
		UserAgent:    cfg.Fetch.UserAgent,
		Timeout:      time.Duration(cfg.Wake.TimeoutSecs) * time.Second,
		MaxRetries:   cfg.Fetch.MaxRetries,
		RateLimiters: fetcher.DefaultRateLimiters(),
	})

	switch {
	case runFlags.xlsxPath != "":
		wake = fetcher.NewXLSXSource(runFlags.xlsxPath, "", fetcher.SourceWake)
	case runFlags.ftpRollURL != "":
		wake = fetcher.NewFTPRollSource(runFlags.ftpRollURL, fetcher.SourceWake,
			time.Duration(cfg.Wake.TimeoutSecs)*time.Second)
	default:
		wake = fetcher.NewWakeFetcher(client, cfg.Wake)
	}

	if runFlags.shapePath != "" {
		orange = fetcher.NewShapefileSource(runFlags.shapePath, "Orange", fetcher.SourceOrange)
	} else if !runFlags.noScrape {
		table, err := fetcher.LoadSelectors(cfg.Orange.SelectorsPath)
		if err != nil {
			return nil, nil, eris.Wrap(err, "run: load selectors")
		}
		orange, err = fetcher.NewOrangeFetcher(client, cfg.Orange, table)
		if err != nil {
			return nil, nil, eris.Wrap(err, "run: build orange fetcher")
		}
	}

	return wake, orange, nil
}

// openStore opens run persistence; failures degrade to an unpersisted run.
func openStore(ctx context.Context) store.Store {
	st, err := initStore(ctx)
	if err != nil {
		zap.L().Warn("run: store unavailable, continuing without persistence", zap.Error(err))
		return nil
	}
	if err := st.Migrate(ctx); err != nil {
		zap.L().Warn("run: store migration failed, continuing without persistence", zap.Error(err))
		st.Close() //nolint:errcheck
		return nil
	}
	return st
}

func printRunSummary(stats *pipeline.Statistics) {
	fmt.Fprintf(os.Stdout, "Run %s complete in %.1fs\n", stats.RunID, stats.DurationSecs)
	fmt.Fprintf(os.Stdout, "  Wake County:   %d fetched, %d valid\n", stats.Wake.Fetched, stats.Wake.Valid)
	fmt.Fprintf(os.Stdout, "  Orange County: %d fetched, %d valid\n", stats.Orange.Fetched, stats.Orange.Valid)
	fmt.Fprintf(os.Stdout, "  Cross-source merges: %d\n", stats.Merge.Merged)
	fmt.Fprintf(os.Stdout, "  Duplicate groups:    %d\n", stats.Duplicates.Groups)
	fmt.Fprintf(os.Stdout, "  Final records:       %d (High %d / Medium %d / Low %d)\n",
		stats.FinalRecords, stats.Quality["High"], stats.Quality["Medium"], stats.Quality["Low"])
	fmt.Fprintf(os.Stdout, "  Output: %s\n", stats.OutputPath)
}

func init() {
	runCmd.Flags().IntVar(&runFlags.apiLimit, "api-limit", 0, "max records to fetch from the Wake County API (default from config)")
	runCmd.Flags().IntVar(&runFlags.scrapeLimit, "scrape-limit", 0, "max records to scrape from Orange County (default from config)")
	runCmd.Flags().StringVar(&runFlags.format, "format", "", "output format: xlsx, csv, or json (default from config)")
	runCmd.Flags().StringVar(&runFlags.output, "output", "", "output file path (default generated under the output dir)")
	runCmd.Flags().BoolVar(&runFlags.noAPI, "no-api", false, "skip the Wake County API fetch")
	runCmd.Flags().BoolVar(&runFlags.noScrape, "no-scrape", false, "skip the Orange County scrape")
	runCmd.Flags().BoolVar(&runFlags.strict, "strict", false, "reject records with any validation error, not just missing required fields")
	runCmd.Flags().StringVar(&runFlags.strategy, "merge-strategy", "", "duplicate merge strategy: first, last, or most_complete (default from config)")
	runCmd.Flags().StringVar(&runFlags.xlsxPath, "xlsx", "", "use a local spreadsheet in place of the Wake County API")
	runCmd.Flags().StringVar(&runFlags.ftpRollURL, "ftp-roll", "", "use an ftp:// assessment-roll CSV in place of the Wake County API")
	runCmd.Flags().StringVar(&runFlags.shapePath, "shapefile", "", "use a local parcel shapefile in place of the Orange County scrape")
	rootCmd.AddCommand(runCmd)
}
