package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"sjsage522/outletscraper/config"
	"sjsage522/outletscraper/logger"
	"sjsage522/outletscraper/services/store"
	"sjsage522/outletscraper/services/worker"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "outletscraper",
		Short:         "outletscraper extracts store outlets from a store-locator page.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newScrapeCmd(), newListCmd())
	return root
}

func newScrapeCmd() *cobra.Command {
	var (
		interval time.Duration
		browser  string
	)

	cmd := &cobra.Command{
		Use:   "scrape [--interval <duration>] [--browser chrome|static]",
		Short: "Scrapes the locator page and replaces the stored outlets.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("interval") {
				cfg.ScrapeInterval = interval
			}
			if cmd.Flags().Changed("browser") {
				cfg.Browser = strings.ToLower(browser)
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			log := logger.Default
			log.Info().
				Str("environment", cfg.Environment).
				Str("target", cfg.TargetURL).
				Str("browser", cfg.Browser).
				Dur("interval", cfg.ScrapeInterval).
				Msg("Starting application")

			ctx := cmd.Context()
			services, err := initializeServices(ctx, cfg)
			if err != nil {
				return err
			}
			defer services.Cleanup()

			var guard worker.Guard
			if services.Guard != nil {
				guard = services.Guard
			}

			w := worker.NewWorker(ctx, newScraper(cfg), services.Store, services.Publisher, guard, cfg.ScrapeInterval).
				WithDebugDir(debugDir(cfg))

			err = w.Start()
			if errors.Is(err, worker.ErrBlocked) {
				log.Warn().Msg("Skipped: the last run found no outlets, try again after the block time")
				return nil
			}
			if err != nil {
				return err
			}
			log.Info().Msg("Shutting down gracefully...")
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "Scrape repeatedly with this pause; 0 scrapes once.")
	cmd.Flags().StringVar(&browser, "browser", config.BrowserChrome, "Browser backend: chrome or static.")
	return cmd
}

func debugDir(cfg *config.Config) string {
	if !cfg.DebugArtifacts {
		return ""
	}
	return cfg.DebugDir
}

func newListCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list [--json]",
		Short: "Lists the outlets stored by the last successful scrape.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			st, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			rows, err := st.List(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				return writeOutletsJSON(cmd.OutOrStdout(), rows)
			}
			renderOutlets(cmd.OutOrStdout(), rows)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print outlets as JSON instead of a table.")
	return cmd
}

// renderOutlets prints rows as a table
func renderOutlets(w io.Writer, rows []store.Row) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)

	t.AppendHeader(table.Row{"#", "Name", "Address", "Operating Hours", "Map Link"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.ID, r.Name, r.Address, r.OperatingHours, r.MapLink})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d outlets", len(rows))})
	t.Render()
}

type outletJSON struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	Address        string   `json:"address"`
	OperatingHours string   `json:"operating_hours"`
	MapLink        string   `json:"map_link"`
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
}

func writeOutletsJSON(w io.Writer, rows []store.Row) error {
	out := make([]outletJSON, 0, len(rows))
	for _, r := range rows {
		out = append(out, outletJSON{
			ID:             r.ID,
			Name:           r.Name,
			Address:        r.Address,
			OperatingHours: r.OperatingHours,
			MapLink:        r.MapLink,
			Latitude:       r.Latitude,
			Longitude:      r.Longitude,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
