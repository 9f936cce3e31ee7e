package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/hotelsearch/internal/api"
	"github.com/dshills/hotelsearch/internal/app"
	"github.com/dshills/hotelsearch/internal/config"
	"github.com/dshills/hotelsearch/internal/mcp"
	"github.com/dshills/hotelsearch/internal/seed"
	"github.com/dshills/hotelsearch/internal/storage"
	"github.com/dshills/hotelsearch/pkg/types"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"

	configPath string
	jsonOutput bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hotelsearch",
		Short: "Embedding-indexed hotel search",
		Long: `hotelsearch stores hotel descriptions with vector embeddings and answers
vector and hybrid (vector + keyword) queries over HTTP, MCP, or the command line.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(),
		newMCPCmd(),
		newIngestCmd(),
		newSearchCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOutput {
				printJSON(map[string]interface{}{
					"version":          version,
					"commit":           commit,
					"date":             buildDate,
					"build_mode":       storage.BuildMode,
					"sqlite_driver":    storage.DriverName,
					"vector_extension": storage.VectorExtensionAvailable,
				})
				return
			}
			fmt.Printf("hotelsearch %s (%s, %s)\n", version, commit, buildDate)
			fmt.Printf("Build Mode: %s, Driver: %s, Vector Extension: %v\n",
				storage.BuildMode, storage.DriverName, storage.VectorExtensionAvailable)
		},
	}
}

func newServeCmd() *cobra.Command {
	var addr string
	var ingest bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.Config.HTTP.Addr
			}
			if ingest {
				if _, err := a.Ingest(ctx, nil); err != nil {
					return fmt.Errorf("seed ingestion: %w", err)
				}
			}

			router := api.NewRouter(api.NewHandler(a.Searcher, a, a.Logger))
			return api.ListenAndServe(ctx, addr, router, a.Logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides http.addr)")
	cmd.Flags().BoolVar(&ingest, "ingest", false, "Ingest the built-in hotels before serving")
	return cmd
}

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			return mcp.NewServer(a.Searcher, a, a.Logger).Serve(ctx)
		},
	}
}

func newIngestCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Embed and store hotel records",
		Long:  "Ingest records from --file (YAML or JSON), or the built-in hotel catalogue when no file is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var records []types.Record
			if file != "" {
				loaded, err := seed.Load(file)
				if err != nil {
					return err
				}
				records = loaded
			}

			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Ingest(ctx, records)
			if report != nil {
				printReport(report)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML or JSON file of records")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var skip, top int
	var keywords string

	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "Query the hotel collection",
	}

	vectorCmd := &cobra.Command{
		Use:   "vector <query>",
		Short: "Vector similarity search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.Searcher.VectorSearch(cmd.Context(), args[0], skip, top)
			if err != nil {
				return err
			}
			printResults(results)
			return nil
		},
	}

	hybridCmd := &cobra.Command{
		Use:   "hybrid <query>",
		Short: "Vector search combined with keyword matching",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.Searcher.HybridSearch(cmd.Context(), args[0], keywords, skip, top)
			if err != nil {
				return err
			}
			printResults(results)
			return nil
		},
	}
	hybridCmd.Flags().StringVarP(&keywords, "keywords", "k", "", "Comma-separated keywords")

	for _, c := range []*cobra.Command{vectorCmd, hybridCmd} {
		c.Flags().IntVar(&skip, "skip", 0, "Results to skip")
		c.Flags().IntVar(&top, "top", 10, "Results to return")
	}

	searchCmd.AddCommand(vectorCmd, hybridCmd)
	return searchCmd
}

func loadApp() (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	// stdout is reserved for command output and the MCP transport
	logger, err := app.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}
	return app.New(cfg, logger)
}

func printReport(report *types.IngestionReport) {
	if jsonOutput {
		printJSON(report)
		return
	}
	fmt.Printf("Succeeded: %d\n", len(report.SucceededIDs))
	fmt.Printf("Failed:    %d\n", len(report.Failed))
	for id, reason := range report.Failed {
		fmt.Printf("  %d: %s\n", id, reason)
	}
	if len(report.SkippedIDs) > 0 {
		fmt.Printf("Skipped:   %d\n", len(report.SkippedIDs))
	}
	fmt.Printf("Duration:  %s\n", report.Duration)
}

func printResults(results []types.SearchResult) {
	if jsonOutput {
		printJSON(results)
		return
	}
	if len(results) == 0 {
		fmt.Println("No results.")
		return
	}
	for i, r := range results {
		fmt.Printf("%2d. [%.4f] #%d %s\n    %s\n", i+1, r.Score, r.ID, r.Name, r.Description)
	}
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
