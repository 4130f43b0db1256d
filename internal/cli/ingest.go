package cli

import (
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwizi/pmt-assistant/internal/app"
	"github.com/dwizi/pmt-assistant/internal/config"
	"github.com/dwizi/pmt-assistant/internal/ingest"
)

func newIngestCommand(logger *slog.Logger) *cobra.Command {
	var (
		dir   string
		plain bool
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index the documents directory into the vector store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			if strings.TrimSpace(dir) == "" {
				dir = cfg.DocumentsDir
			}
			components, err := app.Build(cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			report, err := components.Indexer.IndexDir(cmd.Context(), dir)
			if err != nil {
				return err
			}
			printReport(newPrinter(cmd.OutOrStdout(), plain), report)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "documents directory (defaults to PMT_ASSISTANT_DOCUMENTS_DIR)")
	cmd.Flags().BoolVar(&plain, "plain", false, "disable colored output")
	return cmd
}

func printReport(p *printer, report ingest.Report) {
	p.ok("Loaded %d documents into vector store", report.Documents)
	p.info("indexed %d, unchanged %d, removed %d, chunks %d in %s",
		report.Indexed, report.Unchanged, report.Removed, report.Chunks, report.Duration.Round(time.Millisecond))
	for _, path := range report.Failed {
		p.failure("failed: %s", path)
	}
}
