package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/a11y-remediator/internal/logging"
	"github.com/jonathan/a11y-remediator/internal/observability"
	"github.com/jonathan/a11y-remediator/internal/status"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Report each category's defect partition without remediating",
	Long: `Classifies every candidate node of every enabled category and reports the
partition: nodes missing accessible content are listed with the classifier's
reason, existing accessible content is analyzed and scored for sufficiency,
and skipped nodes are counted. Nothing is generated and the document is
never modified.`,
	RunE: runAudit,
}

var (
	auditHTML string
	auditURL  string
)

func init() {
	auditCmd.Flags().StringVar(&auditHTML, "html", "", "Path to an HTML file to audit (mutually exclusive with --url)")
	auditCmd.Flags().StringVar(&auditURL, "url", "", "Page URL to audit (mutually exclusive with --html)")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if auditHTML == "" && auditURL == "" {
		return fmt.Errorf("either --html or --url must be provided")
	}
	if auditHTML != "" && auditURL != "" {
		return fmt.Errorf("--html and --url are mutually exclusive; provide only one")
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	defer logger.Sync() //nolint:errcheck

	doc, closeDoc, err := openDocument(ctx, cfg, auditHTML, auditURL, logger)
	if err != nil {
		return err
	}
	defer closeDoc() //nolint:errcheck

	runner, client, err := buildRunner(ctx, cfg, status.NewLogSink(logger), logger)
	if err != nil {
		return err
	}
	defer client.Close() //nolint:errcheck

	caps, err := capabilities(cfg.Categories)
	if err != nil {
		return err
	}

	printer := observability.NewPrinter(os.Stdout)
	for _, capability := range caps {
		report, err := runner.Audit(ctx, doc, capability.Category, "")
		if err != nil {
			return fmt.Errorf("%s audit failed: %w", capability.Category, err)
		}
		printer.PrintAuditReport(report)
	}
	return nil
}
