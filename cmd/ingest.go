package cmd

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/veracity-sec/correlator/api/schemas"
	"github.com/veracity-sec/correlator/internal/ingest"
	"github.com/veracity-sec/correlator/internal/observability"
	"github.com/veracity-sec/correlator/internal/service"
	"github.com/veracity-sec/correlator/internal/severity"
)

var (
	ingestFile    string
	ingestScanID  string
	ingestOwner   string
	ingestTrigger string
)

// ingestCmd reads a scanner report and runs it through the correlation
// pipeline: dedup, persistence, audit events and alert rules.
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a scanner report and correlate its observations",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()
		ctx := cmd.Context()

		observations, err := readReport(ingestFile)
		if err != nil {
			return err
		}
		logger.Info("Report parsed", zap.String("file", ingestFile), zap.Int("observations", len(observations)))

		components, err := service.Build(ctx, appCfg, logger)
		if err != nil {
			return err
		}
		defer components.Close()

		trigger := ingestTrigger
		if trigger == "" {
			trigger = appCfg.Engine.DefaultTrigger
		}

		input := make(chan schemas.RawFinding, len(observations))
		for _, obs := range observations {
			obs.ScanID = ingestScanID
			obs.OwnerID = ingestOwner
			components.Assets.Register(schemas.AssetRef{ID: obs.AssetID, Value: obs.AssetName})
			input <- obs
		}
		close(input)

		processor := ingest.NewProcessor(input, components.Correlator, components.Store, logger, ingest.Options{
			BatchSize:     appCfg.Engine.IngestBatchSize,
			FlushInterval: appCfg.Engine.IngestFlushInterval,
			Trigger:       trigger,
		})
		// The input channel is already closed, so Start drains it, flushes
		// and returns.
		processor.Start(ctx)

		stored, err := components.Store.FilterRawFindings(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to list findings: %w", err)
		}
		severity.OrderRawFindings(stored)

		fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d observations into %d raw findings\n", len(observations), len(stored))
		for _, f := range stored {
			fmt.Fprintf(cmd.OutOrStdout(), "  [%s] %s: %s (hash=%s)\n", f.Severity, f.AssetName, f.Title, f.Hash[:12])
		}
		return nil
	},
}

// readReport parses a scanner report: a JSON array of raw-finding
// observations.
func readReport(path string) ([]schemas.RawFinding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report %q: %w", path, err)
	}
	var observations []schemas.RawFinding
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &observations); err != nil {
		return nil, fmt.Errorf("failed to parse report %q: %w", path, err)
	}
	return observations, nil
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestFile, "file", "f", "", "scanner report file (JSON array of observations)")
	ingestCmd.Flags().StringVar(&ingestScanID, "scan", "", "scan identifier to stamp on ingested findings")
	ingestCmd.Flags().StringVar(&ingestOwner, "owner", "", "owner identifier to stamp on ingested findings")
	ingestCmd.Flags().StringVar(&ingestTrigger, "trigger", "", "alert rule trigger label (default from config)")
	_ = ingestCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(ingestCmd)
}
