package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/dshills/agriguard/internal/detection"
	"github.com/dshills/agriguard/internal/output"
)

var reportCmd = &cobra.Command{
	Use:   "report [batch.json]",
	Short: "Resolve a detection batch into a report",
	Long: "Reads a detection batch ({\"detections\":[{\"label\":...,\"confidence\":...}]}) " +
		"from a file, or from stdin when no file or \"-\" is given, and prints the " +
		"per-label counts, advisories and the recommended treatment.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		writer, err := output.GetWriter(formatOrDefault())
		if err != nil {
			return err
		}
		batch, err := readBatch(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		svc, err := buildService(cfg, nil)
		if err != nil {
			return setupFailed(err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		report, err := detection.Resolve(ctx, svc, batch, cfg.MinConfidence)
		if err != nil {
			fail(err)
			return nil
		}

		w, closeOut, err := output.Open(flagOut)
		if err != nil {
			fail(err)
			return nil
		}
		defer closeOut()
		if err := writer.WriteReport(w, report); err != nil {
			fail(fmt.Errorf("writing output: %w", err))
		}
		return nil
	},
}

func readBatch(stdin io.Reader, args []string) (detection.Batch, error) {
	var data []byte
	var err error
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return detection.Batch{}, fmt.Errorf("reading detection batch: %w", err)
	}

	var batch detection.Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return detection.Batch{}, fmt.Errorf("parsing detection batch: %w", err)
	}
	if err := batch.Validate(); err != nil {
		return detection.Batch{}, err
	}
	return batch, nil
}

func init() {
	addProviderFlags(reportCmd)
	addOutputFlags(reportCmd)
	reportCmd.Flags().Float64Var(&flagMinConfidence, "min-confidence", 0, "Ignore detections below this confidence")
}
