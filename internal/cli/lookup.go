package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/agriguard/internal/output"
)

var flagExport string

var lookupCmd = &cobra.Command{
	Use:   "lookup <label>...",
	Short: "Look up advisories for one or more pest labels",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		labels := uniqueLabels(args)
		if len(labels) == 0 {
			return fmt.Errorf("at least one non-empty label is required")
		}
		writer, err := output.GetWriter(formatOrDefault())
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

		records, err := svc.LookupAll(ctx, labels)
		if err != nil {
			fail(err)
			return nil
		}
		lookups := make([]output.Lookup, 0, len(labels))
		for _, l := range labels {
			lookups = append(lookups, output.NewLookup(l, records[l]))
		}

		w, closeOut, err := output.Open(flagOut)
		if err != nil {
			fail(err)
			return nil
		}
		defer closeOut()
		if err := writer.WriteLookups(w, lookups); err != nil {
			fail(fmt.Errorf("writing output: %w", err))
			return nil
		}

		if flagExport != "" {
			if err := exportCache(svc.Export, flagExport); err != nil {
				fail(err)
			}
		}
		return nil
	},
}

// uniqueLabels drops blank and repeated labels, keeping first-seen order.
func uniqueLabels(args []string) []string {
	seen := make(map[string]bool, len(args))
	var out []string
	for _, a := range args {
		if strings.TrimSpace(a) == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}

func formatOrDefault() string {
	if flagFormat == "" {
		return "text"
	}
	return flagFormat
}

func exportCache(export func(w io.Writer) error, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	if err := export(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func init() {
	addProviderFlags(lookupCmd)
	addOutputFlags(lookupCmd)
	lookupCmd.Flags().StringVar(&flagExport, "export", "", "Write the advisory cache as JSON to this file")
}
