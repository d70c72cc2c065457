package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/agriguard/internal/advisory"
	"github.com/dshills/agriguard/internal/catalog"
	"github.com/dshills/agriguard/internal/config"
	"github.com/dshills/agriguard/internal/providers"
	"github.com/dshills/agriguard/internal/redact"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Provider and model management",
}

type modelInfo struct {
	Provider string
	Models   []string
}

var knownModels = []modelInfo{
	{
		Provider: "anthropic",
		Models: []string{
			"claude-sonnet-4-20250514",
			"claude-haiku-4-5",
			"claude-opus-4-1",
		},
	},
	{
		Provider: "openai",
		Models: []string{
			"gpt-4o-mini",
			"gpt-4o",
			"gpt-4.1-mini",
		},
	},
	{
		Provider: "gemini",
		Models: []string{
			"gemini-2.5-flash",
			"gemini-2.5-pro",
			"gemini-2.0-flash",
		},
	},
	{
		Provider: "ollama",
		Models: []string{
			"llama3.2",
			"llama3.1",
			"qwen2.5",
			"mistral",
		},
	},
	{
		Provider: "lmstudio",
		Models: []string{
			"qwen2.5-7b-instruct",
		},
	},
	{
		Provider: "localai",
		Models: []string{
			"gpt-4",
		},
	},
	{
		Provider: catalog.FetcherName,
		Models:   []string{"built-in (offline pest dictionary)"},
	},
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known providers and models",
	Run: func(cmd *cobra.Command, args []string) {
		for _, info := range knownModels {
			fmt.Fprintf(os.Stdout, "%s:\n", info.Provider)
			for _, m := range info.Models {
				fmt.Fprintf(os.Stdout, "  - %s\n", m)
			}
			fmt.Fprintln(os.Stdout)
		}
	},
}

// doctorLabel is a pest every provider should know.
const doctorLabel = "aphids"

var providersDoctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Validate provider credentials and response format",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(buildOverrides())
		if err != nil {
			return err
		}

		providerName := cfg.Provider
		fmt.Fprintf(os.Stdout, "Checking %s...\n", providerName)

		if providerName == catalog.FetcherName {
			c, err := loadCatalog(cfg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
				exitCode = ExitRuntimeError
				return nil
			}
			fmt.Fprintf(os.Stdout, "OK: catalog has %d pests\n", c.Len())
			return nil
		}

		p, err := providers.New(providerName, cfg.Model)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
			exitCode = ExitAuthError
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// A real advisory request checks credentials and the JSON contract together.
		fetcher := advisory.NewLLMFetcher(p, nil, cfg.MaxTokens)
		rec, err := fetcher.FetchAdvisory(ctx, doctorLabel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FAIL: %s\n", redact.Error(err))
			if providers.IsAuthError(err) {
				exitCode = ExitAuthError
			} else {
				exitCode = ExitRuntimeError
			}
			return nil
		}

		fmt.Fprintf(os.Stdout, "OK: %s (%s) is configured and responding\n", providerName, cfg.Model)
		fmt.Fprintf(os.Stdout, "    %s -> %s (%s)\n", doctorLabel, rec.PrimaryTreatment, rec.Severity)
		return nil
	},
}

func init() {
	providersCmd.AddCommand(providersListCmd)
	providersCmd.AddCommand(providersDoctorCmd)
	providersDoctorCmd.Flags().StringVar(&flagProvider, "provider", "", "Provider to check")
	providersDoctorCmd.Flags().StringVar(&flagModel, "model", "", "Model to check")
}
