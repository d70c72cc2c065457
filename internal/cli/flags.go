package cli

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"

	"github.com/mudler/xlog"
	"github.com/spf13/cobra"

	"github.com/dshills/agriguard/internal/advisory"
	"github.com/dshills/agriguard/internal/catalog"
	"github.com/dshills/agriguard/internal/config"
	"github.com/dshills/agriguard/internal/providers"
	"github.com/dshills/agriguard/internal/redact"
)

// Shared flags
var (
	flagProvider        string
	flagModel           string
	flagFallbackPolicy  string
	flagCatalogFallback bool
	flagCatalogFile     string
	flagPromptFile      string
	flagTimeout         int
	flagMinConfidence   float64
	flagLogLevel        string
	flagFormat          string
	flagOut             string
)

func addProviderFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagProvider, "provider", "", "Advisory provider (anthropic, openai, gemini, ollama, lmstudio, localai, catalog)")
	cmd.Flags().StringVar(&flagModel, "model", "", "Model name")
	cmd.Flags().StringVar(&flagFallbackPolicy, "fallback-policy", "", "Store fallback advisories (cache) or ask again next time (retry)")
	cmd.Flags().BoolVar(&flagCatalogFallback, "catalog-fallback", false, "Answer from the offline catalog when the provider fails")
	cmd.Flags().StringVar(&flagCatalogFile, "catalog-file", "", "Pest catalog YAML file (default: built-in)")
	cmd.Flags().StringVar(&flagPromptFile, "prompt-file", "", "User prompt template file")
	cmd.Flags().IntVar(&flagTimeout, "timeout", 0, "Provider timeout in seconds")
	cmd.Flags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagFormat, "format", "", "Output format (text, json)")
	cmd.Flags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
}

func buildOverrides() map[string]string {
	m := make(map[string]string)
	if flagProvider != "" {
		m["provider"] = flagProvider
	}
	if flagModel != "" {
		m["model"] = flagModel
	}
	if flagFallbackPolicy != "" {
		m["fallbackPolicy"] = flagFallbackPolicy
	}
	if flagCatalogFallback {
		m["catalogFallback"] = "true"
	}
	if flagCatalogFile != "" {
		m["catalogFile"] = flagCatalogFile
	}
	if flagPromptFile != "" {
		m["promptFile"] = flagPromptFile
	}
	if flagTimeout > 0 {
		m["providerTimeoutSeconds"] = strconv.Itoa(flagTimeout)
	}
	if flagMinConfidence > 0 {
		m["minConfidence"] = strconv.FormatFloat(flagMinConfidence, 'f', -1, 64)
	}
	if flagLogLevel != "" {
		m["log.level"] = flagLogLevel
	}
	return m
}

// loadConfig merges the configuration and applies its logging settings.
func loadConfig() (config.Config, error) {
	return loadConfigWith(buildOverrides())
}

func loadConfigWith(overrides map[string]string) (config.Config, error) {
	cfg, err := config.Load(overrides)
	if err != nil {
		return config.Config{}, err
	}
	xlog.SetLogger(xlog.NewLogger(xlog.LogLevel(cfg.Log.Level), cfg.Log.Format))
	return cfg, nil
}

// errUnknownProvider is a usage error: the provider name is not recognised.
var errUnknownProvider = errors.New("unknown provider")

// errProviderSetup marks failures to construct a provider client, usually
// a missing API key.
var errProviderSetup = errors.New("provider setup failed")

func loadCatalog(cfg config.Config) (*catalog.Catalog, error) {
	if cfg.CatalogFile == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(cfg.CatalogFile)
}

func knownProvider(name string) bool {
	return name == catalog.FetcherName || name == "google" || slices.Contains(providers.Names(), name)
}

// buildFetcher assembles the knowledge source described by cfg.
func buildFetcher(cfg config.Config) (advisory.Fetcher, error) {
	if !knownProvider(cfg.Provider) {
		return nil, fmt.Errorf("%w: %s", errUnknownProvider, cfg.Provider)
	}
	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Provider == catalog.FetcherName {
		return cat, nil
	}

	completer, err := providers.New(cfg.Provider, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errProviderSetup, err)
	}
	prompt, err := advisory.LoadPrompt(cfg.PromptFile)
	if err != nil {
		return nil, err
	}
	llm := advisory.NewLLMFetcher(completer, prompt, cfg.MaxTokens)
	if cfg.CatalogFallback {
		return advisory.Chain{llm, cat}, nil
	}
	return llm, nil
}

func buildService(cfg config.Config, obs advisory.Observer) (*advisory.Service, error) {
	fetcher, err := buildFetcher(cfg)
	if err != nil {
		return nil, err
	}
	policy, err := advisory.ParseFallbackPolicy(cfg.FallbackPolicy)
	if err != nil {
		return nil, err
	}
	xlog.Debug("advisory service configured",
		"fetcher", fetcher.Name(), "model", cfg.Model, "fallbackPolicy", policy)
	return advisory.NewService(fetcher, advisory.Options{
		Policy:      policy,
		Timeout:     cfg.ProviderTimeout(),
		Concurrency: cfg.LookupConcurrency,
		Observer:    obs,
	}), nil
}

// setupFailed hands usage errors back to cobra and records the rest.
func setupFailed(err error) error {
	if errors.Is(err, errUnknownProvider) {
		return err
	}
	fail(err)
	return nil
}

// fail reports err on stderr and records the matching exit code.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", redact.Error(err))
	if errors.Is(err, errProviderSetup) || providers.IsAuthError(err) {
		exitCode = ExitAuthError
		return
	}
	exitCode = ExitRuntimeError
}
