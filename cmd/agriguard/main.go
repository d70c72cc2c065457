package main

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/mudler/xlog"

	"github.com/dshills/agriguard/internal/cli"
)

func main() {
	// Commands reconfigure the logger once the config is loaded.
	xlog.SetLogger(xlog.NewLogger(xlog.LogLevel("info"), "text"))

	envFiles := []string{".env", "agriguard.env"}
	if home, err := os.UserHomeDir(); err == nil {
		envFiles = append(envFiles, filepath.Join(home, ".config", "agriguard.env"))
	}
	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err != nil {
			continue
		}
		xlog.Debug("loading environment variables from file", "envFile", envFile)
		if err := godotenv.Load(envFile); err != nil {
			xlog.Error("failed to load environment variables from file", "error", err, "envFile", envFile)
		}
	}

	os.Exit(cli.Run())
}
