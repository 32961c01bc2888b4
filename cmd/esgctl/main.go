// Package main implements the esgctl CLI for manual evidence, aggregation
// and task sync operations.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fyrsmithlabs/esgmetrics/internal/config"
	"github.com/fyrsmithlabs/esgmetrics/internal/logging"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	serverURL  string
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "esgctl",
		Short: "CLI for ESG evidence and task sync operations",
		Long: `esgctl resolves evidence files into metric observations, aggregates
observations into dashboard series, and stages and syncs task edits
against a remote task service.`,
		Version:      version,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&g.serverURL, "server", "http://localhost:9191", "esgmetrics server URL")
	root.PersistentFlags().StringVar(&g.configPath, "config", os.Getenv("ESGMETRICS_CONFIG"), "path to config file")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(
		newExtractCmd(g),
		newAggregateCmd(g),
		newStageCmd(g),
		newSyncCmd(g),
		newHealthCmd(g),
	)
	return root
}

// loadConfig loads the config file and environment overrides.
func (g *globalFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// logger returns a console logger on stderr when --verbose is set.
func (g *globalFlags) logger() (*logging.Logger, error) {
	if !g.verbose {
		return logging.NewNop(), nil
	}
	lc := logging.NewDefaultConfig()
	lc.Level = logging.TraceLevel
	lc.Format = "console"
	lc.Sampling.Enabled = false
	lc.Fields = map[string]string{"service": "esgctl"}
	return logging.NewLogger(lc, nil)
}

// readInput reads the named file, or stdin for "" and "-".
func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "" || name == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", name, err)
	}
	return data, nil
}

// printJSON writes v as indented JSON to the command's output.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
