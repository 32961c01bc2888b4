package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/fyrsmithlabs/esgmetrics/internal/config"
	httpserver "github.com/fyrsmithlabs/esgmetrics/internal/http"
	"github.com/fyrsmithlabs/esgmetrics/internal/kvstore"
	"github.com/fyrsmithlabs/esgmetrics/internal/reconcile"
	"github.com/spf13/cobra"
)

func newStageCmd(g *globalFlags) *cobra.Command {
	var tenantID string

	cmd := &cobra.Command{
		Use:   "stage [file]",
		Short: "Stage task edits for a tenant",
		Long: `Stage a JSON array of task edits for later sync. Tasks are merged into
the tenant's staging by id.

Staging lives in the configured store; with the in-memory store it only
lasts for the command, so use "esgctl sync --tasks" instead.

Examples:
  # Stage edits from a file
  esgctl stage --tenant acme tasks.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			tasks, err := readTasks(cmd, name)
			if err != nil {
				return err
			}

			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Store.Provider == config.StoreMemory {
				cmd.PrintErrln("warning: in-memory store; staged tasks are dropped on exit")
			}

			store, err := kvstore.Open(cmd.Context(), cfg.Store)
			if err != nil {
				return err
			}
			defer store.Close()

			logger, err := g.logger()
			if err != nil {
				return err
			}
			r, err := reconcile.NewReconciler(store, nil, reconcile.WithLogger(logger))
			if err != nil {
				return err
			}
			staged, err := r.Stage(cmd.Context(), tenantID, tasks)
			if err != nil {
				return err
			}
			cmd.Printf("Staged %d task(s) for %s\n", len(staged), tenantID)
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant id")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func newSyncCmd(g *globalFlags) *cobra.Command {
	var (
		tenantID     string
		tasksFile    string
		remoteURL    string
		clearStaging bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync staged task edits to the remote",
		Long: `Submit a tenant's staged task edits to the remote task service in one
batch. Staging is cleared only with --clear and only when the remote
reports no errors.

The remote defaults to remote.base_url from the config file.

Examples:
  # Sync and clear staging
  esgctl sync --tenant acme --clear

  # Stage from a file and sync in one step
  esgctl sync --tenant acme --tasks tasks.json --remote https://tasks.example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}

			base := remoteURL
			if base == "" {
				base = cfg.Remote.BaseURL
			}
			if base == "" {
				return errors.New("no remote configured: set remote.base_url or --remote")
			}
			remote, err := reconcile.NewHTTPRemote(base,
				reconcile.WithToken(cfg.Remote.Token.Value()),
				reconcile.WithTimeout(cfg.Remote.Timeout.Duration()),
				reconcile.WithHTTPClient(&http.Client{Transport: tenantTransport{tenant: tenantID}}),
			)
			if err != nil {
				return err
			}

			store, err := kvstore.Open(cmd.Context(), cfg.Store)
			if err != nil {
				return err
			}
			defer store.Close()

			logger, err := g.logger()
			if err != nil {
				return err
			}
			r, err := reconcile.NewReconciler(store, remote, reconcile.WithLogger(logger))
			if err != nil {
				return err
			}

			if tasksFile != "" {
				tasks, err := readTasks(cmd, tasksFile)
				if err != nil {
					return err
				}
				if _, err := r.Stage(cmd.Context(), tenantID, tasks); err != nil {
					return err
				}
			}

			out := r.Reconcile(cmd.Context(), tenantID, reconcile.Options{ClearLocalStorage: clearStaging})
			if err := printJSON(cmd, out); err != nil {
				return err
			}
			if !out.Success {
				return errors.New(out.Message)
			}
			if out.Errors > 0 {
				return fmt.Errorf("remote reported %d record error(s); staging preserved", out.Errors)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant id")
	cmd.Flags().StringVar(&tasksFile, "tasks", "", "stage tasks from this JSON file first")
	cmd.Flags().StringVar(&remoteURL, "remote", "", "remote base URL (overrides config)")
	cmd.Flags().BoolVar(&clearStaging, "clear", false, "clear staging after a fully successful sync")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

// readTasks decodes a JSON array of staged tasks.
func readTasks(cmd *cobra.Command, name string) ([]reconcile.StagedTask, error) {
	data, err := readInput(cmd, name)
	if err != nil {
		return nil, err
	}
	var tasks []reconcile.StagedTask
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}
	return tasks, nil
}

// tenantTransport names the tenant on every request so an esgmetrics
// server can route the batch.
type tenantTransport struct {
	tenant string
}

func (t tenantTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set(httpserver.TenantHeader, t.tenant)
	return http.DefaultTransport.RoundTrip(req)
}
