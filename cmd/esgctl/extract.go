package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fyrsmithlabs/esgmetrics/internal/config"
	"github.com/fyrsmithlabs/esgmetrics/internal/evidence"
	"github.com/fyrsmithlabs/esgmetrics/internal/extraction"
	"github.com/spf13/cobra"
)

func newExtractCmd(g *globalFlags) *cobra.Command {
	var (
		taskID    string
		rulesFile string
		values    []string
	)

	cmd := &cobra.Command{
		Use:   "extract [files...]",
		Short: "Resolve evidence files into observations",
		Long: `Resolve evidence files attached to a task into metric observations.

CSV files are read column by column; text files are matched against the
extraction rules for the task's category. Manual values can be supplied
with --value. Output is the JSON resolution result.

Examples:
  # Extract from a utility bill
  esgctl extract --task-id electricity_consumption bill.txt

  # Extract from a CSV export and a manual reading
  esgctl extract --task-id water_usage readings.csv --value 1200

  # Use rule overrides
  esgctl extract --task-id waste_management --rules rules.toml report.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && len(values) == 0 {
				return fmt.Errorf("no evidence given")
			}

			rules := extraction.DefaultRuleTable()
			if rulesFile != "" {
				path, err := config.ExpandPath(rulesFile)
				if err != nil {
					return err
				}
				if rules, err = extraction.LoadRuleFile(path); err != nil {
					return err
				}
			}

			items, err := fileItems(args)
			if err != nil {
				return err
			}
			for _, v := range values {
				raw, err := json.Marshal(v)
				if err != nil {
					return err
				}
				items = append(items, evidence.Item{Type: evidence.ItemData, Value: raw})
			}

			logger, err := g.logger()
			if err != nil {
				return err
			}
			r := evidence.NewResolver(evidence.WithRules(rules), evidence.WithLogger(logger))
			return printJSON(cmd, r.Resolve(cmd.Context(), taskID, items))
		},
	}

	cmd.Flags().StringVar(&taskID, "task-id", "", "task the evidence is attached to")
	cmd.Flags().StringVar(&rulesFile, "rules", "", "TOML rule override file")
	cmd.Flags().StringArrayVar(&values, "value", nil, "manually entered value (repeatable)")
	_ = cmd.MarkFlagRequired("task-id")
	return cmd
}

// fileItems reads each path into a file evidence item.
func fileItems(paths []string) ([]evidence.Item, error) {
	items := make([]evidence.Item, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", p, err)
		}
		items = append(items, evidence.Item{
			Type:     evidence.ItemFile,
			FileName: filepath.Base(p),
			FileData: base64.StdEncoding.EncodeToString(data),
		})
	}
	return items, nil
}
