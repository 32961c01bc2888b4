package main

import (
	"encoding/json"
	"fmt"

	"github.com/fyrsmithlabs/esgmetrics/internal/aggregate"
	"github.com/fyrsmithlabs/esgmetrics/internal/extraction"
	"github.com/spf13/cobra"
)

func newAggregateCmd(_ *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "aggregate [file]",
		Short: "Aggregate observations into metric series",
		Long: `Aggregate a JSON array of observations, or the output of "esgctl extract",
into per-metric dashboard series.

Examples:
  # Aggregate a file
  esgctl aggregate observations.json

  # Pipe extraction straight into aggregation
  esgctl extract --task-id water_usage readings.csv | esgctl aggregate -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			data, err := readInput(cmd, name)
			if err != nil {
				return err
			}
			observations, err := decodeObservations(data)
			if err != nil {
				return err
			}
			return printJSON(cmd, aggregate.Aggregate(observations))
		},
	}
}

// decodeObservations accepts a bare observation array or an object with an
// "observations" field.
func decodeObservations(data []byte) ([]extraction.Observation, error) {
	var list []extraction.Observation
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Observations []extraction.Observation `json:"observations"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode observations: %w", err)
	}
	return wrapped.Observations, nil
}
