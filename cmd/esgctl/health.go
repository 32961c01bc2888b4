package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// healthResponse matches internal/http HealthResponse.
type healthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services,omitempty"`
}

func newHealthCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check esgmetrics server health",
		Long: `Check the health status of the esgmetrics HTTP server.

Examples:
  # Check health
  esgctl health

  # Check health on a different server
  esgctl health --server http://localhost:8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			url := fmt.Sprintf("%s/health", g.serverURL)

			client := &http.Client{Timeout: 5 * time.Second}
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
			if err != nil {
				return fmt.Errorf("failed to create request: %w", err)
			}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("failed to connect to %s: %w", url, err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, err)
			}

			var health healthResponse
			if err := json.Unmarshal(body, &health); err != nil {
				if resp.StatusCode != http.StatusOK {
					return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
				}
				return fmt.Errorf("failed to decode response: %w", err)
			}

			cmd.Printf("Server Status: %s\n", health.Status)
			cmd.Printf("Server URL: %s\n", g.serverURL)
			for name, status := range health.Services {
				cmd.Printf("  %s: %s\n", name, status)
			}

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server returned status %d", resp.StatusCode)
			}
			return nil
		},
	}
}
