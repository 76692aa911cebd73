package cmd

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/knowledgepin/cli/internal/api"
	"github.com/knowledgepin/cli/pkg/util"
)

// HealthService defines the subset of the API client used by status.
type HealthService interface {
	HealthCheck(ctx context.Context) (api.Health, error)
	BaseURL() string
}

// StatusCmd reports backend health independent of cobra.
type StatusCmd struct {
	svc HealthService
}

type StatusInput struct {
	Output string
}

// statusReport is what `status -o json` prints.
type statusReport struct {
	URL    string `json:"url"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

var statusDisplay = map[string]struct {
	label string
	rgb   pterm.RGB
}{
	"healthy":     {label: "Operational", rgb: pterm.NewRGB(31, 163, 130)},
	"ok":          {label: "Operational", rgb: pterm.NewRGB(31, 163, 130)},
	"degraded":    {label: "Degraded", rgb: pterm.NewRGB(245, 158, 11)},
	"unreachable": {label: "Unreachable", rgb: pterm.NewRGB(239, 68, 68)},
	"unknown":     {label: "Unknown", rgb: pterm.NewRGB(128, 128, 128)},
}

func getStatusDisplay(status string) (string, pterm.RGB) {
	if d, ok := statusDisplay[status]; ok {
		return d.label, d.rgb
	}
	return "Unknown", pterm.NewRGB(128, 128, 128)
}

func coloredDot(rgb pterm.RGB) string {
	return rgb.Sprint("●")
}

func (s StatusCmd) Status(ctx context.Context, in StatusInput) error {
	if err := validateOutput(in.Output); err != nil {
		return err
	}

	report := statusReport{URL: s.svc.BaseURL()}
	health, err := s.svc.HealthCheck(ctx)
	if err != nil {
		report.Status = "unreachable"
		report.Error = CleanedUpAPIError{Err: err}.Error()
	} else {
		report.Status = health.Status
		if report.Status == "" {
			report.Status = "unknown"
		}
	}

	if in.Output == "json" {
		if err := util.PrintPrettyJSON(report); err != nil {
			return err
		}
	} else {
		label, rgb := getStatusDisplay(report.Status)
		pterm.Println()
		pterm.Printf("  %s %s  %s\n", coloredDot(rgb), pterm.Bold.Sprint("KnowledgePin backend"), label)
		pterm.Printf("    %s\n", report.URL)
		pterm.Println()
	}

	if err != nil {
		if in.Output != "json" {
			pterm.Error.Println("Could not reach the KnowledgePin backend. Check --api-url or KNOWLEDGEPIN_API_URL.")
		}
		return fmt.Errorf("health check failed: %w", CleanedUpAPIError{Err: err})
	}
	return nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check that the KnowledgePin backend is reachable",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringP("output", "o", "", "Output format (json)")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	s := StatusCmd{svc: getAPIClient(cmd)}
	return s.Status(cmd.Context(), StatusInput{Output: output})
}
