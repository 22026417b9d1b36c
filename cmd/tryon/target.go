package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tryonapi/logging"
	"tryonapi/tryon"
)

var targetOutput string

// targetReport is what `tryon target` prints.
type targetReport struct {
	Kind     string `yaml:"kind" json:"kind"`
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	Model    string `yaml:"model" json:"model"`
	APIKey   string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
}

var targetCmd = &cobra.Command{
	Use:   "target",
	Short: "Show where generation requests would be sent",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		target := tryon.ResolveTarget(cfg.Client)

		report := targetReport{
			Kind:     target.Kind().String(),
			Endpoint: target.Endpoint(),
			Model:    cfg.Client.ModelID,
		}
		if cfg.Client.APIKey != "" {
			report.APIKey = logging.MaskSecret(cfg.Client.APIKey)
		}
		return writeTargetReport(cmd.OutOrStdout(), report, targetOutput)
	},
}

func init() {
	rootCmd.AddCommand(targetCmd)
	targetCmd.Flags().StringVarP(&targetOutput, "output", "o", "text", "Output format: text, json or yaml")
}

func writeTargetReport(out io.Writer, report targetReport, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(report)
	case "text", "":
		fmt.Fprintf(out, "kind:     %s\n", report.Kind)
		fmt.Fprintf(out, "endpoint: %s\n", report.Endpoint)
		fmt.Fprintf(out, "model:    %s\n", report.Model)
		if report.APIKey == "" {
			fmt.Fprintln(out, "api key:  (not set)")
		} else {
			fmt.Fprintf(out, "api key:  %s\n", report.APIKey)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
