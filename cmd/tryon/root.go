package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tryonapi/config"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "tryon",
	Short: "Virtual try-on relay client",
	Long: `Sends virtual try-on generations through the relay client, using the
same configuration as the kiosk (environment, .env or config.yaml).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: ./configs/config.yaml or ./config.yaml if present)")
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.LoadFromFile(configFile)
	}
	return config.Load()
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
