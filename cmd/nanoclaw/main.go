package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/activeobjects-uk/nanoclaw/internal/config"
)

var (
	version = "0.1.0"
	cfgFile string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nanoclaw",
		Short: "Linear channel for the nanoclaw assistant",
		Long: `nanoclaw watches the Linear issues assigned to the assistant's account and
forwards new assignments and comments to the assistant as chat messages.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.nanoclaw/config.yaml)")

	rootCmd.AddCommand(
		newRunCmd(),
		newMCPCmd(),
		newIDsCmd(),
		newRegisterCmd(),
		newStateCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show nanoclaw version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "nanoclaw v%s\n", version)
		},
	}
}

// loadConfig reads .env, the config file and environment overrides.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	configPath := cfgFile
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
