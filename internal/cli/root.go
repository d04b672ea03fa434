// Package cli wires the claimgate commands together.
package cli

import (
	"fmt"
	"os"

	"github.com/ppiankov/claimgate/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "claimgate",
	Short: "Claimgate - guarded LLM adjudication for insurance claims",
	Long: `Claimgate adjudicates insurance claims with a tool-calling LLM agent
behind a prompt-injection filter.

Each claim is screened for injection attempts, then reasoned over with
access to the policy document, claim metadata, and vision-based checks
of supporting images. Every final answer is sanitized before it leaves
the system and collapses to APPROVE, DENY, or UNCERTAIN.

The evaluate command replays a labeled dataset against a running
instance and reports accuracy with a confusion matrix.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number and build information for Claimgate.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("claimgate v0.1.0")
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.claimgate/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(home + "/.claimgate")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match CLAIMGATE_*
	viper.SetEnvPrefix("CLAIMGATE")
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig merges the config file and environment over the defaults.
// API keys come from the environment only.
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}

	cfg.Agent.APIKey = os.Getenv("OPENAI_API_KEY")
	if cfg.Storage.AccessKey == "" {
		cfg.Storage.AccessKey = os.Getenv("MINIO_ACCESS_KEY")
	}
	if cfg.Storage.SecretKey == "" {
		cfg.Storage.SecretKey = os.Getenv("MINIO_SECRET_KEY")
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = os.Getenv("CLAIMGATE_DATABASE_DSN")
	}
	return cfg, nil
}
