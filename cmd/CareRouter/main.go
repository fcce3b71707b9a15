// Command CareRouter runs the multi-agent healthcare assistant, either as an HTTP and
// WhatsApp service or as an interactive terminal chat.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/BTreeMap/CareRouter/internal/config"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "CareRouter",
	Short: "CareRouter - multi-agent healthcare assistant",
	Long: `CareRouter routes each patient message to one of several specialised assistants
(symptom checking, scheduling, pharmacy, insurance, care plans, lab tests) and answers
with a structured envelope of reply text, cards and suggested follow-ups.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (overrides $CARE_CONFIG_FILE)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides $CARE_LOG_LEVEL)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "CareRouter: %v\n", err)
		os.Exit(1)
	}
}

// initializeLogger sets up structured logging at the configured level
func initializeLogger(w io.Writer, level string) error {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return nil
}

// loadConfig resolves the configuration and applies the persistent flags on top.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}
