package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mr1hm/disasterwatch/internal/config"
	"github.com/mr1hm/disasterwatch/internal/logging"
	"github.com/mr1hm/disasterwatch/internal/repository"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "alertctl",
	Short: "Operator tools for the disaster alert dispatcher",
	Long: "Runs the alert matcher and dispatcher outside the server, against the\n" +
		"configured database and notification providers.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile == "" {
			return nil
		}
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load before reading config")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// session is what every command needs from the environment.
type session struct {
	cfg    *config.Config
	logger *slog.Logger
	store  repository.Store
}

// openSession loads config and opens the store. Logs go to stderr so stdout
// stays readable.
func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger := logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, "text")

	store, err := repository.Open(cfg.DB, nil)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", cfg.DB.Driver, err)
	}
	return &session{cfg: cfg, logger: logger, store: store}, nil
}
