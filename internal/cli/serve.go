package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/ChlorophyllA/skin2/internal/config"
	"github.com/ChlorophyllA/skin2/internal/daemon"
	"github.com/ChlorophyllA/skin2/internal/logger"
	"github.com/spf13/cobra"
)

var noWatch bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the skin2 server",
	Long: `Run the skin2 HTTP server in the foreground until SIGINT or SIGTERM.
The config file is watched and a changed logging level is applied live.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not reload the config file on change")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if errs := config.NewValidator().ValidateConfig(cfg); len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}

	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()

	opts := daemon.Options{PIDFile: pidFile}
	if path := config.NewLoader(cfgFile).GetConfigPath(); !noWatch && fileExists(path) {
		opts.ConfigPath = path
	}

	d, err := daemon.New(cfg, log, opts)
	if err != nil {
		return err
	}

	if err := d.Start(); err != nil {
		if stopErr := d.Stop(); stopErr != nil {
			log.Error().Err(stopErr).Msg("Failed to clean up after start failure")
		}
		return err
	}

	return d.Wait()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
