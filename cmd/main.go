package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cli/browser"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Zachdehooge/lsr-dashboard/internal/config"
	"github.com/Zachdehooge/lsr-dashboard/internal/logging"
	"github.com/Zachdehooge/lsr-dashboard/internal/persist"
	"github.com/Zachdehooge/lsr-dashboard/internal/server"
	"github.com/Zachdehooge/lsr-dashboard/internal/state"
)

const (
	defaultAddr     = ":8080"
	defaultInterval = 60
	minInterval     = 30
)

var (
	configPath string
	verbose    bool
	logLevel   string
	logFormat  string
	interval   int
	seconds    int64

	addr        string
	openBrowser bool
	dbPath      string
)

func main() {
	_ = godotenv.Load(".env")

	rootCmd := &cobra.Command{
		Use:   "lsr-dashboard",
		Short: "Serve the local storm report dashboard",
		Long: `LSR Dashboard serves a storm report and warning dashboard whose
state always round-trips through a shareable link. In realtime mode the time
window slides forward every interval and connected browsers are told to reload.`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	// Flags shared by every command
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "Path to the TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatAuto, "Log format (auto, console, json)")
	rootCmd.PersistentFlags().IntVarP(&interval, "interval", "i", defaultInterval, "Realtime update interval in seconds (minimum 30)")
	rootCmd.PersistentFlags().Int64Var(&seconds, "default-seconds", state.DefaultSeconds, "Realtime window length used when a link does not set one")

	// Serve flags
	rootCmd.Flags().StringVarP(&addr, "addr", "a", defaultAddr, "Address to listen on")
	rootCmd.Flags().BoolVar(&openBrowser, "open", false, "Open the dashboard in a browser")
	rootCmd.Flags().StringVar(&dbPath, "db", config.DefaultDBPath(), "Saved views database (empty disables saved views)")

	// Additional commands
	addWatchCmd(rootCmd)
	addDecodeCmd(rootCmd)
	addEncodeCmd(rootCmd)
	addMigrateCmd(rootCmd)
	addConfigCmd(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig layers the config file under any flag set on the command line.
func loadConfig(cmd *cobra.Command) (config.FileConfig, error) {
	fileCfg, err := config.LoadConfig(configPath)
	if err != nil {
		return config.FileConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "log-level", &logLevel, fileCfg.Log.Level)
	applyStringConfig(cmd, "log-format", &logFormat, fileCfg.Log.Format)
	applyIntConfig(cmd, "interval", &interval, fileCfg.Realtime.IntervalSeconds)
	applyInt64Config(cmd, "default-seconds", &seconds, fileCfg.Realtime.DefaultSeconds)

	// Enforce minimum interval
	if interval < minInterval {
		interval = minInterval
	}
	if verbose {
		logLevel = zerolog.LevelDebugValue
	}
	return fileCfg, nil
}

func newLogger() (zerolog.Logger, error) {
	return logging.New(os.Stderr, logLevel, logFormat)
}

// newStore returns the process-wide state with the configured window length.
func newStore() (*state.Store, error) {
	store := state.New(time.Now())
	if _, err := state.ValidSeconds(seconds); err != nil {
		return nil, fmt.Errorf("default-seconds: %w", err)
	}
	if err := store.Set(state.KeySeconds, seconds); err != nil {
		return nil, err
	}
	return store, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	fileCfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyStringConfig(cmd, "addr", &addr, fileCfg.Server.Addr)
	applyBoolConfig(cmd, "open", &openBrowser, fileCfg.Server.Open)
	applyStringConfig(cmd, "db", &dbPath, fileCfg.Storage.DBPath)

	logger, err := newLogger()
	if err != nil {
		return err
	}
	store, err := newStore()
	if err != nil {
		return err
	}

	opts := server.Options{
		Store:    store,
		Logger:   logger,
		Interval: time.Duration(interval) * time.Second,
	}
	if dbPath != "" {
		views, err := persist.Open(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open saved views: %w", err)
		}
		defer views.Close()
		opts.Views = views
	}

	srv, err := server.New(opts)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv.Handler(),
	}

	srv.Start(ctx)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigChan:
		case <-ctx.Done():
		}

		logger.Info().Msg("shutting down")
		cancel()
		srv.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("shutdown did not finish cleanly")
		}
	}()

	link := dashboardURL(addr)
	logger.Info().
		Str("addr", addr).
		Int("interval_seconds", interval).
		Bool("saved_views", opts.Views != nil).
		Msg("dashboard listening")
	cmd.Println(fmt.Sprintf("Open at %s", link))

	if openBrowser {
		go func() {
			if err := browser.OpenURL(link); err != nil {
				logger.Warn().Err(err).Msg("failed to open browser")
			}
		}()
	}

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func dashboardURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr + "/"
	}
	return "http://" + addr + "/"
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyInt64Config(cmd *cobra.Command, name string, target, value *int64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}
