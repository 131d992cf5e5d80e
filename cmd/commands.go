package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/Zachdehooge/lsr-dashboard/internal/config"
	"github.com/Zachdehooge/lsr-dashboard/internal/feed"
	"github.com/Zachdehooge/lsr-dashboard/internal/legacy"
	"github.com/Zachdehooge/lsr-dashboard/internal/logging"
	"github.com/Zachdehooge/lsr-dashboard/internal/realtime"
	"github.com/Zachdehooge/lsr-dashboard/internal/settings"
	"github.com/Zachdehooge/lsr-dashboard/internal/snapshot"
	"github.com/Zachdehooge/lsr-dashboard/internal/state"
	"github.com/Zachdehooge/lsr-dashboard/internal/urlcodec"
)

var (
	label   = color.New(color.FgCyan).SprintFunc()
	success = color.New(color.FgGreen).SprintFunc()
	warning = color.New(color.FgYellow).SprintFunc()
)

// loadLink migrates a legacy link and decodes it into store. It returns the
// problems found while decoding.
func loadLink(store *state.Store, raw string, now time.Time) ([]string, error) {
	href, _, err := legacy.MigrateHref(raw)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("failed to parse link: %w", err)
	}
	partial := urlcodec.DecodeQuery(u.RawQuery, now)
	if err := partial.Apply(store); err != nil {
		return nil, err
	}
	return partial.Problems, nil
}

// addWatchCmd adds a 'watch' subcommand that runs the realtime loop without a
// server and writes every reload to a JSON file
func addWatchCmd(rootCmd *cobra.Command) {
	var output string

	watchCmd := &cobra.Command{
		Use:   "watch [link]",
		Short: "Keep a realtime state snapshot file up to date",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileCfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyStringConfig(cmd, "output", &output, fileCfg.Storage.SnapshotPath)

			logger, err := newLogger()
			if err != nil {
				return err
			}
			store, err := newStore()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				problems, err := loadLink(store, args[0], time.Now())
				if err != nil {
					return err
				}
				for _, p := range problems {
					logger.Warn().Str("problem", p).Msg("malformed link parameter replaced by default")
				}
			} else if err := store.Set(state.KeyRealtime, true); err != nil {
				return err
			}
			if !store.Realtime() {
				logger.Warn().Msg("link is not realtime, the window will not move")
			}

			writer := snapshot.NewWriter(output)
			write := func(snap state.Snapshot) {
				if err := writer.Write(snap); err != nil {
					logger.Error().Err(err).Msg("failed to write snapshot")
					return
				}
				logger.Debug().Str("path", writer.Path()).Msg("snapshot written")
			}

			poller := realtime.New(store, write,
				realtime.WithInterval(time.Duration(interval)*time.Second),
				realtime.WithLogger(logging.Component(logger, "poller")),
			)
			if err := poller.Tick(); err != nil {
				logger.Warn().Err(err).Msg("initial tick failed")
			}
			if !store.Realtime() {
				write(store.Snapshot())
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			poller.Start(ctx)
			defer poller.Stop()

			cmd.Println(fmt.Sprintf("Watch mode activated. Updating %s every %d seconds. Press Ctrl+C to stop.", output, interval))

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigChan)
			select {
			case <-sigChan:
			case <-ctx.Done():
			}
			logger.Info().Msg("watch stopped")
			return nil
		},
	}

	watchCmd.Flags().StringVarP(&output, "output", "o", "state.json", "Output JSON file path")
	rootCmd.AddCommand(watchCmd)
}

// addDecodeCmd adds a 'decode' subcommand that shows the state a link describes
func addDecodeCmd(rootCmd *cobra.Command) {
	decodeCmd := &cobra.Command{
		Use:   "decode <link>",
		Short: "Show the dashboard state a link describes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(cmd); err != nil {
				return err
			}
			store, err := newStore()
			if err != nil {
				return err
			}
			problems, err := loadLink(store, args[0], time.Now())
			if err != nil {
				return err
			}
			printState(cmd.OutOrStdout(), store.Snapshot())
			for _, p := range problems {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", warning("Replaced by default:"), p)
			}
			return nil
		},
	}

	rootCmd.AddCommand(decodeCmd)
}

// addEncodeCmd adds an 'encode' subcommand that builds a link from flags
func addEncodeCmd(rootCmd *cobra.Command) {
	var (
		base     string
		byState  bool
		regions  []string
		lsrTypes []string
		sbwTypes []string
		sts      string
		ets      string
		window   int64
		layers   string
	)

	encodeCmd := &cobra.Command{
		Use:   "encode",
		Short: "Build a dashboard link",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(cmd); err != nil {
				return err
			}
			store, err := newStore()
			if err != nil {
				return err
			}

			patch := state.Patch{ByState: &byState}
			codes := feed.NormalizeTypes(regions)
			if byState {
				patch.StateFilter = codes
			} else {
				patch.WFOFilter = codes
			}
			patch.LSRTypes = feed.NormalizeTypes(lsrTypes)
			patch.SBWTypes = feed.NormalizeTypes(sbwTypes)
			if cmd.Flags().Changed("settings") {
				patch.LayerSettings = &layers
			}

			switch {
			case window != 0:
				on := true
				patch.Realtime = &on
				patch.Seconds = &window
			case sts != "" || ets != "":
				start, err := urlcodec.ParseTimestamp(sts)
				if err != nil {
					return fmt.Errorf("sts: %w", err)
				}
				end, err := urlcodec.ParseTimestamp(ets)
				if err != nil {
					return fmt.Errorf("ets: %w", err)
				}
				patch.STS, patch.ETS = &start, &end
			}

			if err := store.ApplyPatch(patch); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), joinLink(base, urlcodec.EncodeQuery(store.Snapshot())))
			return nil
		},
	}

	encodeCmd.Flags().StringVar(&base, "base", dashboardURL(defaultAddr), "Dashboard address the link points at")
	encodeCmd.Flags().BoolVar(&byState, "by-state", false, "Filter by state instead of forecast office")
	encodeCmd.Flags().StringSliceVar(&regions, "region", nil, "Forecast office or state codes")
	encodeCmd.Flags().StringSliceVar(&lsrTypes, "lsr-types", nil, "Storm report type codes")
	encodeCmd.Flags().StringSliceVar(&sbwTypes, "sbw-types", nil, "Warning type codes")
	encodeCmd.Flags().StringVar(&sts, "sts", "", "Window start (YYYYMMDDHHmm UTC)")
	encodeCmd.Flags().StringVar(&ets, "ets", "", "Window end (YYYYMMDDHHmm UTC)")
	encodeCmd.Flags().Int64Var(&window, "seconds", 0, "Realtime window length in seconds")
	encodeCmd.Flags().StringVar(&layers, "settings", "", "Layer settings digit string")
	rootCmd.AddCommand(encodeCmd)
}

// addMigrateCmd adds a 'migrate' subcommand that rewrites a legacy link
func addMigrateCmd(rootCmd *cobra.Command) {
	migrateCmd := &cobra.Command{
		Use:   "migrate <link>",
		Short: "Rewrite a legacy #fragment link into query parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			href, migrated, err := legacy.MigrateHref(args[0])
			if err != nil {
				return err
			}
			if !migrated {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", warning("No legacy fragment:"), href)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", success("Migrated:"), href)
			return nil
		},
	}

	rootCmd.AddCommand(migrateCmd)
}

// addConfigCmd adds a 'config' subcommand that writes a starter config file
func addConfigCmd(rootCmd *cobra.Command) {
	var force bool

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Write a starter config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", configPath)
			}
			if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
				return fmt.Errorf("failed to create config directory: %w", err)
			}
			if err := atomic.WriteFile(configPath, strings.NewReader(config.DefaultTemplate)); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			cmd.Println(fmt.Sprintf("Config written to %s", configPath))
			return nil
		},
	}

	configCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config")
	rootCmd.AddCommand(configCmd)
}

func printState(w io.Writer, snap state.Snapshot) {
	region := "wfo"
	if snap.ByState {
		region = "state"
	}
	fmt.Fprintf(w, "%s %s\n", label("Start:"), snap.STS.Format(time.RFC3339))
	fmt.Fprintf(w, "%s %s\n", label("End:"), snap.ETS.Format(time.RFC3339))
	fmt.Fprintf(w, "%s %v\n", label("Realtime:"), snap.Realtime)
	if snap.Realtime {
		fmt.Fprintf(w, "%s %d\n", label("Seconds:"), snap.Seconds)
	}
	fmt.Fprintf(w, "%s %s %s\n", label("Region:"), region, strings.Join(snap.RegionFilter(), ","))
	if len(snap.LSRTypes) > 0 {
		fmt.Fprintf(w, "%s %s\n", label("Report types:"), strings.Join(snap.LSRTypes, ","))
	}
	if len(snap.SBWTypes) > 0 {
		fmt.Fprintf(w, "%s %s\n", label("Warning types:"), strings.Join(snap.SBWTypes, ","))
	}
	if snap.LayerSettings != "" {
		layers := settings.Decode(snap.LayerSettings, settings.Vector{})
		var on []string
		for f := settings.Flag(0); int(f) < settings.Count; f++ {
			if layers[f] {
				on = append(on, f.String())
			}
		}
		fmt.Fprintf(w, "%s %s\n", label("Layers:"), strings.Join(on, ","))
	}
	fmt.Fprintf(w, "%s %s\n", label("Link:"), urlcodec.EncodeQuery(snap))
}

func joinLink(base, query string) string {
	if query == "" {
		return base
	}
	return base + "?" + query
}
